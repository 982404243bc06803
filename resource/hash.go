package resource

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

const hashDomain = "paysync/resource/v1"

// Hash is the change-detection fingerprint of a serialized resource:
// SHA256(domain + 0x00 + canonical JSON). Struct fields encode in declaration
// order and map keys sorted, so equal content always hashes equal. Strings are
// NFC-normalized so visually identical names do not look like changes.
func Hash(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}

	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write(norm.NFC.Bytes(bytes.TrimSpace(buf.Bytes())))
	return hex.EncodeToString(h.Sum(nil))
}

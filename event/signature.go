package event

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("event: missing signature headers")
	ErrInvalidTimestamp = errors.New("event: timestamp outside tolerance")
	ErrInvalidSignature = errors.New("event: no matching signature")
)

// Verify checks header against every secret. Signatures are base64
// HMAC-SHA256 over "{id}.{timestamp}.{body}", listed space separated and
// optionally versioned as "v1,<signature>". A zero tolerance skips the
// timestamp check.
func Verify(secrets []string, id, timestamp string, body []byte, header string, tolerance time.Duration, now time.Time) error {
	if id == "" || timestamp == "" || header == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew > tolerance || skew < -tolerance {
			return ErrInvalidTimestamp
		}
	}

	var candidates [][]byte
	for _, field := range strings.Fields(header) {
		if version, sig, ok := strings.Cut(field, ","); ok {
			if version != "v1" {
				continue
			}
			field = sig
		}
		decoded, err := base64.StdEncoding.DecodeString(field)
		if err != nil {
			continue
		}
		candidates = append(candidates, decoded)
	}

	for _, secret := range secrets {
		expected := Sign(secret, id, timestamp, body)
		for _, c := range candidates {
			if hmac.Equal(c, expected) {
				return nil
			}
		}
	}
	return ErrInvalidSignature
}

// Sign computes the raw signature of a delivery.
func Sign(secret, id, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secretKey(secret))
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return mac.Sum(nil)
}

// secretKey strips the "<prefix>_" of a signing secret and decodes the rest.
// Secrets that do not decode are used as is.
func secretKey(secret string) []byte {
	encoded := secret
	if i := strings.LastIndexByte(secret, '_'); i >= 0 {
		encoded = secret[i+1:]
	}
	if key, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return key
	}
	return []byte(secret)
}

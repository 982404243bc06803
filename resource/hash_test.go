package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Stable(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x", "c": []int{1, 2}}
	b := map[string]any{"c": []int{1, 2}, "a": "x", "b": 1}

	assert.Equal(t, Hash(a), Hash(b))
	assert.Len(t, Hash(a), 64)
}

func TestHash_DetectsChanges(t *testing.T) {
	base := productPayload{Name: "Mat", Active: true}
	changed := productPayload{Name: "Mat", Active: false}

	assert.NotEqual(t, Hash(base), Hash(changed))
}

func TestHash_NormalizesUnicode(t *testing.T) {
	composed := productPayload{Name: "Caf\u00e9"}
	decomposed := productPayload{Name: "Cafe\u0301"}

	assert.Equal(t, Hash(composed), Hash(decomposed))
}

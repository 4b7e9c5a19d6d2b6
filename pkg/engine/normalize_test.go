package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(nil))
	assert.Equal(t, "hello", Normalize("  hello  "))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "10.5", Normalize(10.5))
	assert.Equal(t, "10", Normalize(float64(10)))
	assert.Equal(t, "true", Normalize(true))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []interface{}{nil, "  spaced  ", 10.5, true, "2024-01-15T00:00:00Z"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	ts := time.Date(2024, 3, 1, 16, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-02T00:30:00Z", Normalize(ts))
}

func TestNormalizeDoesNotCaseFold(t *testing.T) {
	assert.Equal(t, "Phoenix", Normalize("Phoenix"))
	assert.NotEqual(t, Normalize("Phoenix"), Normalize("phoenix"))
}

func TestNormalizeKeyComponentNumeric(t *testing.T) {
	// Leading zeros, decimal renderings, and plain integers collapse to the
	// same component.
	assert.Equal(t, "10", NormalizeKeyComponent("010"))
	assert.Equal(t, "10", NormalizeKeyComponent("10.0"))
	assert.Equal(t, "10", NormalizeKeyComponent(float64(10)))
	assert.Equal(t, "10", NormalizeKeyComponent("  10  "))
	assert.Equal(t, "10", NormalizeKeyComponent(10.7))
}

func TestNormalizeKeyComponentString(t *testing.T) {
	assert.Equal(t, "tulsa", NormalizeKeyComponent("  Tulsa "))
	assert.Equal(t, "ok", NormalizeKeyComponent("OK"))
	assert.Equal(t, "", NormalizeKeyComponent(nil))
	assert.Equal(t, "", NormalizeKeyComponent("   "))
}

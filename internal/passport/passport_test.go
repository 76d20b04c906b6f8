package passport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantOK  bool
		wantVal string
	}{
		{"strips spaces and dashes", "A 123-456.78", true, "A12345678"},
		{"lowercase input uppercased", "a1234567", true, "A1234567"},
		{"digits only", "12345678", true, "12345678"},
		{"too short after normalization", "A12", false, ""},
		{"too long after normalization", "A1234567890123", false, ""},
		{"empty input", "", false, ""},
		{"only separators", "  -- ..", false, ""},
		{"letter in the middle is invalid", "A123B456", false, ""},
		{"slash separators collapse", "A/123/456", true, "A123456"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(tc.raw, DefaultMinLength, DefaultMaxLength)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantVal, got)
			}
		})
	}
}

func TestNormalizeCandidates_DedupesPreservingOrder(t *testing.T) {
	got := NormalizeCandidates(
		[]string{"a1234567", "A123-4567", "B7654321", "not valid!!"},
		DefaultMinLength, DefaultMaxLength,
	)
	assert.Equal(t, []string{"A1234567", "B7654321"}, got)
}

func TestBounds_FallsBackToDefaults(t *testing.T) {
	min, max := Bounds(0, 0)
	assert.Equal(t, DefaultMinLength, min)
	assert.Equal(t, DefaultMaxLength, max)

	min, max = Bounds(3, 20)
	assert.Equal(t, 3, min)
	assert.Equal(t, 20, max)
}

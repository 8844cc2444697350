package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"maria garcia", "MARIA GARCIA"},
		{"GARCIA, MARIA", "GARCIA MARIA"},
		{"O'Brien", "OBRIEN"},
		{"Jean-Pierre  Dupont", "JEAN PIERRE DUPONT"},
		{"  J. R.   Smith ", "J R SMITH"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeDNI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678Z", "12345678Z"},
		{"12345678z", "12345678Z"},
		{"12345678-Z", "12345678Z"},
		{"12.345.678 Z", "12345678Z"},
		{"  12345678Z  ", "12345678Z"},
		// Garbage never normalizes to a lookup key.
		{"1234567Z", ""},
		{"123456789Z", ""},
		{"12345678", ""},
		{"ABCDEFGHI", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDNI(tt.in), "input %q", tt.in)
	}
}

func TestNameSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Maria Garcia", "MARIA GARCIA"))
}

func TestNameSimilarity_TokenOrder(t *testing.T) {
	// "SURNAME, NAME" ordering from OCR must not tank the score.
	assert.Equal(t, 1.0, NameSimilarity("Garcia Lopez, Maria", "Maria Garcia Lopez"))
}

func TestNameSimilarity_Different(t *testing.T) {
	sim := NameSimilarity("Maria Garcia", "Roberto Fernandez")
	assert.Less(t, sim, 0.5)
}

func TestNameSimilarity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, NameSimilarity("", "Maria"))
	assert.Equal(t, 0.0, NameSimilarity("Maria", ""))
}

func TestNameSimilarity_CloseTypo(t *testing.T) {
	// One OCR character slip should stay above the candidate floor.
	sim := NameSimilarity("Maria Garcia", "Marla Garcia")
	assert.GreaterOrEqual(t, sim, minNameSimilarity)
}

package dcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStandardCodeCount(t *testing.T) {
	assert.Len(t, StandardCodes(), 105)
}

func TestIsStandardCode(t *testing.T) {
	assert.True(t, IsStandardCode(19))  // D023
	assert.True(t, IsStandardCode(21))  // D025
	assert.True(t, IsStandardCode(492)) // D754

	assert.False(t, IsStandardCode(0))
	assert.False(t, IsStandardCode(20))
	assert.False(t, IsStandardCode(511))
	assert.False(t, IsStandardCode(-1))
	assert.False(t, IsStandardCode(512))
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "D023", FormatCode(19, false))
	assert.Equal(t, "D023N", FormatCode(19, true))
	assert.Equal(t, "D754", FormatCode(492, false))
	assert.Equal(t, "D025", FormatCode(21, false))
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		in       string
		code     int
		inverted bool
	}{
		{"023", 19, false},
		{"D023", 19, false},
		{"023N", 19, true},
		{"D023N", 19, true},
		{"d023n", 19, true},
		{" 023 ", 19, false},
		{"754", 492, false},
		{"25", 21, false},
	}
	for _, tc := range tests {
		code, inverted, err := ParseCode(tc.in)
		require.NoError(t, err, "ParseCode(%q)", tc.in)
		assert.Equal(t, tc.code, code, "ParseCode(%q)", tc.in)
		assert.Equal(t, tc.inverted, inverted, "ParseCode(%q)", tc.in)
	}
}

func TestParseCodeErrors(t *testing.T) {
	for _, in := range []string{"", "N", "D", "8", "abc", "024", "777", "D000"} {
		_, _, err := ParseCode(in)
		assert.Error(t, err, "ParseCode(%q) should fail", in)
	}
}

func TestCodeNotationRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		codes := StandardCodes()
		code := int(codes[rapid.IntRange(0, len(codes)-1).Draw(t, "code")])
		inverted := rapid.Bool().Draw(t, "inverted")

		parsed, parsedInv, err := ParseCode(FormatCode(code, inverted))
		require.NoError(t, err)
		assert.Equal(t, code, parsed)
		assert.Equal(t, inverted, parsedInv)
	})
}

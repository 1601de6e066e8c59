package dcs

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSyndromeOfZeroWordIsZero(t *testing.T) {
	assert.Equal(t, uint32(0), Syndrome(0))
}

func TestSyndromeOfCodewordsIsZero(t *testing.T) {
	for _, code := range StandardCodes() {
		cw := Encode(uint32(code))
		assert.Equal(t, uint32(0), Syndrome(cw), "codeword for code %d has non-zero syndrome", code)
	}
}

func TestSyndromeTableComplete(t *testing.T) {
	g := NewGolay()

	// The (23,12,7) code is perfect: all 2048 syndromes must map to an
	// error pattern of weight <= 3, and each pattern must reproduce its
	// own syndrome.
	for s, pattern := range g.syndromes {
		require.NotEqual(t, uint32(synInvalid), pattern, "syndrome %d has no error pattern", s)
		assert.LessOrEqual(t, bits.OnesCount32(pattern), 3, "syndrome %d pattern weight too high", s)
		assert.Equal(t, uint32(s), Syndrome(pattern), "syndrome %d pattern maps to a different syndrome", s)
	}

	// Zero errors map to the zero pattern.
	assert.Equal(t, uint32(0), g.syndromes[0])
}

func TestEncodeRoundTripAllStandardCodes(t *testing.T) {
	g := NewGolay()

	for _, code := range StandardCodes() {
		cw := Encode(uint32(code))
		corrected, ok := g.Correct(cw)
		require.True(t, ok)
		assert.Equal(t, cw, corrected)
		assert.Equal(t, uint32(code), Data(corrected), "round trip failed for code %d", code)
	}
}

func TestCorrectsUpToThreeErrors(t *testing.T) {
	g := NewGolay()

	rapid.Check(t, func(t *rapid.T) {
		codes := StandardCodes()
		code := codes[rapid.IntRange(0, len(codes)-1).Draw(t, "code")]
		cw := Encode(uint32(code))

		nerrs := rapid.IntRange(0, 3).Draw(t, "nerrs")
		var pattern uint32
		for bits.OnesCount32(pattern) < nerrs {
			pattern |= 1 << uint(rapid.IntRange(0, 22).Draw(t, "bit"))
		}

		corrected, ok := g.Correct(cw ^ pattern)
		require.True(t, ok)
		assert.Equal(t, cw, corrected, "failed to correct %d errors (pattern %06X) for code %d",
			nerrs, pattern, code)
	})
}

func TestFourErrorsMiscorrect(t *testing.T) {
	g := NewGolay()

	// Beyond the packing radius every word still corrects to some
	// codeword, but never back to the transmitted one.
	cw := Encode(19)
	pattern := uint32(1<<0 | 1<<5 | 1<<10 | 1<<15)

	corrected, ok := g.Correct(cw ^ pattern)
	require.True(t, ok)
	assert.Equal(t, uint32(0), Syndrome(corrected))
	assert.NotEqual(t, cw, corrected)
}

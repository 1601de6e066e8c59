package dcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// runGate pushes samples through a squelch in fixed-size blocks and
// returns the gated output plus the per-block open state observed after
// each block.
func runGate(t *testing.T, s *Squelch, samples []float32, blockSize int) (out []float32, openAfterBlock []bool) {
	t.Helper()

	out = make([]float32, len(samples))
	for off := 0; off < len(samples); off += blockSize {
		end := off + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		s.Process(samples[off:end], out[off:end])
		openAfterBlock = append(openAfterBlock, s.IsOpen())
	}
	return out, openAfterBlock
}

func TestNewSquelchValidation(t *testing.T) {
	_, err := NewSquelch(16000, 20, false, 250)
	assert.Error(t, err, "non-standard target code must be rejected")

	_, err = NewSquelch(16000, 19, false, -1)
	assert.Error(t, err, "negative tail must be rejected")

	_, err = NewSquelch(100, 19, false, 250)
	assert.Error(t, err, "unusable sample rate must be rejected")

	s, err := NewSquelch(16000, 19, false, 250)
	require.NoError(t, err)
	assert.False(t, s.IsOpen())
	assert.Equal(t, 0, s.TailRemaining())
	assert.Equal(t, 16000, s.SampleRate())

	code, inverted := s.Target()
	assert.Equal(t, 19, code)
	assert.False(t, inverted)
}

func TestGateOutputInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, err := NewSquelch(16000, 19, false, 250)
		require.NoError(t, err)

		n := rapid.IntRange(1, 4096).Draw(t, "n")
		in := make([]float32, n)
		for i := range in {
			in[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "sample"))
		}
		out := make([]float32, n)
		s.Process(in, out)

		// Every output sample is the input sample or exactly zero.
		for i := range out {
			if out[i] != 0 {
				assert.Equal(t, in[i], out[i])
			}
		}
	})
}

func TestSilentInputStaysClosed(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	out, opens := runGate(t, s, make([]float32, rate), 256)

	for _, v := range out {
		assert.Zero(t, v)
	}
	for _, open := range opens {
		assert.False(t, open)
	}
}

func TestCleanToneOpensGateAndHolds(t *testing.T) {
	const rate = 16000
	const block = 256

	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	sig := synthDCS(19, false, rate, 2.0, nil)
	out, opens := runGate(t, s, sig, block)

	// Find the first passed sample.
	firstPass := -1
	for i, v := range out {
		if v != 0 {
			firstPass = i
			break
		}
	}
	require.GreaterOrEqual(t, firstPass, 0, "gate never opened")

	openMs := float64(firstPass) / rate * 1000
	assert.Greater(t, openMs, 250.0)
	assert.Less(t, openMs, 600.0, "gate should open shortly after confirmation")

	// Once open the gate stays open for the remainder of the tone.
	firstOpenBlock := firstPass / block
	for i := firstOpenBlock; i < len(opens); i++ {
		assert.True(t, opens[i], "gate closed mid-transmission at block %d", i)
	}
	assert.True(t, s.IsOpen())

	// After the open point the output equals the input exactly.
	for i := (firstOpenBlock + 1) * block; i < len(out); i++ {
		assert.Equal(t, sig[i], out[i])
	}
}

func TestInvertedToneDoesNotOpenNormalTarget(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	out, _ := runGate(t, s, synthDCS(19, true, rate, 2.0, nil), 256)

	assert.False(t, s.IsOpen())
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestInvertedTargetMatchesInvertedTone(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, true, 250)
	require.NoError(t, err)

	runGate(t, s, synthDCS(19, true, rate, 2.0, nil), 256)
	assert.True(t, s.IsOpen())
}

func TestWrongCodeDoesNotOpen(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	// D025 (code 21) against a D023 target.
	out, _ := runGate(t, s, synthDCS(21, false, rate, 2.0, nil), 256)

	assert.False(t, s.IsOpen())
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestTailClosesGateAfterToneStops(t *testing.T) {
	const rate = 16000
	const block = 256
	const tailMs = 250.0

	s, err := NewSquelch(rate, 19, false, tailMs)
	require.NoError(t, err)

	// One second of tone followed by one second of silence.
	sig := append(synthDCS(19, false, rate, 1.0, nil), make([]float32, rate)...)
	out, opens := runGate(t, s, sig, block)

	require.False(t, s.IsOpen(), "gate must be closed at the end")

	lastOpenBlock := -1
	for i, open := range opens {
		if open {
			lastOpenBlock = i
		}
	}
	require.GreaterOrEqual(t, lastOpenBlock, 0, "gate never opened")

	// The gate holds for the tail after the last confirmation near the
	// end of the tone, then closes: within the tail window plus a frame
	// of decode lag after the tone stops.
	closeMs := float64((lastOpenBlock+1)*block) / rate * 1000
	assert.Greater(t, closeMs, 1000.0+tailMs-20.0)
	assert.Less(t, closeMs, 1000.0+tailMs+60.0)

	// Output is silent from the first full block after the close onward.
	closeSample := (lastOpenBlock + 2) * block
	for i := closeSample; i < len(out); i++ {
		assert.Zero(t, out[i])
	}
}

func TestThreeBitErrorsPerFrameOpenGate(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	runGate(t, s, synthDCS(19, false, rate, 2.0, []int{0, 4, 9}), 256)
	assert.True(t, s.IsOpen())
}

func TestFiveBitErrorsPerFrameKeepGateClosed(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	out, _ := runGate(t, s, synthDCS(19, false, rate, 2.0, []int{0, 4, 9, 14, 19}), 256)

	assert.False(t, s.IsOpen())
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestSetTargetForcesClosed(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 19, false, 250)
	require.NoError(t, err)

	runGate(t, s, synthDCS(19, false, rate, 2.0, nil), 256)
	require.True(t, s.IsOpen())

	s.SetTarget(21, false)
	assert.False(t, s.IsOpen())
	assert.Equal(t, 0, s.TailRemaining())

	// Closed stays closed until the new code is confirmed: the old code
	// no longer matches.
	more := synthDCS(19, false, rate, 0.25, nil)
	out := make([]float32, len(more))
	s.Process(more, out)
	assert.False(t, s.IsOpen())
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestEventCallbackObservesAllCodes(t *testing.T) {
	const rate = 16000
	s, err := NewSquelch(rate, 21, false, 250)
	require.NoError(t, err)

	var seen []int
	s.SetEventCallback(func(code int, inverted bool) {
		seen = append(seen, code)
	})

	// A non-matching transmission still surfaces events while the gate
	// stays shut.
	runGate(t, s, synthDCS(19, false, rate, 2.0, nil), 256)

	assert.False(t, s.IsOpen())
	assert.Contains(t, seen, 19)
}

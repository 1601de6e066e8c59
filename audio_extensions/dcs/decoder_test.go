package dcs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecoderRejectsLowSampleRate(t *testing.T) {
	_, err := NewDecoder(269)
	assert.Error(t, err)

	_, err = NewDecoder(0)
	assert.Error(t, err)

	d, err := NewDecoder(270)
	require.NoError(t, err)
	assert.Equal(t, 270, d.SampleRate())
}

func TestConfirmTrackerSingleDecodeDoesNotEmit(t *testing.T) {
	var tr confirmTracker
	tr.lastCode = -1

	assert.False(t, tr.update(true, 19, false))
	assert.Equal(t, 1, tr.count)
}

func TestConfirmTrackerEmitsOnSecondAndEveryFurtherDecode(t *testing.T) {
	var tr confirmTracker
	tr.lastCode = -1

	assert.False(t, tr.update(true, 19, false))
	assert.True(t, tr.update(true, 19, false), "second consecutive decode must emit")
	assert.True(t, tr.update(true, 19, false), "every further consecutive decode must emit")
	assert.True(t, tr.update(true, 19, false))
}

func TestConfirmTrackerInterleavedCodesReset(t *testing.T) {
	var tr confirmTracker
	tr.lastCode = -1

	for i := 0; i < 5; i++ {
		assert.False(t, tr.update(true, 19, false))
		assert.Equal(t, 1, tr.count)
		assert.False(t, tr.update(true, 21, false))
		assert.Equal(t, 1, tr.count)
	}
}

func TestConfirmTrackerPolarityIsPartOfIdentity(t *testing.T) {
	var tr confirmTracker
	tr.lastCode = -1

	assert.False(t, tr.update(true, 19, false))
	assert.False(t, tr.update(true, 19, true), "same code with flipped polarity must reset")
	assert.Equal(t, 1, tr.count)
}

func TestConfirmTrackerMissDecaysWithoutForgettingCode(t *testing.T) {
	var tr confirmTracker
	tr.lastCode = -1

	tr.update(true, 19, false)
	assert.False(t, tr.update(false, 0, false))
	assert.Equal(t, 0, tr.count)
	assert.False(t, tr.update(false, 0, false), "count must not go negative")

	// The remembered code survives misses, so the next decode of the
	// same code counts as consecutive.
	assert.False(t, tr.update(true, 19, false))
	assert.True(t, tr.update(true, 19, false))
}

// collectEvents runs samples through a decoder in blocks, recording each
// event with the sample offset of the block that produced it.
type timedEvent struct {
	sample   int
	code     int
	inverted bool
}

func collectEvents(t *testing.T, sampleRate int, samples []float32, blockSize int) []timedEvent {
	t.Helper()

	d, err := NewDecoder(sampleRate)
	require.NoError(t, err)

	var events []timedEvent
	offset := 0
	d.SetEventCallback(func(code int, inverted bool) {
		events = append(events, timedEvent{sample: offset, code: code, inverted: inverted})
	})

	for offset < len(samples) {
		end := offset + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		d.ProcessSamples(samples[offset:end])
		offset = end
	}
	return events
}

func filterEvents(events []timedEvent, code int, inverted bool) []timedEvent {
	var out []timedEvent
	for _, e := range events {
		if e.code == code && e.inverted == inverted {
			out = append(out, e)
		}
	}
	return out
}

func TestDecoderSilenceProducesNoEvents(t *testing.T) {
	const rate = 16000
	events := collectEvents(t, rate, make([]float32, rate), 256)
	assert.Empty(t, events)
}

func TestDecoderCleanTone(t *testing.T) {
	const rate = 16000
	sig := synthDCS(19, false, rate, 2.0, nil)
	events := collectEvents(t, rate, sig, 256)

	target := filterEvents(events, 19, false)
	require.NotEmpty(t, target, "clean D023 tone must be decoded")

	// Confirmation needs the window to fill and the code to repeat, so
	// the first event lands during the second or third frame.
	first := float64(target[0].sample) / rate * 1000
	assert.Greater(t, first, 300.0)
	assert.Less(t, first, 600.0)

	// Once confirmed the code refreshes every frame (~171 ms), fast
	// enough to keep a 250 ms tail armed.
	for i := 1; i < len(target); i++ {
		gap := float64(target[i].sample-target[i-1].sample) / rate * 1000
		assert.Less(t, gap, 200.0, "refresh gap too long between events %d and %d", i-1, i)
	}

	// The inverted variant must not be reported for a normal-polarity
	// transmission.
	assert.Empty(t, filterEvents(events, 19, true))
}

func TestDecoderInvertedTone(t *testing.T) {
	const rate = 16000
	sig := synthDCS(19, true, rate, 2.0, nil)
	events := collectEvents(t, rate, sig, 256)

	assert.NotEmpty(t, filterEvents(events, 19, true))
	assert.Empty(t, filterEvents(events, 19, false))
}

func TestDecoderOtherSampleRates(t *testing.T) {
	for _, rate := range []int{8000, 24000, 48000} {
		sig := synthDCS(19, false, rate, 2.0, nil)
		events := collectEvents(t, rate, sig, 512)
		assert.NotEmpty(t, filterEvents(events, 19, false), "no events at %d Hz", rate)
	}
}

func TestDecoderThreeBitErrorsPerFrameStillConfirms(t *testing.T) {
	const rate = 16000
	sig := synthDCS(19, false, rate, 2.0, []int{0, 4, 9})
	events := collectEvents(t, rate, sig, 256)

	target := filterEvents(events, 19, false)
	require.NotEmpty(t, target)
	// Within three frame periods of the first possible confirmation.
	assert.Less(t, float64(target[0].sample)/rate*1000, 700.0)
}

func TestDecoderFiveBitErrorsPerFrameDoNotConfirm(t *testing.T) {
	const rate = 16000
	sig := synthDCS(19, false, rate, 2.0, []int{0, 4, 9, 14, 19})
	events := collectEvents(t, rate, sig, 256)

	assert.Empty(t, filterEvents(events, 19, false))
	assert.Empty(t, filterEvents(events, 19, true))
}

func TestDecoderSurvivesNonFiniteSamples(t *testing.T) {
	const rate = 16000
	d, err := NewDecoder(rate)
	require.NoError(t, err)

	var events int
	d.SetEventCallback(func(code int, inverted bool) { events++ })

	bad := []float32{
		float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)),
		0, 1e30, -1e30,
	}
	for i := 0; i < 1000; i++ {
		d.ProcessSamples(bad)
	}

	// The filter state must not be poisoned: a clean tone afterwards
	// still decodes.
	sig := synthDCS(19, false, rate, 2.0, nil)
	var confirmed bool
	d.SetEventCallback(func(code int, inverted bool) {
		if code == 19 && !inverted {
			confirmed = true
		}
	})
	d.ProcessSamples(sig)
	assert.True(t, confirmed)
}

func TestDecoderPureDCProducesNoEvents(t *testing.T) {
	const rate = 16000
	dc := make([]float32, 2*rate)
	for i := range dc {
		dc[i] = 0.7
	}
	events := collectEvents(t, rate, dc, 1024)
	assert.Empty(t, events)
}

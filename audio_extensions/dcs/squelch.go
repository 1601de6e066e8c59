package dcs

import "fmt"

// Squelch gates audio on DCS code identification. It owns a Decoder and
// registers itself as the decoder's event sink: while the configured
// target code is being received the input passes through unchanged, and a
// tail timer keeps the gate open briefly after the code disappears so the
// end of a transmission is not clipped.
//
// Like the Decoder, a Squelch must be owned by a single goroutine.
type Squelch struct {
	decoder *Decoder

	targetCode     int
	targetInverted bool

	open           bool
	tailSamples    int
	tailSamplesMax int

	eventCB EventFunc
}

// NewSquelch creates a squelch gate for the given sample rate and target
// code. tailMs is the hold time in milliseconds after the last matching
// detection.
func NewSquelch(sampleRate, targetCode int, targetInverted bool, tailMs float64) (*Squelch, error) {
	if !IsStandardCode(targetCode) {
		return nil, fmt.Errorf("target %d is not a standard DCS code", targetCode)
	}
	if tailMs < 0 {
		return nil, fmt.Errorf("negative squelch tail: %v ms", tailMs)
	}

	dec, err := NewDecoder(sampleRate)
	if err != nil {
		return nil, err
	}

	s := &Squelch{
		decoder:        dec,
		targetCode:     targetCode,
		targetInverted: targetInverted,
		tailSamplesMax: int(float64(sampleRate) * tailMs / 1000.0),
	}
	dec.SetEventCallback(s.onCode)
	return s, nil
}

// onCode handles one decoder event: a matching code opens the gate and
// rearms the tail; anything else is ignored.
func (s *Squelch) onCode(code int, inverted bool) {
	if code == s.targetCode && inverted == s.targetInverted {
		s.open = true
		s.tailSamples = s.tailSamplesMax
	}
}

// Process runs the decoder over the whole input batch, then gates it
// sample by sample into out. out must be the same length as in. The
// decoder runs first, so a matching code anywhere in the batch opens the
// gate for the entire batch; this keeps the first syllables after squelch
// open from being clipped.
func (s *Squelch) Process(in, out []float32) {
	s.decoder.ProcessSamples(in)

	for i := range in {
		if s.open {
			out[i] = in[i]
			if s.tailSamples > 0 {
				s.tailSamples--
				if s.tailSamples == 0 {
					s.open = false
				}
			}
		} else {
			out[i] = 0
		}
	}
}

// SetTarget replaces the target code and forces the gate closed.
func (s *Squelch) SetTarget(code int, inverted bool) {
	s.targetCode = code
	s.targetInverted = inverted
	s.open = false
	s.tailSamples = 0
}

// SetEventCallback registers a callback that observes every decoder
// event, matching or not, after the gate has handled it. Must not be
// called concurrently with Process.
func (s *Squelch) SetEventCallback(cb EventFunc) {
	s.eventCB = cb
	s.decoder.SetEventCallback(func(code int, inverted bool) {
		s.onCode(code, inverted)
		if s.eventCB != nil {
			s.eventCB(code, inverted)
		}
	})
}

// IsOpen reports whether the gate is currently passing audio.
func (s *Squelch) IsOpen() bool {
	return s.open
}

// TailRemaining returns the remaining tail time in samples.
func (s *Squelch) TailRemaining() int {
	return s.tailSamples
}

// Target returns the configured target code and polarity.
func (s *Squelch) Target() (int, bool) {
	return s.targetCode, s.targetInverted
}

// SampleRate returns the audio sample rate the gate was built for.
func (s *Squelch) SampleRate() int {
	return s.decoder.SampleRate()
}

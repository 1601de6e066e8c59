package dcs

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"
)

// Binary message types emitted on the extension result channel.
const (
	// MsgTypeCodeDetected: [type:1][timestamp:8][code:2][inverted:1],
	// integers big-endian. Sent for every decoder event, matching or not,
	// except that it is dropped when the result channel is full.
	MsgTypeCodeDetected = 0x01

	// MsgTypeGateState: [type:1][open:1][tail_samples:4]. Sent whenever
	// the gate state changes between blocks.
	MsgTypeGateState = 0x02

	// MsgTypeAudio: [type:1][count:4][count * int16 big-endian]. The
	// gated audio for one input block, same sample count as the input.
	MsgTypeAudio = 0x03
)

// DCSConfig contains the squelch parameters.
type DCSConfig struct {
	Code     int     `json:"code"`     // decimal code number (D023 = 19)
	Inverted bool    `json:"inverted"` // true selects "N"-suffix polarity
	TailMs   float64 `json:"tail_ms"`  // hold time after the code disappears
}

// DefaultDCSConfig returns the default squelch configuration: D023,
// normal polarity, 250 ms tail.
func DefaultDCSConfig() DCSConfig {
	return DCSConfig{
		Code:     19,
		Inverted: false,
		TailMs:   250.0,
	}
}

// DCSExtension wraps a Squelch as a channel-driven audio extension. PCM
// blocks arrive on the audio channel; gated audio and decode events leave
// on the result channel as typed binary messages.
type DCSExtension struct {
	squelch *Squelch
	config  DCSConfig

	// Scratch buffers reused across blocks.
	floatIn  []float32
	floatOut []float32

	// Decoder events captured during the current block.
	events []eventRecord

	lastOpen bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

type eventRecord struct {
	code     int
	inverted bool
}

// NewDCSExtension creates a new DCS squelch extension.
func NewDCSExtension(sampleRate int, extensionParams map[string]interface{}) (*DCSExtension, error) {
	config := DefaultDCSConfig()

	if c, ok := extensionParams["code"].(string); ok {
		code, inverted, err := ParseCode(c)
		if err != nil {
			return nil, err
		}
		config.Code = code
		config.Inverted = inverted
	}
	if inv, ok := extensionParams["inverted"].(bool); ok && inv {
		config.Inverted = true
	}
	if tail, ok := extensionParams["tail_ms"].(float64); ok {
		config.TailMs = tail
	}

	if !IsStandardCode(config.Code) {
		return nil, fmt.Errorf("invalid DCS code: %d", config.Code)
	}
	if config.TailMs < 0 || config.TailMs > 10000 {
		return nil, fmt.Errorf("invalid tail: %.1f ms (must be 0-10000)", config.TailMs)
	}

	sq, err := NewSquelch(sampleRate, config.Code, config.Inverted, config.TailMs)
	if err != nil {
		return nil, err
	}

	e := &DCSExtension{
		squelch:  sq,
		config:   config,
		stopChan: make(chan struct{}),
	}
	sq.SetEventCallback(func(code int, inverted bool) {
		e.events = append(e.events, eventRecord{code: code, inverted: inverted})
	})

	log.Printf("[DCS] Initialized: target=%s tail=%.0f ms sample_rate=%d",
		FormatCode(config.Code, config.Inverted), config.TailMs, sampleRate)

	return e, nil
}

// Start begins processing audio. The result channel is closed when the
// audio channel is closed or the extension is stopped.
func (e *DCSExtension) Start(audioChan <-chan []int16, resultChan chan<- []byte) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("extension already running")
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.processLoop(audioChan, resultChan)

	return nil
}

// Stop stops the extension and waits for the processing goroutine.
func (e *DCSExtension) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	return nil
}

// GetName returns the extension name.
func (e *DCSExtension) GetName() string {
	return "dcs"
}

// IsOpen reports the current gate state.
func (e *DCSExtension) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.squelch.IsOpen()
}

// TailRemainingMs returns the remaining tail time in milliseconds.
func (e *DCSExtension) TailRemainingMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.squelch.TailRemaining()) / float64(e.squelch.SampleRate()) * 1000.0
}

// Target returns the configured target code and polarity.
func (e *DCSExtension) Target() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.squelch.Target()
}

// SetTarget retunes the squelch to a new code. The gate closes until the
// new code is confirmed.
func (e *DCSExtension) SetTarget(code int, inverted bool) error {
	if !IsStandardCode(code) {
		return fmt.Errorf("invalid DCS code: %d", code)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.squelch.SetTarget(code, inverted)
	log.Printf("[DCS] Retuned: target=%s", FormatCode(code, inverted))
	return nil
}

// processLoop consumes audio blocks until the input channel closes or
// Stop is called.
func (e *DCSExtension) processLoop(audioChan <-chan []int16, resultChan chan<- []byte) {
	defer e.wg.Done()
	defer close(resultChan)

	for {
		select {
		case <-e.stopChan:
			return

		case samples, ok := <-audioChan:
			if !ok {
				return
			}
			e.processBlock(samples, resultChan)
		}
	}
}

// processBlock runs one PCM block through the squelch and emits the
// resulting messages. Events are sent before the audio so consumers see
// the decode that opened the gate ahead of the samples it passed.
func (e *DCSExtension) processBlock(samples []int16, resultChan chan<- []byte) {
	e.mu.Lock()

	if cap(e.floatIn) < len(samples) {
		e.floatIn = make([]float32, len(samples))
		e.floatOut = make([]float32, len(samples))
	}
	in := e.floatIn[:len(samples)]
	out := e.floatOut[:len(samples)]

	for i, s := range samples {
		in[i] = float32(s) / 32768.0
	}

	e.events = e.events[:0]
	e.squelch.Process(in, out)

	events := make([]eventRecord, len(e.events))
	copy(events, e.events)

	open := e.squelch.IsOpen()
	tail := e.squelch.TailRemaining()
	stateChanged := open != e.lastOpen
	e.lastOpen = open

	msg := make([]byte, 1+4+2*len(out))
	msg[0] = MsgTypeAudio
	binary.BigEndian.PutUint32(msg[1:5], uint32(len(out)))
	for i, v := range out {
		binary.BigEndian.PutUint16(msg[5+2*i:], uint16(floatToPCM(v)))
	}

	e.mu.Unlock()

	for _, ev := range events {
		e.sendCodeDetected(resultChan, ev.code, ev.inverted)
	}
	if stateChanged {
		e.sendGateState(resultChan, open, tail)
	}

	// Audio messages block rather than drop: the output stream must stay
	// sample-for-sample aligned with the input.
	select {
	case resultChan <- msg:
	case <-e.stopChan:
	}
}

// floatToPCM converts a float sample in [-1, 1) back to int16 with
// saturation.
func floatToPCM(v float32) int16 {
	scaled := v * 32768.0
	switch {
	case scaled > 32767:
		return 32767
	case scaled < -32768:
		return -32768
	default:
		return int16(scaled)
	}
}

// sendCodeDetected sends a code detection message.
func (e *DCSExtension) sendCodeDetected(resultChan chan<- []byte, code int, inverted bool) {
	msg := make([]byte, 1+8+2+1)
	msg[0] = MsgTypeCodeDetected
	binary.BigEndian.PutUint64(msg[1:9], uint64(time.Now().Unix()))
	binary.BigEndian.PutUint16(msg[9:11], uint16(code))
	if inverted {
		msg[11] = 1
	}

	select {
	case resultChan <- msg:
	default:
		// Channel full, skip: events repeat while the code is present.
	}
}

// sendGateState sends a gate state change message.
func (e *DCSExtension) sendGateState(resultChan chan<- []byte, open bool, tailSamples int) {
	msg := make([]byte, 1+1+4)
	msg[0] = MsgTypeGateState
	if open {
		msg[1] = 1
	}
	binary.BigEndian.PutUint32(msg[2:6], uint32(tailSamples))

	select {
	case resultChan <- msg:
	default:
	}
}

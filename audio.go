package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/cwsl/dcsquelch/audio_extensions/dcs"
)

// Processor runs the audio pipeline: input blocks are fed through the
// DCS extension, gated audio goes to the output and decode events fan
// out to metrics, MQTT and WebSocket clients.
type Processor struct {
	ext    *dcs.DCSExtension
	reader SampleReader
	writer SampleWriter

	metrics *PrometheusMetrics
	mqtt    *MQTTPublisher
	ws      *EventWebSocketHandler

	blockSize  int
	sampleRate int

	samplesProcessed atomic.Uint64
	decodeEvents     atomic.Uint64
}

// NewProcessor wires the pipeline together. writer may be nil for
// decode-only operation.
func NewProcessor(ext *dcs.DCSExtension, reader SampleReader, writer SampleWriter,
	metrics *PrometheusMetrics, mqtt *MQTTPublisher, ws *EventWebSocketHandler, blockSize int) *Processor {
	return &Processor{
		ext:        ext,
		reader:     reader,
		writer:     writer,
		metrics:    metrics,
		mqtt:       mqtt,
		ws:         ws,
		blockSize:  blockSize,
		sampleRate: reader.SampleRate(),
	}
}

// Extension returns the underlying DCS extension.
func (p *Processor) Extension() *dcs.DCSExtension {
	return p.ext
}

// SampleRate returns the pipeline sample rate in Hz.
func (p *Processor) SampleRate() int {
	return p.sampleRate
}

// SamplesProcessed returns the number of input samples consumed so far.
func (p *Processor) SamplesProcessed() uint64 {
	return p.samplesProcessed.Load()
}

// DecodeEvents returns the number of decode events observed so far.
func (p *Processor) DecodeEvents() uint64 {
	return p.decodeEvents.Load()
}

// Run processes the input until it is exhausted or the context is
// cancelled.
func (p *Processor) Run(ctx context.Context) error {
	audioChan := make(chan []int16, 4)
	resultChan := make(chan []byte, 64)

	if err := p.ext.Start(audioChan, resultChan); err != nil {
		return fmt.Errorf("failed to start extension: %w", err)
	}
	defer p.ext.Stop()

	// Feed input blocks; the extension closes resultChan once audioChan
	// closes and its last block is processed.
	readErr := make(chan error, 1)
	go func() {
		defer close(audioChan)
		for {
			buf := make([]int16, p.blockSize)
			n, err := p.reader.ReadSamples(buf)
			if n > 0 {
				peak := 0.0
				for _, s := range buf[:n] {
					v := float64(s) / 32768.0
					if v < 0 {
						v = -v
					}
					if v > peak {
						peak = v
					}
				}
				p.samplesProcessed.Add(uint64(n))
				p.metrics.RecordBlock(n, peak)

				select {
				case audioChan <- buf[:n]:
				case <-ctx.Done():
					readErr <- ctx.Err()
					return
				}
			}
			if err != nil {
				// io.EOF is the normal end of input
				if err == io.EOF {
					readErr <- nil
				} else {
					readErr <- fmt.Errorf("failed to read input: %w", err)
				}
				return
			}
		}
	}()

	for msg := range resultChan {
		if err := p.handleMessage(msg); err != nil {
			return err
		}
	}

	return <-readErr
}

// handleMessage demultiplexes one extension message.
func (p *Processor) handleMessage(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}

	switch msg[0] {
	case dcs.MsgTypeCodeDetected:
		if len(msg) < 12 {
			return nil
		}
		code := int(binary.BigEndian.Uint16(msg[9:11]))
		inverted := msg[11] != 0
		p.handleDecodeEvent(code, inverted)

	case dcs.MsgTypeGateState:
		if len(msg) < 6 {
			return nil
		}
		open := msg[1] != 0
		tailSamples := binary.BigEndian.Uint32(msg[2:6])
		p.handleGateState(open, tailSamples)

	case dcs.MsgTypeAudio:
		if len(msg) < 5 {
			return nil
		}
		count := int(binary.BigEndian.Uint32(msg[1:5]))
		if len(msg) < 5+2*count {
			return nil
		}
		if p.writer == nil {
			return nil
		}
		samples := make([]int16, count)
		for i := range samples {
			samples[i] = int16(binary.BigEndian.Uint16(msg[5+2*i:]))
		}
		if err := p.writer.WriteSamples(samples); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	return nil
}

// handleDecodeEvent fans one decode event out to all sinks. Events
// repeat while a code is present, so the debug log rather than the info
// log carries the per-event line.
func (p *Processor) handleDecodeEvent(code int, inverted bool) {
	p.decodeEvents.Add(1)

	name := dcs.FormatCode(code, inverted)
	open := p.ext.IsOpen()
	tailMs := p.ext.TailRemainingMs()

	if DebugMode {
		log.Printf("DCS: Decoded %s (gate open=%v)", name, open)
	}

	p.metrics.RecordDecodeEvent(name, inverted)
	if p.mqtt != nil {
		p.mqtt.PublishDecodeEvent(name, inverted, open, tailMs)
	}
	if p.ws != nil {
		p.ws.BroadcastDecode(name, inverted, open, tailMs)
	}
}

// handleGateState records a squelch open/close transition.
func (p *Processor) handleGateState(open bool, tailSamples uint32) {
	tailMs := float64(tailSamples) / float64(p.sampleRate) * 1000.0

	state := "closed"
	if open {
		state = "open"
	}
	log.Printf("DCS: Squelch %s", state)

	p.metrics.RecordGateState(open, tailMs)
	if p.ws != nil {
		p.ws.BroadcastGateState(open, tailMs)
	}
}

package dcs

import (
	"fmt"
)

// AudioExtensionParams contains audio stream parameters (from the host,
// not user-configurable).
type AudioExtensionParams struct {
	SampleRate    int // Hz (e.g., 16000)
	Channels      int // Always 1 (mono)
	BitsPerSample int // Always 16
}

// AudioExtension interface for extensible audio processors.
type AudioExtension interface {
	Start(audioChan <-chan []int16, resultChan chan<- []byte) error
	Stop() error
	GetName() string
}

// AudioExtensionFactory is a function that creates a new extension instance.
type AudioExtensionFactory func(audioParams AudioExtensionParams, extensionParams map[string]interface{}) (AudioExtension, error)

// Factory creates a new DCS squelch extension instance.
func Factory(audioParams AudioExtensionParams, extensionParams map[string]interface{}) (AudioExtension, error) {
	if audioParams.Channels != 1 {
		return nil, fmt.Errorf("DCS requires mono audio (got %d channels)", audioParams.Channels)
	}
	if audioParams.BitsPerSample != 16 {
		return nil, fmt.Errorf("DCS requires 16-bit audio (got %d bits)", audioParams.BitsPerSample)
	}
	if audioParams.SampleRate < MinSampleRate {
		return nil, fmt.Errorf("DCS requires at least %d Hz sample rate (got %d)", MinSampleRate, audioParams.SampleRate)
	}

	return NewDCSExtension(audioParams.SampleRate, extensionParams)
}

// GetInfo returns extension metadata.
func GetInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        "dcs",
		"description": "Digital Coded Squelch decoder and audio gate",
		"version":     "1.0.0",
		"parameters": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Target DCS code in octal notation (e.g. 023 or D023N)",
				"default":     "023",
			},
			"inverted": map[string]interface{}{
				"type":        "boolean",
				"description": "Match the inverted (\"N\" suffix) polarity",
				"default":     false,
			},
			"tail_ms": map[string]interface{}{
				"type":        "number",
				"description": "Squelch tail in milliseconds",
				"default":     250.0,
				"min":         0.0,
				"max":         10000.0,
			},
		},
		"output_format": map[string]interface{}{
			"type":        "binary",
			"description": "Binary protocol with code detections, gate state and gated audio",
			"protocol": map[string]interface{}{
				"code_detected": map[string]interface{}{
					"type":        MsgTypeCodeDetected,
					"description": "A confirmed DCS code detection",
					"format":      "[type:1][timestamp:8][code:2][inverted:1]",
				},
				"gate_state": map[string]interface{}{
					"type":        MsgTypeGateState,
					"description": "Squelch gate state change",
					"format":      "[type:1][open:1][tail_samples:4]",
				},
				"audio": map[string]interface{}{
					"type":        MsgTypeAudio,
					"description": "Gated audio block (big-endian int16)",
					"format":      "[type:1][count:4][samples:2*count]",
				},
			},
		},
	}
}

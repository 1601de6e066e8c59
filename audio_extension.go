package main

import (
	"fmt"
	"sync"

	"github.com/cwsl/dcsquelch/audio_extensions/dcs"
)

// AudioExtensionParams describes the PCM stream handed to an extension.
// The host feeds mono 16-bit audio at the input sample rate.
type AudioExtensionParams struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// AudioExtension is a pluggable audio processor: PCM blocks in, typed
// binary messages out. The DCS squelch is the built-in extension; the
// registry keeps the door open for other subaudible schemes.
type AudioExtension interface {
	Start(audioChan <-chan []int16, resultChan chan<- []byte) error
	Stop() error
	GetName() string
}

// AudioExtensionFactory creates a new extension instance.
type AudioExtensionFactory func(audioParams AudioExtensionParams, extensionParams map[string]interface{}) (AudioExtension, error)

// AudioExtensionRegistry manages available audio extension types.
type AudioExtensionRegistry struct {
	factories map[string]AudioExtensionFactory
	info      map[string]map[string]interface{}
	mu        sync.RWMutex
}

// NewAudioExtensionRegistry creates a registry with the built-in
// extensions registered.
func NewAudioExtensionRegistry() *AudioExtensionRegistry {
	r := &AudioExtensionRegistry{
		factories: make(map[string]AudioExtensionFactory),
		info:      make(map[string]map[string]interface{}),
	}

	r.Register("dcs", func(audioParams AudioExtensionParams, extensionParams map[string]interface{}) (AudioExtension, error) {
		ext, err := dcs.Factory(dcs.AudioExtensionParams{
			SampleRate:    audioParams.SampleRate,
			Channels:      audioParams.Channels,
			BitsPerSample: audioParams.BitsPerSample,
		}, extensionParams)
		if err != nil {
			return nil, err
		}
		return ext, nil
	}, dcs.GetInfo())

	return r
}

// Register registers a new audio extension type.
func (aer *AudioExtensionRegistry) Register(name string, factory AudioExtensionFactory, info map[string]interface{}) {
	aer.mu.Lock()
	defer aer.mu.Unlock()

	aer.factories[name] = factory
	aer.info[name] = info
}

// Create creates a new audio extension instance.
func (aer *AudioExtensionRegistry) Create(name string, audioParams AudioExtensionParams, extensionParams map[string]interface{}) (AudioExtension, error) {
	aer.mu.RLock()
	factory, exists := aer.factories[name]
	aer.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("audio extension not found: %s", name)
	}

	return factory(audioParams, extensionParams)
}

// List returns the metadata of all registered audio extensions, keyed by
// name. Served by the /api/extensions endpoint.
func (aer *AudioExtensionRegistry) List() map[string]map[string]interface{} {
	aer.mu.RLock()
	defer aer.mu.RUnlock()

	list := make(map[string]map[string]interface{}, len(aer.info))
	for name, info := range aer.info {
		list[name] = info
	}

	return list
}

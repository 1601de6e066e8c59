package main

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/cwsl/dcsquelch/audio_extensions/dcs"
)

// StatusResponse represents the /api/status JSON document
type StatusResponse struct {
	Timestamp     string  `json:"timestamp"`
	TargetCode    string  `json:"target_code"` // octal notation
	GateOpen      bool    `json:"gate_open"`
	TailRemaining float64 `json:"tail_remaining_ms"`
	SampleRate    int     `json:"sample_rate"`

	SamplesProcessed uint64  `json:"samples_processed"`
	DecodeEvents     uint64  `json:"decode_events"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	CPUPercent    float64 `json:"cpu_percent"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	Goroutines    int     `json:"goroutines"`
}

// handleStatus serves the current squelch and process state
func handleStatus(w http.ResponseWriter, r *http.Request, proc *Processor, startTime time.Time) {
	w.Header().Set("Content-Type", "application/json")

	ext := proc.Extension()
	code, inverted := ext.Target()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Instantaneous system CPU reading; 0 interval compares against the
	// previous call
	cpuPercent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	response := StatusResponse{
		Timestamp:        time.Now().Format(time.RFC3339),
		TargetCode:       dcs.FormatCode(code, inverted),
		GateOpen:         ext.IsOpen(),
		TailRemaining:    ext.TailRemainingMs(),
		SampleRate:       proc.SampleRate(),
		SamplesProcessed: proc.SamplesProcessed(),
		DecodeEvents:     proc.DecodeEvents(),
		UptimeSeconds:    time.Since(startTime).Seconds(),
		CPUPercent:       cpuPercent,
		MemoryAllocMB:    float64(m.Alloc) / 1024.0 / 1024.0,
		Goroutines:       runtime.NumGoroutine(),
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding status response: %v", err)
	}
}

// TargetRequest is the body of a retune request
type TargetRequest struct {
	Code string `json:"code"` // octal notation, e.g. "023" or "D023N"
}

// handleSetTarget retunes the squelch to a new code. The gate closes
// until the new code is confirmed.
func handleSetTarget(w http.ResponseWriter, r *http.Request, proc *Processor) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "POST required"})
		return
	}

	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
		return
	}

	code, inverted, err := dcs.ParseCode(req.Code)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if err := proc.Extension().SetTarget(code, inverted); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"target_code": dcs.FormatCode(code, inverted),
	})
}

// handleExtensions lists the registered audio extensions
func handleExtensions(w http.ResponseWriter, r *http.Request, registry *AudioExtensionRegistry) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(registry.List()); err != nil {
		log.Printf("Error encoding extensions response: %v", err)
	}
}

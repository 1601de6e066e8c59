package main

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metric collectors for the
// squelch pipeline and process resources
type PrometheusMetrics struct {
	// Decode metrics (with 'code' and 'polarity' labels)
	decodeEventsTotal *prometheus.CounterVec // Confirmed code detections

	// Gate metrics
	gateOpen             prometheus.Gauge       // 1 when the squelch is open
	gateTransitionsTotal *prometheus.CounterVec // Open/close transitions (by direction)
	tailRemainingMs      prometheus.Gauge       // Remaining squelch tail in ms at the last transition

	// Pipeline metrics
	samplesProcessedTotal prometheus.Counter // Total audio samples processed
	blocksProcessedTotal  prometheus.Counter // Total audio blocks processed
	audioPeakLevel        prometheus.Gauge   // Peak input level of the last block (0-1)

	// Resource metrics
	goroutineCount   prometheus.Gauge // Current number of goroutines
	memoryAllocBytes prometheus.Gauge // Current memory allocated in bytes
	memoryHeapBytes  prometheus.Gauge // Current heap memory in bytes
}

// NewPrometheusMetrics creates and registers all metric collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		decodeEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dcsquelch_decode_events_total",
			Help: "Confirmed DCS code detections, by code and polarity",
		}, []string{"code", "polarity"}),

		gateOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_gate_open",
			Help: "Squelch gate state (1 = open, 0 = closed)",
		}),
		gateTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dcsquelch_gate_transitions_total",
			Help: "Squelch gate transitions, by direction (open/close)",
		}, []string{"direction"}),
		tailRemainingMs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_tail_remaining_ms",
			Help: "Remaining squelch tail in milliseconds at the last gate transition",
		}),

		samplesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dcsquelch_samples_processed_total",
			Help: "Total audio samples processed",
		}),
		blocksProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dcsquelch_blocks_processed_total",
			Help: "Total audio blocks processed",
		}),
		audioPeakLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_audio_peak_level",
			Help: "Peak absolute input level of the last block (full scale = 1)",
		}),

		goroutineCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAllocBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_memory_alloc_bytes",
			Help: "Current memory allocated in bytes",
		}),
		memoryHeapBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcsquelch_memory_heap_bytes",
			Help: "Current heap memory in bytes",
		}),
	}
}

// RecordDecodeEvent counts one confirmed code detection.
func (pm *PrometheusMetrics) RecordDecodeEvent(code string, inverted bool) {
	polarity := "normal"
	if inverted {
		polarity = "inverted"
	}
	pm.decodeEventsTotal.WithLabelValues(code, polarity).Inc()
}

// RecordGateState updates the gate gauges and transition counters.
func (pm *PrometheusMetrics) RecordGateState(open bool, tailMs float64) {
	if open {
		pm.gateOpen.Set(1)
		pm.gateTransitionsTotal.WithLabelValues("open").Inc()
	} else {
		pm.gateOpen.Set(0)
		pm.gateTransitionsTotal.WithLabelValues("close").Inc()
	}
	pm.tailRemainingMs.Set(tailMs)
}

// RecordBlock counts one processed audio block.
func (pm *PrometheusMetrics) RecordBlock(samples int, peakLevel float64) {
	pm.samplesProcessedTotal.Add(float64(samples))
	pm.blocksProcessedTotal.Inc()
	pm.audioPeakLevel.Set(peakLevel)
}

// StartResourceMetricsUpdater periodically samples runtime resource
// usage until the context is cancelled.
func (pm *PrometheusMetrics) StartResourceMetricsUpdater(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		pm.updateResourceMetrics()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pm.updateResourceMetrics()
			}
		}
	}()
}

func (pm *PrometheusMetrics) updateResourceMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pm.goroutineCount.Set(float64(runtime.NumGoroutine()))
	pm.memoryAllocBytes.Set(float64(m.Alloc))
	pm.memoryHeapBytes.Set(float64(m.HeapAlloc))
}

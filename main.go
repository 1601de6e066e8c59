package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/dcsquelch/audio_extensions/dcs"
)

const appVersion = "1.0.0"

// Global debug flag
var DebugMode bool

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dcsquelch %s\n", appVersion)
		return
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	DebugMode = *debug || config.Logging.Debug

	targetCode, targetInverted, err := config.Target()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	reader, err := openInput(&config.Input)
	if err != nil {
		log.Fatalf("Input error: %v", err)
	}
	defer reader.Close()

	sampleRate := reader.SampleRate()
	log.Printf("DCS squelch: target=%s tail=%.0f ms sample_rate=%d input=%s",
		dcs.FormatCode(targetCode, targetInverted), config.Squelch.TailMs, sampleRate, config.Input.Path)

	writer, err := openOutput(&config.Output, sampleRate)
	if err != nil {
		log.Fatalf("Output error: %v", err)
	}

	metrics := NewPrometheusMetrics()
	wsHandler := NewEventWebSocketHandler()

	var mqttPublisher *MQTTPublisher
	if config.MQTT.Enabled {
		mqttPublisher, err = NewMQTTPublisher(&config.MQTT)
		if err != nil {
			log.Fatalf("MQTT error: %v", err)
		}
	}

	registry := NewAudioExtensionRegistry()
	ext, err := registry.Create("dcs", AudioExtensionParams{
		SampleRate:    sampleRate,
		Channels:      1,
		BitsPerSample: 16,
	}, map[string]interface{}{
		"code":     config.Squelch.Code,
		"inverted": config.Squelch.Inverted,
		"tail_ms":  config.Squelch.TailMs,
	})
	if err != nil {
		log.Fatalf("Extension error: %v", err)
	}
	dcsExt := ext.(*dcs.DCSExtension)

	processor := NewProcessor(dcsExt, reader, writer, metrics, mqttPublisher, wsHandler, config.Input.BlockSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down", sig)
		cancel()
	}()

	metrics.StartResourceMetricsUpdater(ctx)
	if mqttPublisher != nil {
		mqttPublisher.StartPublisher(ctx)
	}

	startTime := time.Now()

	var httpServer *http.Server
	if config.Server.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
			handleStatus(w, r, processor, startTime)
		})
		mux.HandleFunc("/api/extensions", func(w http.ResponseWriter, r *http.Request) {
			handleExtensions(w, r, registry)
		})
		mux.HandleFunc("/api/target", func(w http.ResponseWriter, r *http.Request) {
			handleSetTarget(w, r, processor)
		})
		mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

		httpServer = &http.Server{
			Addr:    config.Server.Listen,
			Handler: mux,
		}
		go func() {
			log.Printf("HTTP server listening on %s", config.Server.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	runErr := processor.Run(ctx)

	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("Output close error: %v", err)
		}
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		httpServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if mqttPublisher != nil {
		mqttPublisher.Disconnect()
	}

	if runErr != nil && runErr != context.Canceled {
		log.Fatalf("Pipeline error: %v", runErr)
	}

	log.Printf("Done: %d samples processed, %d decode events, gate open=%v",
		processor.SamplesProcessed(), processor.DecodeEvents(), dcsExt.IsOpen())
}

// openInput opens the configured audio source.
func openInput(cfg *InputConfig) (SampleReader, error) {
	switch cfg.Format {
	case "wav":
		return OpenWAV(cfg.Path)
	case "raw":
		if cfg.Path == "-" {
			return NewRawReader(os.Stdin, cfg.SampleRate), nil
		}
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open raw input: %w", err)
		}
		return NewRawReader(f, cfg.SampleRate), nil
	default:
		return nil, fmt.Errorf("unknown input format %q", cfg.Format)
	}
}

// openOutput opens the configured audio sink. Returns nil for
// decode-only operation (no output path).
func openOutput(cfg *OutputConfig, sampleRate int) (SampleWriter, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	switch cfg.Format {
	case "wav":
		return NewWAVWriter(cfg.Path, sampleRate, 1, 16)
	case "raw":
		if cfg.Path == "-" {
			return NewRawWriter(os.Stdout), nil
		}
		f, err := os.Create(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create raw output: %w", err)
		}
		return NewRawWriter(f), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}

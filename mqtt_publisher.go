package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTPublisher publishes decode events and periodic status snapshots
type MQTTPublisher struct {
	client mqtt.Client
	config *MQTTConfig
}

// EventPayload represents a decode event message for MQTT
type EventPayload struct {
	Timestamp int64   `json:"timestamp"`
	Code      string  `json:"code"` // octal notation, e.g. "D023N"
	Inverted  bool    `json:"inverted"`
	GateOpen  bool    `json:"gate_open"`
	TailMs    float64 `json:"tail_ms"`
}

// StatusPayload represents a periodic metrics snapshot for MQTT
type StatusPayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// generateClientID creates a random client ID for the MQTT connection
func generateClientID() string {
	return "dcsquelch_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// loadTLSConfig loads TLS configuration from files
func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// NewMQTTPublisher creates a new MQTT publisher and connects to the broker
func NewMQTTPublisher(config *MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Successfully connected to broker: %s", config.Broker)

	return &MQTTPublisher{
		client: client,
		config: config,
	}, nil
}

// PublishDecodeEvent publishes one decode event.
// Topic structure: {prefix}/events/{code}, e.g. dcsquelch/events/D023
func (mp *MQTTPublisher) PublishDecodeEvent(code string, inverted bool, gateOpen bool, tailMs float64) {
	if mp == nil || !mp.client.IsConnected() {
		return
	}

	payload := EventPayload{
		Timestamp: time.Now().Unix(),
		Code:      code,
		Inverted:  inverted,
		GateOpen:  gateOpen,
		TailMs:    tailMs,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal event payload: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/events/%s", mp.config.TopicPrefix, code)

	// Publish asynchronously - don't wait for completion (prevents blocking
	// the audio pipeline)
	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)

	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT ERROR: Failed to publish event to %s: %v", topic, token.Error())
		}
	}()
}

// StartPublisher starts the periodic status publishing goroutine
func (mp *MQTTPublisher) StartPublisher(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Duration(mp.config.PublishInterval) * time.Second)
		defer ticker.Stop()

		log.Printf("MQTT: Status publisher started with %d second interval", mp.config.PublishInterval)

		mp.publishStatus()

		for {
			select {
			case <-ctx.Done():
				log.Println("MQTT: Status publisher stopped")
				return
			case <-ticker.C:
				mp.publishStatus()
			}
		}
	}()
}

// publishStatus gathers the Prometheus registry and publishes a snapshot
func (mp *MQTTPublisher) publishStatus() {
	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("MQTT ERROR: Failed to gather Prometheus metrics: %v", err)
		return
	}

	metrics := make(map[string]float64)
	for _, mf := range metricFamilies {
		name := mf.GetName()
		if !strings.HasPrefix(name, "dcsquelch_") {
			continue
		}

		for _, m := range mf.GetMetric() {
			value := extractMetricValue(m)
			if value == nil {
				continue
			}

			key := name
			for _, label := range m.GetLabel() {
				key += "_" + label.GetName() + "_" + label.GetValue()
			}
			metrics[key] = *value
		}
	}

	if len(metrics) == 0 {
		return
	}

	payload := StatusPayload{
		Timestamp: time.Now().Unix(),
		Metrics:   metrics,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal status payload: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/status", mp.config.TopicPrefix)
	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("MQTT ERROR: Failed to publish status to %s: %v", topic, token.Error())
	}
}

// extractMetricValue extracts the numeric value from a Prometheus metric
func extractMetricValue(m *dto.Metric) *float64 {
	if m.GetGauge() != nil {
		v := m.GetGauge().GetValue()
		return &v
	}
	if m.GetCounter() != nil {
		v := m.GetCounter().GetValue()
		return &v
	}
	if m.GetHistogram() != nil {
		v := m.GetHistogram().GetSampleSum()
		return &v
	}
	return nil
}

// Disconnect gracefully disconnects from the MQTT broker
func (mp *MQTTPublisher) Disconnect() {
	if mp != nil && mp.client != nil && mp.client.IsConnected() {
		mp.client.Disconnect(250)
		log.Println("MQTT: Disconnected from broker")
	}
}

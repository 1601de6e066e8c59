package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/dcsquelch/audio_extensions/dcs"
)

// Config represents the application configuration
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Squelch SquelchConfig `yaml:"squelch"`
	Server  ServerConfig  `yaml:"server"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig describes the audio source: a WAV file, or raw signed
// 16-bit little-endian PCM from a file or stdin ("-").
type InputConfig struct {
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`      // "wav" or "raw"
	SampleRate int    `yaml:"sample_rate"` // required for raw input
	BlockSize  int    `yaml:"block_size"`  // samples per processing block
}

// OutputConfig describes where the gated audio goes. Empty path discards
// the output (decode-only operation).
type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // "wav" or "raw"
}

// SquelchConfig contains the DCS squelch parameters.
type SquelchConfig struct {
	Code     string  `yaml:"code"`     // octal notation, e.g. "023" or "D023N"
	Inverted bool    `yaml:"inverted"` // match the "N"-suffix polarity
	TailMs   float64 `yaml:"tail_ms"`  // hold time after the code disappears
}

// ServerConfig contains the monitoring HTTP server settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig contains MQTT event publishing settings.
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`
	QoS             byte          `yaml:"qos"`
	Retain          bool          `yaml:"retain"`
	PublishInterval int           `yaml:"publish_interval"` // status interval in seconds
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains optional TLS settings for the MQTT connection.
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Format:    "wav",
			BlockSize: 4096,
		},
		Output: OutputConfig{
			Format: "wav",
		},
		Squelch: SquelchConfig{
			Code:   "023",
			TailMs: 250.0,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		MQTT: MQTTConfig{
			TopicPrefix:     "dcsquelch",
			QoS:             0,
			PublishInterval: 30,
		},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	switch c.Input.Format {
	case "wav":
	case "raw":
		if c.Input.SampleRate < dcs.MinSampleRate {
			return fmt.Errorf("input.sample_rate %d is too low for raw input (minimum %d)",
				c.Input.SampleRate, dcs.MinSampleRate)
		}
	default:
		return fmt.Errorf("input.format must be \"wav\" or \"raw\", got %q", c.Input.Format)
	}

	if c.Output.Path != "" {
		switch c.Output.Format {
		case "wav", "raw":
		default:
			return fmt.Errorf("output.format must be \"wav\" or \"raw\", got %q", c.Output.Format)
		}
	}

	if c.Input.BlockSize <= 0 {
		return fmt.Errorf("input.block_size must be positive, got %d", c.Input.BlockSize)
	}

	if _, _, err := dcs.ParseCode(c.Squelch.Code); err != nil {
		return fmt.Errorf("squelch.code: %w", err)
	}
	if c.Squelch.TailMs < 0 {
		return fmt.Errorf("squelch.tail_ms must be non-negative, got %v", c.Squelch.TailMs)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when MQTT is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	return nil
}

// Target resolves the configured squelch code to its decimal code number
// and polarity. An "N" suffix on the code string or the inverted flag
// both select inverted polarity.
func (c *Config) Target() (code int, inverted bool, err error) {
	code, inverted, err = dcs.ParseCode(c.Squelch.Code)
	if err != nil {
		return 0, false, err
	}
	if c.Squelch.Inverted {
		inverted = true
	}
	return code, inverted, nil
}

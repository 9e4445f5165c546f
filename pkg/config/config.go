package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/techop/httpmetrics/pkg/metricsjson"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultPort is the port served when none is configured.
const DefaultPort = 8080

// Config is the complete host configuration.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ServerConfig controls the HTTP endpoint.
type ServerConfig struct {
	// BindAddress is the interface to listen on; empty means all interfaces.
	BindAddress string `json:"bindAddress" yaml:"bindAddress"`

	// Port is the TCP port; 0 picks a free port.
	Port int `json:"port" yaml:"port"`

	ReadTimeout     time.Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// ThreadDumpRate limits /threads to this many dumps per second, with
	// bursts of ThreadDumpBurst. Zero means unlimited.
	ThreadDumpRate  float64 `json:"threadDumpRate,omitempty" yaml:"threadDumpRate,omitempty"`
	ThreadDumpBurst int     `json:"threadDumpBurst,omitempty" yaml:"threadDumpBurst,omitempty"`

	// MaxConnections caps simultaneous connections; zero means no cap.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
}

// LoggingConfig controls operational logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format"`

	// File additionally writes JSON log lines to this path.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// MetricsConfig controls what /metrics reports.
type MetricsConfig struct {
	// FullSamples includes raw reservoir values unless a request overrides it.
	FullSamples bool `json:"fullSamples" yaml:"fullSamples"`

	// Exclude lists name globs that are never reported.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Prometheus also reports the metrics of the default client_golang
	// registry, prefixed with PrometheusPrefix.
	Prometheus       bool   `json:"prometheus" yaml:"prometheus"`
	PrometheusPrefix string `json:"prometheusPrefix,omitempty" yaml:"prometheusPrefix,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range 0-65535", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: server timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Server.ThreadDumpRate < 0 || c.Server.ThreadDumpBurst < 0 {
		return fmt.Errorf("%w: thread dump limits must not be negative", ErrInvalidConfig)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("%w: server.maxConnections must not be negative", ErrInvalidConfig)
	}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level %q (must be debug, info, warn or error)", ErrInvalidConfig, c.Logging.Level)
	}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format %q (must be text or json)", ErrInvalidConfig, c.Logging.Format)
	}
	if err := metricsjson.ValidatePatterns(c.Metrics.Exclude...); err != nil {
		return fmt.Errorf("%w: metrics.exclude: %w", ErrInvalidConfig, err)
	}
	return nil
}

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/techop/httpmetrics/pkg/config"
	"github.com/techop/httpmetrics/pkg/logging"
	"github.com/techop/httpmetrics/pkg/metrics"
	"github.com/techop/httpmetrics/pkg/metrics/promsource"
)

// loadConfig resolves the configuration and applies the persistent flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = strings.ToLower(logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the operational logger. When a log file is configured,
// records also go there as JSON. The returned closer releases the file.
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := logging.ParseLevel(cfg.Level)
	console := logging.NewHandler(logging.Config{
		Level:  level,
		Format: logging.ParseFormat(cfg.Format),
		Output: stderr,
	})
	if cfg.File == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := logging.NewHandler(logging.Config{
		Level:  level,
		Format: logging.FormatJSON,
		Output: f,
	})
	return slog.New(logging.NewMultiHandler(console, file)), f.Close, nil
}

// registryFor returns the metrics this process reports: the default
// registry, plus the default Prometheus registry when enabled.
func registryFor(cfg config.MetricsConfig) metrics.Reader {
	if !cfg.Prometheus {
		return metrics.Default()
	}
	return metrics.Readers(
		metrics.Default(),
		promsource.New(prometheus.DefaultGatherer, promsource.WithPrefix(cfg.PrometheusPrefix)),
	)
}

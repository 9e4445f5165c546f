// Package logging provides structured logging configuration for httpmetrics.
//
// This package wraps log/slog to provide consistent logging across all
// httpmetrics components. It supports configurable log levels and output formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("metrics server started", "bind", "0.0.0.0", "port", 8080)
//	logger.Warn("metrics server failed to start", "error", err)
//
// # Log Levels
//
// Four log levels are supported:
//   - Debug: access log lines and unavailable OS figures
//   - Info: lifecycle transitions
//   - Warn: bind, stop and handler failures, which are never fatal
//   - Error: reserved for the host
//
// # Output Formats
//
//   - Text: Human-readable format for development
//   - JSON: Structured format for log aggregation systems
//
// Several handlers can be combined with NewMultiHandler, e.g. text on stderr
// plus JSON into a file.
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via an option.
// If no logger is provided, use logging.Nop() for a no-op logger.
package logging

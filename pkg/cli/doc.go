// Package cli implements the httpmetrics command line.
//
// Commands:
//   - serve: run the metrics endpoint in the foreground until interrupted
//   - metrics: print the JSON metrics document of this process
//   - threads: print a goroutine dump of this process
//   - version: print build information
//
// Every command reads the same configuration as serve, see package config.
package cli

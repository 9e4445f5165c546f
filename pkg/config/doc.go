// Package config provides the configuration of the httpmetrics host process.
//
// Configuration is resolved in four layers, each overriding the previous:
//
//  1. Defaults from Default()
//  2. A YAML file, given with --config or HTTPMETRICS_CONFIG
//  3. Environment variables (HTTPMETRICS_BIND, HTTPMETRICS_PORT,
//     HTTPMETRICS_LOG_LEVEL, HTTPMETRICS_LOG_FORMAT)
//  4. Command line flags, applied by the cli package
//
// File-based Configuration:
//
// The YAML format mirrors the Config structure:
//
//	server:
//	  bindAddress: 127.0.0.1
//	  port: 8080
//	  shutdownTimeout: 5s
//	  threadDumpRate: 0.2
//	logging:
//	  level: info
//	  format: json
//	metrics:
//	  fullSamples: false
//	  exclude: ["debug.**"]
//
// Values may reference environment variables with ${VAR} or ${VAR:-default}.
package config

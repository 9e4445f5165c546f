package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv and Load.
const (
	EnvConfig    = "HTTPMETRICS_CONFIG"
	EnvBind      = "HTTPMETRICS_BIND"
	EnvPort      = "HTTPMETRICS_PORT"
	EnvLogLevel  = "HTTPMETRICS_LOG_LEVEL"
	EnvLogFormat = "HTTPMETRICS_LOG_FORMAT"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the HTTPMETRICS_* variables that are set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvBind); ok {
		cfg.Server.BindAddress = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands environment variables in the input string.
// Supports ${VAR_NAME} and ${VAR_NAME:-default} syntax.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

package metrics

import "sync"

var (
	// defaultRegistry is the process-wide metrics registry.
	defaultRegistry *Registry

	// defaultMu guards defaultRegistry.
	defaultMu sync.Mutex
)

// Default returns the process-wide registry, creating it on first use.
// This function is safe to call from multiple goroutines.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// ResetDefault discards the process-wide registry. Useful for testing.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultRegistry = nil
}

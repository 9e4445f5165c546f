// Package vitals reports process-level figures (memory, garbage collection,
// goroutines, OS threads, file descriptors) that accompany the metrics dump.
package vitals

// Provider supplies the current process vitals.
type Provider interface {
	Vitals() (*Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func() (*Snapshot, error)

// Vitals calls f.
func (f ProviderFunc) Vitals() (*Snapshot, error) { return f() }

// Snapshot is a point-in-time view of the process.
type Snapshot struct {
	Runtime         RuntimeInfo      `json:"runtime"`
	Memory          Memory           `json:"memory"`
	GC              GC               `json:"garbage_collector"`
	GoroutineCount  int              `json:"goroutine_count"`
	ThreadCount     int              `json:"thread_count"`
	FileDescriptors *FileDescriptors `json:"file_descriptors,omitempty"`
	// CurrentTime is milliseconds since the Unix epoch.
	CurrentTime int64 `json:"current_time"`
	// Uptime is in seconds.
	Uptime float64 `json:"uptime"`
}

// RuntimeInfo identifies the runtime.
type RuntimeInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	NumCPU     int    `json:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}

// Memory figures are in bytes, except HeapUsage which is HeapAlloc/HeapSys.
type Memory struct {
	HeapAlloc    uint64  `json:"heap_alloc"`
	HeapSys      uint64  `json:"heap_sys"`
	HeapIdle     uint64  `json:"heap_idle"`
	HeapInuse    uint64  `json:"heap_inuse"`
	HeapReleased uint64  `json:"heap_released"`
	HeapObjects  uint64  `json:"heap_objects"`
	StackInuse   uint64  `json:"stack_inuse"`
	Sys          uint64  `json:"sys"`
	TotalAlloc   uint64  `json:"total_alloc"`
	HeapUsage    float64 `json:"heap_usage"`
	RSS          uint64  `json:"rss,omitempty"`
}

// GC describes the garbage collector. Durations are in milliseconds.
type GC struct {
	Runs         uint32  `json:"runs"`
	PauseTotalMs float64 `json:"pause_total_ms"`
	LastPauseMs  float64 `json:"last_pause_ms"`
	CPUFraction  float64 `json:"cpu_fraction"`
	NextTarget   uint64  `json:"next_target"`
}

// FileDescriptors reports open descriptors against the soft limit.
type FileDescriptors struct {
	Open  int64   `json:"open"`
	Max   int64   `json:"max,omitempty"`
	Usage float64 `json:"usage,omitempty"`
}

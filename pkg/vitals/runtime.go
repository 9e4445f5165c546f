package vitals

import (
	"log/slog"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/techop/httpmetrics/pkg/logging"
)

// RuntimeProvider reports vitals of the current Go process.
type RuntimeProvider struct {
	startTime time.Time
	now       func() time.Time
	proc      *process.Process
	log       *slog.Logger
}

// Option configures a RuntimeProvider.
type Option func(*RuntimeProvider)

// WithLogger sets the logger used for unavailable OS figures.
func WithLogger(log *slog.Logger) Option {
	return func(p *RuntimeProvider) {
		if log != nil {
			p.log = log
		}
	}
}

// WithStartTime overrides the time uptime is measured from.
func WithStartTime(t time.Time) Option {
	return func(p *RuntimeProvider) {
		p.startTime = t
	}
}

// NewRuntimeProvider creates a provider for the current process. Uptime is
// measured from the call unless WithStartTime is given.
func NewRuntimeProvider(opts ...Option) *RuntimeProvider {
	p := &RuntimeProvider{
		startTime: time.Now(),
		now:       time.Now,
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32
	if err != nil {
		p.log.Debug("process statistics unavailable", "error", err)
	} else {
		p.proc = proc
	}
	return p
}

// Vitals reads the current runtime and OS figures. OS figures that the
// platform does not support are left zero or nil.
func (p *RuntimeProvider) Vitals() (*Snapshot, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := p.now()
	snap := &Snapshot{
		Runtime: RuntimeInfo{
			Name:       "go",
			Version:    runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NumCPU:     runtime.NumCPU(),
			GOMAXPROCS: runtime.GOMAXPROCS(0),
		},
		Memory: Memory{
			HeapAlloc:    mem.HeapAlloc,
			HeapSys:      mem.HeapSys,
			HeapIdle:     mem.HeapIdle,
			HeapInuse:    mem.HeapInuse,
			HeapReleased: mem.HeapReleased,
			HeapObjects:  mem.HeapObjects,
			StackInuse:   mem.StackInuse,
			Sys:          mem.Sys,
			TotalAlloc:   mem.TotalAlloc,
		},
		GC: GC{
			Runs:         mem.NumGC,
			PauseTotalMs: float64(mem.PauseTotalNs) / 1e6,
			CPUFraction:  mem.GCCPUFraction,
			NextTarget:   mem.NextGC,
		},
		GoroutineCount: runtime.NumGoroutine(),
		CurrentTime:    now.UnixMilli(),
		Uptime:         now.Sub(p.startTime).Seconds(),
	}

	if mem.HeapSys > 0 {
		snap.Memory.HeapUsage = float64(mem.HeapAlloc) / float64(mem.HeapSys)
	}

	// PauseNs is a circular buffer of the most recent 256 pauses.
	if mem.NumGC > 0 {
		snap.GC.LastPauseMs = float64(mem.PauseNs[(mem.NumGC-1)%256]) / 1e6
	}

	p.readProcess(snap)
	return snap, nil
}

func (p *RuntimeProvider) readProcess(snap *Snapshot) {
	if p.proc == nil {
		snap.ThreadCount = threadCreateCount()
		return
	}

	if info, err := p.proc.MemoryInfo(); err == nil {
		snap.Memory.RSS = info.RSS
	}

	if n, err := p.proc.NumThreads(); err == nil {
		snap.ThreadCount = int(n)
	} else {
		snap.ThreadCount = threadCreateCount()
	}

	open, err := p.proc.NumFDs()
	if err != nil {
		p.log.Debug("file descriptor count unavailable", "error", err)
		return
	}
	fds := &FileDescriptors{Open: int64(open)}
	if limits, err := p.proc.Rlimit(); err == nil {
		for _, l := range limits {
			if l.Resource == process.RLIMIT_NOFILE && l.Soft <= math.MaxInt64 {
				fds.Max = int64(l.Soft)
			}
		}
	}
	if fds.Max > 0 {
		fds.Usage = float64(fds.Open) / float64(fds.Max)
	}
	snap.FileDescriptors = fds
}

// threadCreateCount returns the number of OS threads via the pprof
// "threadcreate" profile, which tracks threads created by the runtime.
func threadCreateCount() int {
	p := pprof.Lookup("threadcreate")
	if p == nil {
		return 0
	}
	return p.Count()
}

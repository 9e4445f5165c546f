package threaddump

import (
	"errors"
	"runtime"

	"golang.org/x/sync/singleflight"
)

// ErrTruncated reports that the dump exceeded the source's size limit.
var ErrTruncated = errors.New("goroutine dump truncated")

const (
	initialBufferSize = 64 << 10
	// DefaultMaxDumpSize bounds the memory a single dump may take.
	DefaultMaxDumpSize = 64 << 20
)

// StackSource produces a full goroutine dump in runtime.Stack format.
// A source may return a partial dump together with an error.
type StackSource interface {
	Stacks() ([]byte, error)
}

// StackSourceFunc adapts a function to the StackSource interface.
type StackSourceFunc func() ([]byte, error)

// Stacks calls f.
func (f StackSourceFunc) Stacks() ([]byte, error) { return f() }

// RuntimeSource reads the dump of the current process.
type RuntimeSource struct {
	// MaxBytes caps the buffer; zero means DefaultMaxDumpSize.
	MaxBytes int
}

// Stacks calls runtime.Stack with a buffer that doubles until the dump fits.
func (s RuntimeSource) Stacks() ([]byte, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxDumpSize
	}
	size := min(initialBufferSize, limit)
	for {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < size {
			return buf[:n], nil
		}
		if size >= limit {
			return buf[:n], ErrTruncated
		}
		size = min(size*2, limit)
	}
}

// Collector captures snapshots from a StackSource. Concurrent Collect calls
// share a single capture.
type Collector struct {
	source StackSource
	group  singleflight.Group
}

// Option configures a Collector.
type Option func(*Collector)

// WithStackSource replaces the runtime as the dump source.
func WithStackSource(s StackSource) Option {
	return func(c *Collector) {
		if s != nil {
			c.source = s
		}
	}
}

// NewCollector creates a Collector reading the current process.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{source: RuntimeSource{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect captures every goroutine. It never fails: a source error becomes
// the snapshot's note and whatever was read is still reported.
func (c *Collector) Collect() *Snapshot {
	v, _, _ := c.group.Do("stacks", func() (any, error) {
		dump, err := c.source.Stacks()
		snap := &Snapshot{Threads: Parse(dump)}
		if err != nil {
			snap.Note = err.Error()
		}
		return snap, nil
	})
	return v.(*Snapshot).clone()
}

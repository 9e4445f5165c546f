// Package threaddump captures the goroutines of the running process and
// renders them as a plain-text report ordered by name.
//
// Goroutines are Go's unit of concurrent execution, so the report lists one
// entry per goroutine. Each entry carries a coarse state (RUNNABLE, BLOCKED,
// WAITING, TIMED_WAITING or TERMINATED) derived from the runtime's wait
// reason, which is kept verbatim alongside it.
package threaddump

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// State is the coarse scheduling state of a goroutine.
type State string

// Goroutine states.
const (
	StateRunnable     State = "RUNNABLE"
	StateBlocked      State = "BLOCKED"
	StateWaiting      State = "WAITING"
	StateTimedWaiting State = "TIMED_WAITING"
	StateTerminated   State = "TERMINATED"
)

// Frame is one entry of a stack trace.
type Frame struct {
	// Package is the import path of the declaring package; empty for
	// builtins such as panic.
	Package string
	// Function is the symbol within Package, including any receiver.
	Function string
	// File and Line are zero when the runtime printed no location.
	File string
	Line int
}

// Symbol returns the fully qualified function name.
func (f Frame) Symbol() string {
	if f.Package == "" {
		return f.Function
	}
	return f.Package + "." + f.Function
}

// String renders the frame as symbol(file:line).
func (f Frame) String() string {
	if f.File == "" {
		return f.Symbol() + "(unknown source)"
	}
	return f.Symbol() + "(" + f.File + ":" + strconv.Itoa(f.Line) + ")"
}

// Thread describes a single goroutine.
type Thread struct {
	ID             int64
	Name           string
	State          State
	WaitReason     string
	WaitMinutes    int
	LockedToThread bool
	Frames         []Frame
	// Elided is set when the runtime dropped frames from a deep stack.
	Elided bool
	// CreatedBy is the go statement that started the goroutine, nil for
	// the main goroutine and runtime-internal ones.
	CreatedBy *Frame
	CreatorID int64
	// Note explains a missing or partial trace.
	Note string
}

// Snapshot is an immutable capture of every goroutine, sorted by name.
type Snapshot struct {
	Threads []Thread
	// Note is set when the dump itself was incomplete.
	Note string
}

// clone copies the thread list so callers sharing a capture do not alias it.
func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{Threads: slices.Clone(s.Threads), Note: s.Note}
}

// Len returns the number of goroutines in the snapshot.
func (s *Snapshot) Len() int { return len(s.Threads) }

// Find returns the goroutine with the given id.
func (s *Snapshot) Find(id int64) (Thread, bool) {
	for _, t := range s.Threads {
		if t.ID == id {
			return t, true
		}
	}
	return Thread{}, false
}

// WriteText renders the snapshot. The output depends only on the captured
// goroutines, so two snapshots of the same set render identically.
func (s *Snapshot) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Goroutine dump: %d goroutines\n", len(s.Threads))
	if s.Note != "" {
		fmt.Fprintf(bw, "note: %s\n", s.Note)
	}
	for i := range s.Threads {
		bw.WriteByte('\n')
		writeThread(bw, &s.Threads[i])
	}
	return bw.Flush()
}

// String returns the text report.
func (s *Snapshot) String() string {
	var sb strings.Builder
	_ = s.WriteText(&sb)
	return sb.String()
}

func writeThread(w *bufio.Writer, t *Thread) {
	fmt.Fprintf(w, "%q id=%d state=%s", t.Name, t.ID, t.State)
	if t.WaitReason != "" {
		fmt.Fprintf(w, " reason=%q", t.WaitReason)
	}
	if t.WaitMinutes > 0 {
		fmt.Fprintf(w, " waited=%dm", t.WaitMinutes)
	}
	if t.LockedToThread {
		w.WriteString(" locked-to-thread")
	}
	w.WriteByte('\n')

	for _, f := range t.Frames {
		fmt.Fprintf(w, "    at %s\n", f)
	}
	if t.Elided {
		w.WriteString("    ...additional frames elided...\n")
	}
	if t.CreatedBy != nil {
		fmt.Fprintf(w, "    created by %s", t.CreatedBy)
		if t.CreatorID > 0 {
			fmt.Fprintf(w, " in goroutine %d", t.CreatorID)
		}
		w.WriteByte('\n')
	}
	if t.Note != "" {
		fmt.Fprintf(w, "    note: %s\n", t.Note)
	}
}

package threaddump

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	unavailableMarker = "stack unavailable"
	elidedMarker      = "...additional frames elided..."
	createdByPrefix   = "created by "
)

// headerRe matches "goroutine 18 [chan receive, 2 minutes]:". Tracebacks
// printed with GOTRACEBACK=system put extra fields before the bracket.
var headerRe = regexp.MustCompile(`^goroutine (\d+) (?:.* )?\[(.*)\]:$`)

// Parse converts the text produced by runtime.Stack(buf, true) into
// goroutines sorted by name. Blocks that do not start with a goroutine
// header are skipped; a truncated final block yields whatever frames it holds.
func Parse(dump []byte) []Thread {
	var threads []Thread
	for _, block := range strings.Split(strings.TrimSpace(string(dump)), "\n\n") {
		if t, ok := parseBlock(block); ok {
			threads = append(threads, t)
		}
	}
	slices.SortStableFunc(threads, func(a, b Thread) int {
		return strings.Compare(a.Name, b.Name)
	})
	return threads
}

func parseBlock(block string) (Thread, bool) {
	lines := strings.Split(block, "\n")
	m := headerRe.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return Thread{}, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Thread{}, false
	}

	t := Thread{ID: id, Name: "goroutine " + m[1]}
	parseStatus(&t, m[2])

	// pending is the frame waiting for its tab-indented location line.
	var pending *Frame
	for _, line := range lines[1:] {
		switch {
		case line == "":
		case strings.HasPrefix(line, "\t"):
			loc := strings.TrimSpace(line)
			if pending != nil {
				pending.File, pending.Line = parseLocation(loc)
				pending = nil
				continue
			}
			if strings.Contains(loc, unavailableMarker) {
				t.Note = "stack unavailable, goroutine was running on another thread"
			}
		case line == elidedMarker:
			t.Elided = true
			pending = nil
		case strings.HasPrefix(line, createdByPrefix):
			sym, creator := parseCreatedBy(strings.TrimPrefix(line, createdByPrefix))
			f := splitSymbol(sym)
			t.CreatedBy = &f
			t.CreatorID = creator
			pending = t.CreatedBy
		default:
			t.Frames = append(t.Frames, splitSymbol(stripArgs(line)))
			pending = &t.Frames[len(t.Frames)-1]
		}
	}
	if len(t.Frames) == 0 && t.Note == "" {
		t.Note = "no frames captured"
	}
	return t, true
}

// parseStatus splits "chan receive, 2 minutes, locked to thread".
func parseStatus(t *Thread, status string) {
	parts := strings.Split(status, ", ")
	t.WaitReason = parts[0]
	for _, p := range parts[1:] {
		switch {
		case p == "locked to thread":
			t.LockedToThread = true
		case strings.HasSuffix(p, " minutes"):
			if n, err := strconv.Atoi(strings.TrimSuffix(p, " minutes")); err == nil {
				t.WaitMinutes = n
			}
		}
	}
	t.State = stateOf(t.WaitReason)
}

// stateOf maps a runtime wait reason onto a coarse state. Lock waits count
// as BLOCKED, sleeps as TIMED_WAITING; channel, select, IO and other parks
// are WAITING.
func stateOf(reason string) State {
	// Reasons may carry a qualifier such as "(synctest)".
	if i := strings.Index(reason, " ("); i > 0 {
		reason = reason[:i]
	}
	switch {
	case reason == "running", reason == "runnable", reason == "syscall",
		reason == "idle", reason == "preempted", reason == "copystack":
		return StateRunnable
	case reason == "dead":
		return StateTerminated
	case reason == "sleep":
		return StateTimedWaiting
	case strings.HasPrefix(reason, "semacquire"),
		strings.HasPrefix(reason, "sync.Mutex."),
		strings.HasPrefix(reason, "sync.RWMutex."):
		return StateBlocked
	default:
		return StateWaiting
	}
}

// stripArgs removes the trailing argument list from "pkg.fn(0x1, 0x2)".
// Receivers such as "(*T)" are kept because only the final group is removed.
func stripArgs(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasSuffix(line, ")") {
		return line
	}
	depth := 0
	for i := len(line) - 1; i >= 0; i-- {
		switch line[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return line[:i]
			}
		}
	}
	return line
}

// splitSymbol splits "github.com/a/b.(*T).M" into package and function.
func splitSymbol(sym string) Frame {
	slash := strings.LastIndex(sym, "/")
	dot := strings.Index(sym[slash+1:], ".")
	if dot < 0 {
		return Frame{Function: sym}
	}
	dot += slash + 1
	return Frame{Package: sym[:dot], Function: sym[dot+1:]}
}

// parseCreatedBy splits "main.main in goroutine 1".
func parseCreatedBy(s string) (string, int64) {
	sym, rest, ok := strings.Cut(s, " in goroutine ")
	if !ok {
		return strings.TrimSpace(s), 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil {
		return sym, 0
	}
	return sym, id
}

// parseLocation splits "/src/main.go:12 +0x1d".
func parseLocation(loc string) (string, int) {
	if i := strings.LastIndex(loc, " +0x"); i >= 0 {
		loc = loc[:i]
	}
	i := strings.LastIndex(loc, ":")
	if i < 0 {
		return loc, 0
	}
	line, err := strconv.Atoi(loc[i+1:])
	if err != nil {
		return loc, 0
	}
	return loc[:i], line
}

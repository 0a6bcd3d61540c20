package monitor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kolkov/loopguard/internal/guard/stack"
)

// Delimiters framing a diagnostic block, chosen for easy log-scraping.
const (
	blockDelimiter   = "=================="
	stackStartMarker = "===== LOOP OVERFLOW STACK TRACE ====="
	stackEndMarker   = "====================================="
)

// OverflowReport is one loop overflow diagnostic.
//
// Reports are ephemeral: built when an overflow fires, formatted, and
// discarded. Nothing retains them.
type OverflowReport struct {
	// LoopName is the caller-supplied label for the guarded loop.
	LoopName string

	// Observed is the iteration count or candidate bound that overflowed.
	Observed uint64

	// Threshold is the configured threshold at emission time.
	Threshold uint64

	// Time is when the overflow was observed.
	Time time.Time

	// Frames is the captured call stack, innermost first. Empty when
	// stack traces are disabled or unwinding was unavailable.
	Frames []stack.Frame
}

// Format writes the diagnostic block to w:
//
//	==================
//	WARNING: LOOP OVERFLOW
//	Loop: sync
//	Count: 700000000 | Threshold: 1000000
//	Time: 2026-08-26T10:04:05Z
//	===== LOOP OVERFLOW STACK TRACE =====
//	  main.syncLoop()
//	      /path/to/main.go:14 +0x3b
//	=====================================
//	==================
//
// The stack section, with its start/end delimiter pair, appears only when
// frames were captured. Guard-internal and runtime frames are filtered so the
// first frame shown is the guarded loop itself.
//
//nolint:errcheck // Error handling omitted for diagnostic stream output
func (r *OverflowReport) Format(w io.Writer) {
	fmt.Fprintf(w, "%s\n", blockDelimiter)
	fmt.Fprintf(w, "WARNING: LOOP OVERFLOW\n")
	fmt.Fprintf(w, "Loop: %s\n", r.LoopName)
	fmt.Fprintf(w, "Count: %d | Threshold: %d\n", r.Observed, r.Threshold)
	fmt.Fprintf(w, "Time: %s\n", r.Time.Format(time.RFC3339))

	if frames := filterFrames(r.Frames); len(frames) > 0 {
		fmt.Fprintf(w, "%s\n", stackStartMarker)
		for _, f := range frames {
			fmt.Fprint(w, f.String())
		}
		fmt.Fprintf(w, "%s\n", stackEndMarker)
	}

	fmt.Fprintf(w, "%s\n", blockDelimiter)
}

// String returns the formatted diagnostic. Convenience for tests.
func (r *OverflowReport) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}

// filterFrames drops guard-internal and runtime frames so the diagnostic
// starts at the guarded loop. Frames without symbols are kept: a raw address
// is still better than nothing.
func filterFrames(frames []stack.Frame) []stack.Frame {
	out := frames[:0:0]
	for _, f := range frames {
		if strings.HasPrefix(f.Function, "runtime.") ||
			strings.Contains(f.Function, "loopguard/guard.") ||
			strings.Contains(f.Function, "guard/monitor.(*Monitor)") {
			continue
		}
		out = append(out, f)
	}
	return out
}

// writeSummary writes the end-of-run summary block emitted by Fini.
//
//nolint:errcheck // Error handling omitted for diagnostic stream output
func writeSummary(w io.Writer, s Stats) {
	fmt.Fprintf(w, "\n%s\n", blockDelimiter)
	fmt.Fprintf(w, "Loop Guard Report\n")
	fmt.Fprintf(w, "%s\n", blockDelimiter)
	if s.Overflows == 0 {
		fmt.Fprintf(w, "No loop overflows detected.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %d loop overflow(s) observed, %d diagnostic(s) emitted.\n",
			s.Overflows, s.Emitted)
	}
	fmt.Fprintf(w, "%s\n\n", blockDelimiter)
}

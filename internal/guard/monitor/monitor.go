package monitor

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolkov/loopguard/internal/guard/config"
	"github.com/kolkov/loopguard/internal/guard/stack"
)

// Monitor detects loop overflows and emits diagnostics.
//
// One Monitor is shared by every guarded loop in the process. The check
// methods are the hot path and take no locks: an enabled flag load, a
// threshold load, and one comparison. The only serialization point is the
// emitter mutex, held while formatting and writing a single diagnostic, and
// never nested with any other lock.
type Monitor struct {
	// cfg is the shared configuration state. Always non-nil.
	cfg *config.Config

	// capturer produces stack snapshots for diagnostics. Never invoked
	// when stack traces are disabled in cfg.
	capturer stack.Capturer

	// out is the diagnostic destination. Operational output, not program
	// output: defaults to os.Stderr.
	out io.Writer

	// maxDepth caps the frames per captured stack.
	maxDepth int

	// enabled gates both check methods. When false they return
	// immediately, which keeps a per-iteration check affordable even in
	// tight loops.
	enabled atomic.Bool

	// mu serializes diagnostic emission. It guards both the output stream
	// and the one-shot check-then-set, so no two goroutines can both
	// believe they are first.
	mu sync.Mutex

	// Overflow statistics. Updated only on the overflow path; the fast
	// path touches neither.
	overflows atomic.Uint64
	emitted   atomic.Uint64
}

// Options configures a Monitor. The zero value of every field selects the
// default.
type Options struct {
	// Config is the configuration state to share. Nil means a fresh
	// Config with documented defaults.
	Config *config.Config

	// Capturer is the stack capture strategy. Nil means the runtime
	// unwinder.
	Capturer stack.Capturer

	// Output is the diagnostic destination. Nil means os.Stderr.
	Output io.Writer

	// MaxStackDepth caps frames per diagnostic. Zero means
	// stack.DefaultDepth.
	MaxStackDepth int
}

// New returns a Monitor with default configuration: documented config
// defaults, runtime stack capture, diagnostics to stderr, enabled.
func New() *Monitor {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a Monitor configured by opts.
func NewWithOptions(opts Options) *Monitor {
	m := &Monitor{
		cfg:      opts.Config,
		capturer: opts.Capturer,
		out:      opts.Output,
		maxDepth: opts.MaxStackDepth,
	}
	if m.cfg == nil {
		m.cfg = config.New()
	}
	if m.capturer == nil {
		m.capturer = stack.RuntimeCapturer{}
	}
	if m.out == nil {
		m.out = os.Stderr
	}
	if m.maxDepth <= 0 {
		m.maxDepth = stack.DefaultDepth
	}
	m.enabled.Store(true)
	return m
}

// Config returns the configuration state shared with this Monitor.
func (m *Monitor) Config() *config.Config { return m.cfg }

// CheckSize evaluates a known loop bound before the loop runs. It reports
// whether the caller should skip the loop entirely.
//
// This is the preferred variant when the iteration count is known up front:
// it costs one comparison regardless of loop length. On overflow it emits a
// diagnostic (subject to the one-shot policy) and returns true only when
// circuit breaking is enabled. The return value is advisory: the caller's
// own control flow must act on it.
func (m *Monitor) CheckSize(size uint64, loopName string) bool {
	if !m.enabled.Load() {
		return false
	}
	if size <= m.cfg.Threshold() {
		return false
	}
	m.warn(loopName, size)
	return m.cfg.BreakOnOverflow()
}

// CheckCount is the per-iteration variant for loops whose bound is not
// knowable in advance. It increments the caller-owned counter, compares it
// against the threshold, and reports whether the caller should break out of
// the loop.
//
// The counter belongs to the guarded loop: the Monitor never retains it. The
// non-overflow path is a single increment and compare, no locking. Call once
// per iteration:
//
//	var n uint64
//	for hasNext() {
//		if m.CheckCount(&n, "poll") {
//			break
//		}
//		...
//	}
func (m *Monitor) CheckCount(counter *uint64, loopName string) bool {
	if !m.enabled.Load() {
		return false
	}
	*counter++
	if *counter <= m.cfg.Threshold() {
		return false
	}
	m.warn(loopName, *counter)
	return m.cfg.BreakOnOverflow()
}

// warn emits an overflow diagnostic, honoring the one-shot policy.
//
// The emitter lock covers the fired check, the emission, and the fired set,
// so under concurrent overflow from N goroutines exactly one diagnostic is
// written per generation. The lock is held only while formatting and writing
// one diagnostic, bounded by stack depth and the output destination, never
// by loop length. Contention is expected to be nil: overflow is rare.
func (m *Monitor) warn(loopName string, observed uint64) {
	m.overflows.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Common case after the first emission: cheap early return.
	if m.cfg.WarnOnce() && m.cfg.WarnFired() {
		return
	}

	report := &OverflowReport{
		LoopName:  loopName,
		Observed:  observed,
		Threshold: m.cfg.Threshold(),
		Time:      time.Now(),
	}
	if m.cfg.StackTrace() {
		// Skip warn, CheckSize/CheckCount, and land on the guarded
		// caller. Wrapper frames above that are filtered at format
		// time.
		report.Frames = m.capturer.Capture(2, m.maxDepth)
	}
	report.Format(m.out)
	m.emitted.Add(1)

	// Set the fired flag only after the diagnostic is out, still under
	// the lock. A goroutine that later finds the flag set can trust the
	// diagnostic was written, not merely in progress.
	if m.cfg.WarnOnce() {
		m.cfg.SetWarnFired()
	}
}

// SetThreshold atomically replaces the overflow threshold for all subsequent
// checks, including those in flight on other goroutines.
func (m *Monitor) SetThreshold(n uint64) { m.cfg.SetThreshold(n) }

// Threshold returns the current overflow threshold.
func (m *Monitor) Threshold() uint64 { return m.cfg.Threshold() }

// ResetWarnFlag clears the one-shot fired flag, starting a new generation.
// The next overflow emits again, exactly as the first generation did.
// Intended for test isolation between test cases.
func (m *Monitor) ResetWarnFlag() { m.cfg.ResetWarnFired() }

// Enable turns the guard checks on. Monitors start enabled.
func (m *Monitor) Enable() { m.enabled.Store(true) }

// Disable turns the guard checks into immediate no-ops. Useful around
// sections where instrumented loops are known-safe and even the compare is
// unwanted.
func (m *Monitor) Disable() { m.enabled.Store(false) }

// Enabled reports whether the guard checks are active.
func (m *Monitor) Enabled() bool { return m.enabled.Load() }

// Stats is a snapshot of the Monitor's overflow counters.
type Stats struct {
	// Overflows counts checks that observed a count above the threshold,
	// whether or not a diagnostic was emitted.
	Overflows uint64

	// Emitted counts diagnostics actually written.
	Emitted uint64
}

// Stats returns a snapshot of the overflow counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Overflows: m.overflows.Load(),
		Emitted:   m.emitted.Load(),
	}
}

// Fini disables the monitor and writes a delimited summary to the diagnostic
// destination. Call at program exit, typically deferred right after setup.
func (m *Monitor) Fini() {
	m.enabled.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()
	writeSummary(m.out, m.Stats())
}

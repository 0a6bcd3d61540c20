// Package config holds the shared configuration state for the loop overflow
// guard.
//
// A single Config instance is shared by reference between every guard check
// in the process. All fields are atomics: the guard checks read them on hot
// paths from arbitrary goroutines, and the runtime control API may rewrite
// them at any time without a restart. No operation on Config blocks or
// allocates.
//
// The warn-once fired flag is special: only the warning emitter writes it,
// while holding the emitter lock, after the diagnostic has been written. The
// atomic store acts as a release barrier, so any goroutine that later observes
// the flag set can trust that the diagnostic was in fact emitted, not merely
// "about to be".
package config

import "sync/atomic"

// Documented defaults. These match the configuration the guard ships with in
// production: warn at one million iterations, one diagnostic per process,
// stack traces on, circuit breaking off.
const (
	// DefaultThreshold is the iteration count above which a loop is
	// considered overflowing.
	DefaultThreshold uint64 = 1_000_000

	// DefaultWarnOnce enables the one-shot policy: at most one diagnostic
	// per generation.
	DefaultWarnOnce = true

	// DefaultStackTrace enables call stack capture in diagnostics.
	DefaultStackTrace = true

	// DefaultBreakOnOverflow disables circuit breaking: overflowing loops
	// keep running after the diagnostic.
	DefaultBreakOnOverflow = false
)

// Config is the process-wide configuration state for the guard.
//
// Construct it once at startup with New and share it by reference. Threshold
// and the policy flags can be flipped at any time from any goroutine; checks
// already in flight observe the new value on their next atomic load. A loop
// reconfigured mid-run is not guaranteed a single consistent threshold across
// its whole run. That race is accepted.
type Config struct {
	// threshold is the iteration count above which a loop overflows.
	threshold atomic.Uint64

	// warnOnce suppresses all but the first diagnostic per generation.
	warnOnce atomic.Bool

	// warnFired records that a diagnostic has been emitted in the current
	// generation. Written only by the warning emitter under its lock;
	// cleared by ResetWarnFired to start a new generation.
	warnFired atomic.Bool

	// stackTrace enables stack capture in diagnostics. Startup-time toggle
	// in normal operation; atomic anyway, the cost is negligible.
	stackTrace atomic.Bool

	// breakOnOverflow makes overflow checks request loop termination.
	breakOnOverflow atomic.Bool
}

// New returns a Config populated with the documented defaults.
func New() *Config {
	c := &Config{}
	c.threshold.Store(DefaultThreshold)
	c.warnOnce.Store(DefaultWarnOnce)
	c.stackTrace.Store(DefaultStackTrace)
	c.breakOnOverflow.Store(DefaultBreakOnOverflow)
	return c
}

// Threshold returns the current overflow threshold.
func (c *Config) Threshold() uint64 { return c.threshold.Load() }

// SetThreshold atomically replaces the overflow threshold. It takes effect
// for all checks issued after it returns, on every goroutine.
func (c *Config) SetThreshold(n uint64) { c.threshold.Store(n) }

// WarnOnce reports whether the one-shot policy is enabled.
func (c *Config) WarnOnce() bool { return c.warnOnce.Load() }

// SetWarnOnce enables or disables the one-shot policy. Disabling it makes
// every overflowing check emit a diagnostic, which is useful when chasing
// intermittent overflows.
func (c *Config) SetWarnOnce(v bool) { c.warnOnce.Store(v) }

// WarnFired reports whether a diagnostic has been emitted in the current
// generation.
func (c *Config) WarnFired() bool { return c.warnFired.Load() }

// SetWarnFired marks the current generation as having emitted its diagnostic.
// Only the warning emitter calls this, under its lock, after the diagnostic
// has been written.
func (c *Config) SetWarnFired() { c.warnFired.Store(true) }

// ResetWarnFired clears the fired flag, starting a new generation. Intended
// for test isolation, not production use.
func (c *Config) ResetWarnFired() { c.warnFired.Store(false) }

// StackTrace reports whether stack capture is enabled.
func (c *Config) StackTrace() bool { return c.stackTrace.Load() }

// SetStackTrace enables or disables stack capture in diagnostics.
func (c *Config) SetStackTrace(v bool) { c.stackTrace.Store(v) }

// BreakOnOverflow reports whether overflow checks request loop termination.
func (c *Config) BreakOnOverflow() bool { return c.breakOnOverflow.Load() }

// SetBreakOnOverflow enables or disables circuit breaking. Enable with care
// in production: the guarded loop is skipped or exited on overflow.
func (c *Config) SetBreakOnOverflow(v bool) { c.breakOnOverflow.Store(v) }

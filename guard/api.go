package guard

import (
	"github.com/kolkov/loopguard/internal/guard/monitor"
)

// defaultMonitor is the process-wide monitor behind the package-level API.
var defaultMonitor = monitor.New()

// Init loads configuration overrides from LOOPGUARD_* environment variables
// and enables the monitor.
//
// Calling Init is optional. The monitor starts enabled with built-in
// defaults, so programs that do not need environment configuration can use
// the check functions directly.
//
// Returns:
//   - error: if an environment variable is present but malformed. The
//     monitor keeps its previous configuration and stays usable.
func Init() error {
	if err := defaultMonitor.Config().LoadEnv(); err != nil {
		return err
	}
	defaultMonitor.Enable()
	return nil
}

// Fini disables the monitor and prints an end-of-run summary to the
// diagnostic output. Typically deferred from main in instrumented programs.
func Fini() {
	defaultMonitor.Fini()
}

// CheckSize validates a loop bound before the loop starts. If size exceeds
// the current threshold it emits a diagnostic (subject to the one-shot
// policy) and reports whether the caller should skip the loop body.
//
// Parameters:
//   - size: the loop's planned iteration count
//   - loopName: a label identifying the loop in diagnostics, typically
//     "file.go:line" for instrumented code
//
// Returns:
//   - bool: true if the overflow policy requests skipping the loop.
//     Always false unless break-on-overflow is enabled.
//
// Performance: a disabled or non-overflowing check is two atomic loads.
func CheckSize(size uint64, loopName string) bool {
	return defaultMonitor.CheckSize(size, loopName)
}

// CheckCount increments a per-loop iteration counter and checks it against
// the current threshold. It is designed to be called once per iteration as
// the first statement of a loop body whose bound is not known up front.
//
// The counter is owned by a single loop and needs no synchronization of its
// own. Distinct goroutines running the same loop code use distinct counters.
//
// Parameters:
//   - counter: the loop's iteration counter, incremented on every call
//   - loopName: a label identifying the loop in diagnostics
//
// Returns:
//   - bool: true if the overflow policy requests breaking out of the loop.
//     Always false unless break-on-overflow is enabled.
func CheckCount(counter *uint64, loopName string) bool {
	return defaultMonitor.CheckCount(counter, loopName)
}

// SetThreshold replaces the iteration threshold. Checks that begin after
// SetThreshold returns observe the new value; checks in flight may use
// either. Useful for tightening the guard around code sections with known
// small bounds.
func SetThreshold(threshold uint64) {
	defaultMonitor.SetThreshold(threshold)
}

// Threshold returns the current iteration threshold.
func Threshold() uint64 {
	return defaultMonitor.Threshold()
}

// ResetWarnFlag re-arms the one-shot diagnostic, starting a new warning
// generation. The next overflow after the reset emits again. Intended for
// long-running services that want periodic reminders, and for test
// isolation.
func ResetWarnFlag() {
	defaultMonitor.ResetWarnFlag()
}

// SetWarnOnce controls the one-shot policy. When enabled (the default) at
// most one diagnostic is emitted per warning generation; when disabled every
// overflowing check emits.
func SetWarnOnce(on bool) {
	defaultMonitor.Config().SetWarnOnce(on)
}

// SetStackTrace controls whether diagnostics include a captured stack trace.
// Enabled by default.
func SetStackTrace(on bool) {
	defaultMonitor.Config().SetStackTrace(on)
}

// SetBreakOnOverflow controls the advisory break signal. When enabled,
// CheckSize and CheckCount return true on overflow so instrumented loops
// skip or stop; when disabled (the default) overflows are report-only.
func SetBreakOnOverflow(on bool) {
	defaultMonitor.Config().SetBreakOnOverflow(on)
}

// Enable turns overflow checking on. The monitor starts enabled.
func Enable() {
	defaultMonitor.Enable()
}

// Disable turns overflow checking off. Disabled checks return false without
// touching counters or emitting diagnostics.
func Disable() {
	defaultMonitor.Disable()
}

// Enabled reports whether overflow checking is currently on.
func Enabled() bool {
	return defaultMonitor.Enabled()
}

// Stats is a snapshot of monitor activity.
type Stats struct {
	// Overflows is the number of checks that exceeded the threshold.
	Overflows uint64
	// Emitted is the number of diagnostics actually written, which is
	// lower than Overflows whenever the one-shot policy suppresses
	// repeats.
	Emitted uint64
}

// GetStats returns a snapshot of the monitor's activity counters.
func GetStats() Stats {
	s := defaultMonitor.Stats()
	return Stats{Overflows: s.Overflows, Emitted: s.Emitted}
}

// Package monitor implements the loop overflow guard core: the pre-loop and
// per-iteration checks, the one-shot warning emitter, and the runtime control
// surface.
//
// # Design
//
// The guard sits at loop boundaries throughout a codebase, so the non-overflow
// path has to stay at a handful of atomic loads and one comparison. Overflow
// is a diagnosable condition, never an error: checks return an advisory
// boolean, nothing panics, and the guarded code keeps running unless circuit
// breaking is explicitly enabled (fail-open by default).
//
// Under the one-shot policy, at most one diagnostic is written per generation
// (the interval between ResetWarnFlag calls), no matter how many loops
// overflow or how many goroutines race into the emitter. The fired flag is
// deliberately global rather than per loop name: in a generation, whichever
// overflowing loop fires first wins. Per-loop-name one-shot would give richer
// visibility, at the cost of unbounded key state; revisit if a single
// diagnostic per process proves too coarse.
//
// # Concurrency
//
// Configuration state is atomics on the hot path; the emitter mutex is the
// sole lock and is never nested with any other. The fired flag is set after
// the diagnostic is written, still under the lock, so a check that finds it
// set can trust the diagnostic exists.
package monitor

// Package guard provides a runtime guard against runaway loops.
//
// The guard watches loop iteration counts against a configurable threshold
// (1,000,000 by default) and prints a detailed diagnostic to stderr when a
// loop exceeds it. Detection is advisory: by default an overflowing loop
// keeps running, and the program's behavior is unchanged apart from the
// diagnostic.
//
// # Quick Start
//
// Loops are instrumented automatically by the loopguard tool:
//
//	$ loopguard build myprogram.go
//	$ ./myprogram
//
// For manual instrumentation around a loop you consider risky:
//
//	package main
//
//	import "github.com/kolkov/loopguard/guard"
//
//	func main() {
//		defer guard.Fini()
//
//		n := computeBound()
//		if !guard.CheckSize(uint64(n), "sync") {
//			for i := 0; i < n; i++ {
//				// ...
//			}
//		}
//	}
//
// Loops whose bound is not known up front use a per-loop counter instead:
//
//	var count uint64
//	for item := range ch {
//		if guard.CheckCount(&count, "drain") {
//			break
//		}
//		process(item)
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Loop checks: [CheckSize], [CheckCount]
//   - Threshold control: [SetThreshold], [Threshold]
//   - Warning policy: [ResetWarnFlag], [SetWarnOnce], [SetStackTrace]
//   - Overflow policy: [SetBreakOnOverflow]
//   - Lifecycle: [Init], [Fini], [Enable], [Disable]
//   - Introspection: [GetStats], [GetInfo], [Version]
//
// # Diagnostics
//
// When a loop exceeds the threshold the guard prints a delimited block to
// stderr containing the loop's label, the observed count, the threshold in
// effect, a timestamp, and a stack trace of the overflowing call site:
//
//	==================
//	WARNING: LOOP OVERFLOW
//	Loop: sync
//	Count: 700000000 | Threshold: 1000000
//	Time: 2026-03-14T09:26:53Z
//	===== LOOP OVERFLOW STACK TRACE =====
//	  main.main()
//	      /src/app/main.go:14 +0x2a
//	=====================================
//	==================
//
// At most one diagnostic is emitted per warning generation; call
// [ResetWarnFlag] to re-arm it. Disable the one-shot policy with
// [SetWarnOnce] to see every overflow.
//
// # Configuration
//
// [Init] reads overrides from the environment:
//
//	LOOPGUARD_THRESHOLD          iteration threshold (unsigned integer)
//	LOOPGUARD_WARN_ONCE          one-shot diagnostic policy (boolean)
//	LOOPGUARD_STACK_TRACE        include stack traces (boolean)
//	LOOPGUARD_BREAK_ON_OVERFLOW  request loop breaks on overflow (boolean)
//
// # Performance Characteristics
//
// The hot path is built for instrumented inner loops:
//
//	Non-overflowing CheckSize:   two atomic loads
//	Non-overflowing CheckCount:  one counter increment plus two atomic loads
//	Overflow after first report: one extra atomic load (one-shot suppressed)
//
// Only the first diagnostic of a generation pays for stack capture and
// formatting, and emission is serialized so concurrent overflows never
// interleave their output.
package guard

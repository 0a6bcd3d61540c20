// Package stack captures the current call stack as human-readable frames for
// overflow diagnostics.
//
// Capture is a pluggable strategy: the default RuntimeCapturer unwinds via
// runtime.Callers, and NopCapturer is a zero-cost stand-in for tests and for
// builds where unwinding is unwanted. The warning emitter never calls a
// capturer when stack traces are disabled, so the disabled path costs exactly
// one flag check.
package stack

import (
	"fmt"
	"runtime"
)

// Depth limits for a single capture.
const (
	// DefaultDepth is the number of frames captured by default.
	DefaultDepth = 16

	// MaxDepth is the hard cap on frames per capture.
	MaxDepth = 32
)

// Frame is one captured call-stack frame.
type Frame struct {
	// Function is the fully qualified function name, or empty when
	// symbolication is unavailable.
	Function string

	// File and Line locate the call site. Empty/zero without symbols.
	File string
	Line int

	// PC is the program counter for the frame.
	PC uintptr
}

// String formats the frame for an overflow diagnostic:
//
//	  main.syncLoop()
//	      /path/to/main.go:42 +0x3b
//
// Frames without symbol information degrade to the raw address.
func (f Frame) String() string {
	if f.Function == "" {
		return fmt.Sprintf("  0x%016x\n", f.PC)
	}
	// Offset is approximate; it exists to make frames easy to eyeball
	// against objdump output.
	return fmt.Sprintf("  %s()\n      %s:%d +0x%x\n", f.Function, f.File, f.Line, f.PC&0xfff)
}

// Capturer produces a snapshot of the current call stack.
//
// skip is the number of callers above Capture to omit: 0 means the first
// returned frame is Capture's direct caller. Implementations return at most
// max frames, innermost first, and must never fail the caller: when
// unwinding is unavailable they return an empty slice.
type Capturer interface {
	Capture(skip, max int) []Frame
}

// RuntimeCapturer unwinds the stack with runtime.Callers. This is the default
// strategy on every platform the Go runtime supports.
type RuntimeCapturer struct{}

// Capture returns up to max frames of the current call stack, innermost
// first. max is clamped to [1, MaxDepth]; non-positive values use MaxDepth.
func (RuntimeCapturer) Capture(skip, max int) []Frame {
	if max <= 0 || max > MaxDepth {
		max = MaxDepth
	}

	pcs := make([]uintptr, max)
	// +2 skips runtime.Callers itself and this method.
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		out = append(out, Frame{
			Function: fr.Function,
			File:     fr.File,
			Line:     fr.Line,
			PC:       fr.PC,
		})
		if !more {
			break
		}
	}
	return out
}

// NopCapturer captures nothing. It backs tests that must not depend on real
// stack contents and platforms where unwinding is unwanted.
type NopCapturer struct{}

// Capture always returns nil.
func (NopCapturer) Capture(_, _ int) []Frame { return nil }

package guard_test

import (
	"fmt"

	"github.com/kolkov/loopguard/guard"
)

// Guarding a loop whose bound is computed at runtime. The diagnostic goes
// to stderr; the loop itself still runs because breaking is off by default.
func ExampleCheckSize() {
	guard.SetThreshold(1000)
	defer func() {
		guard.SetThreshold(1_000_000)
		guard.ResetWarnFlag()
	}()

	n := 50
	sum := 0
	if !guard.CheckSize(uint64(n), "sum") {
		for i := 0; i < n; i++ {
			sum += i
		}
	}
	fmt.Println(sum)
	// Output: 1225
}

// Guarding an unbounded loop with a per-loop counter. With break-on-overflow
// enabled the guard stops the loop once the threshold is exceeded.
func ExampleCheckCount() {
	guard.SetThreshold(100)
	guard.SetBreakOnOverflow(true)
	guard.SetStackTrace(false)
	defer func() {
		guard.SetThreshold(1_000_000)
		guard.SetBreakOnOverflow(false)
		guard.SetStackTrace(true)
		guard.ResetWarnFlag()
	}()

	iterations := 0
	var count uint64
	for {
		if guard.CheckCount(&count, "retry") {
			break
		}
		iterations++
	}
	fmt.Println("stopped after", iterations, "iterations")
	// Output: stopped after 100 iterations
}

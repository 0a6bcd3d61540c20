// Package instrument implements AST-level instrumentation for automatic
// loop guard insertion.
//
// This package provides the core functionality for the loopguard standalone
// tool. It parses Go source files, walks the AST to find loop statements,
// and inserts guard.CheckSize and guard.CheckCount calls automatically.
//
// Algorithm:
//  1. Parse Go source file using go/parser
//  2. Rewrite every loop with a guard check (see visitor.go)
//  3. Wire the guard lifecycle (Init/Fini) into the main package
//  4. Inject the required guard runtime import
//  5. Generate instrumented code using go/printer
//
// Example Transformation:
//
//	// INPUT (original code):
//	for i := 0; i < n; i++ {
//		work(i)
//	}
//
//	// OUTPUT (instrumented code):
//	import guard "github.com/kolkov/loopguard/guard"
//	if !guard.CheckSize(uint64(n), "main.go:12") {
//		for i := 0; i < n; i++ {
//			work(i)
//		}
//	}
//
// Known limitation: the pre-check converts signed bounds to uint64, so a
// negative bound reads as a huge count and trips a spurious warning. The
// loop itself still runs zero iterations either way.
//
// Performance: Instrumentation happens at compile-time, not runtime, so
// performance is not critical.
//
// Thread Safety: This package is NOT thread-safe. Callers must ensure
// single-threaded access or use external synchronization.
package instrument

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
)

const (
	// GuardPackageImportPath is the import path for the loop guard API.
	// This is injected into instrumented files.
	GuardPackageImportPath = "github.com/kolkov/loopguard/guard"

	// GuardPackageAlias is the local package alias used in instrumented
	// code: guard.CheckSize(), guard.CheckCount().
	GuardPackageAlias = "guard"
)

// Result holds the instrumented code and statistics about what was rewritten.
type Result struct {
	Code  string // Instrumented source code
	Stats Stats  // Rewriting statistics
}

// InstrumentFile instruments a single Go source file with loop guard calls.
//
// This is the main entry point for AST-level instrumentation. It performs
// the following steps:
//
//  1. Parse the source file into an AST
//  2. Rewrite every loop with the appropriate guard check
//  3. Wire guard.Init/guard.Fini into the file declaring func main
//  4. Inject the guard runtime import (only when something was injected)
//  5. Generate instrumented code as a string
//
// Parameters:
//   - filename: Path to the Go source file (used for error messages and
//     loop labels)
//   - src: Source code to instrument. Can be nil (read from filename),
//     []byte, string, or io.Reader, per go/parser conventions.
//
// Returns:
//   - *Result: Result containing code and statistics
//   - error: Parsing or code generation error, or nil on success
//
// Example:
//
//	result, err := InstrumentFile("main.go", nil)
//	if err != nil {
//	    log.Fatalf("Instrumentation failed: %v", err)
//	}
//	fmt.Printf("Guarded %d loops\n", result.Stats.Total())
//
// A file that is already fully instrumented comes back unchanged apart from
// formatting; rerunning the tool is safe.
//
// Thread Safety: NOT thread-safe. Do not call concurrently on the same file.
func InstrumentFile(filename string, src interface{}) (*Result, error) {
	// Parse with comments preserved in the output.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	r := newRewriter(fset)
	if err := r.rewriteFile(file); err != nil {
		return nil, err
	}
	stats := r.GetStats()

	// The file declaring func main also gets the runtime lifecycle: an init
	// that loads LOOPGUARD_* environment overrides and a deferred Fini that
	// prints the end-of-run summary.
	needsRuntime := stats.Total() > 0
	if injectLifecycle(file) {
		needsRuntime = true
	}

	// Untouched files need no import and come back unchanged.
	if needsRuntime {
		if err := injectImports(file); err != nil {
			return nil, fmt.Errorf("failed to inject imports: %w", err)
		}
	}

	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	return &Result{
		Code:  buf.String(),
		Stats: stats,
	}, nil
}

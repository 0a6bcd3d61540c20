// Package main implements the loopguard CLI tool.
//
// The loopguard tool provides automatic loop overflow detection for Go
// programs without requiring a custom toolchain. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Rewriting loops with overflow guard checks
//  3. Injecting the loop guard runtime
//  4. Building/running the instrumented code
//
// Usage:
//
//	loopguard build main.go     # Build with loop guards
//	loopguard run main.go       # Run with loop guards
//	loopguard test ./...        # Test with loop guards
//
// The tool is compatible with the standard Go toolchain and can be used as
// a drop-in replacement for `go build`, `go run`, and `go test` when loop
// overflow detection is needed.
//
// This is the CLI entry point for the standalone loopguard tool.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const version = "0.1.0"

func main() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "test":
		testCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("loopguard version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`loopguard - Runtime Loop Overflow Guard

USAGE:
    loopguard <command> [arguments]

COMMANDS:
    build      Build Go program with loop guards
    run        Run Go program with loop guards
    test       Run tests with loop guards
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Build a program with loop guards
    loopguard build -o myapp main.go

    # Run a program with loop guards
    loopguard run main.go --flag=value

    # Run tests with loop guards
    loopguard test -run=TestDrain ./...

    # Tune the guard at run time
    LOOPGUARD_THRESHOLD=500000 ./myapp

ABOUT:
    loopguard is a standalone tool that watches loop iteration counts in Go
    programs and prints a diagnostic when a loop exceeds a configurable
    threshold (1,000,000 by default). Detection is advisory: by default an
    overflowing loop keeps running and only the diagnostic is produced.

    The tool instruments your Go code at the AST level. Loops with a
    recognizable bound get a cheap pre-check before the loop starts; all
    other loops count iterations as they happen.

    Instrumented binaries read configuration from the environment:
        LOOPGUARD_THRESHOLD          iteration threshold
        LOOPGUARD_WARN_ONCE          one diagnostic per run (default true)
        LOOPGUARD_STACK_TRACE        include stack traces (default true)
        LOOPGUARD_BREAK_ON_OVERFLOW  stop overflowing loops (default false)

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/loopguard
    Documentation: https://github.com/kolkov/loopguard/blob/main/README.md
    Issues: https://github.com/kolkov/loopguard/issues

`)
}

// buildCommand is implemented in build.go
// runCommand is implemented in run.go

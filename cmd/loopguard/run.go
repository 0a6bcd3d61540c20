// run.go implements the 'loopguard run' command.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kolkov/loopguard/cmd/loopguard/runtime"
)

// runCommand implements the 'loopguard run' command.
//
// This command instruments Go source files, builds them temporarily, and
// immediately executes the resulting binary with loop guards active. It
// acts as a drop-in replacement for 'go run'.
//
// Flow:
//  1. Parse arguments (source files + program arguments)
//  2. Build instrumented binary to temp location
//  3. Execute binary with program arguments
//  4. Forward stdin/stdout/stderr
//  5. Return program's exit code
//
// Example:
//
//	loopguard run main.go
//	loopguard run main.go arg1 arg2
//	loopguard run main.go --program-flag=value
func runCommand(args []string) {
	config, programArgs, err := parseRunArgs(args)
	if err != nil {
		slog.Error("invalid arguments", "err", err)
		os.Exit(1)
	}

	tempBinary, err := buildTemporary(config)
	if err != nil {
		slog.Error("build failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = os.Remove(tempBinary) }()

	os.Exit(executeBinary(tempBinary, programArgs))
}

// parseRunArgs separates source files from program arguments.
//
// The 'go run' command format is:
//
//	go run [build flags] package [arguments...]
//
// Supported here:
//
//	loopguard run file.go [arguments...]
//	loopguard run file1.go file2.go [arguments...]
//
// Build flags (if any) come before source files. Everything after the
// source files belongs to the program.
//
// Returns:
//   - buildConfig for compilation
//   - programArgs to pass to the executable
//   - error if parsing fails
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	var sourceFiles []string
	var programArgs []string
	var buildFlags []string

	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}

		// Build flags come before source files.
		if !sawGoFile && (arg == "-o" || arg == "-ldflags" || arg == "-gcflags" ||
			arg == "-tags" || arg == "-buildmode") {
			buildFlags = append(buildFlags, arg)
			// These flags take a value.
			if i+1 < len(args) {
				i++
				buildFlags = append(buildFlags, args[i])
			}
			continue
		}

		if filepath.Ext(arg) == ".go" {
			sourceFiles = append(sourceFiles, arg)
			sawGoFile = true
			continue
		}

		// First non-.go argument after the sources starts the program args.
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		buildFlags = append(buildFlags, arg)
	}

	if len(sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{
		sourceFiles: sourceFiles,
		buildFlags:  buildFlags,
		workDir:     cwd,
	}

	return config, programArgs, nil
}

// buildTemporary builds the instrumented code to a temporary binary.
//
// Returns:
//   - Path to temporary binary (removed by the caller after execution)
//   - Error if build fails
func buildTemporary(config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "loopguard-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close()

	config.outputFile = tempPath

	if err := runtime.ValidateRuntimeAvailable(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("loop guard runtime not found: %w", err)
	}

	workspace, err := createWorkspace()
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, workspace); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to instrument sources: %w", err)
	}

	if err := workspace.setupRuntimeLinking(config.workDir); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to setup runtime: %w", err)
	}

	if err := workspace.build(config); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("build failed: %w", err)
	}

	return tempPath, nil
}

// executeBinary runs the instrumented binary with the given arguments.
//
// Stdin/stdout/stderr are forwarded to the child process.
//
// Returns:
//   - Exit code of the process (0 = success)
func executeBinary(binaryPath string, args []string) int {
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		slog.Error("failed to execute binary", "err", err)
		return 1
	}

	return 0
}

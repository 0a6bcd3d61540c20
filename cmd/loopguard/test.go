// test.go implements the 'loopguard test' command.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kolkov/loopguard/cmd/loopguard/instrument"
	"github.com/kolkov/loopguard/cmd/loopguard/runtime"
)

// testConfig holds configuration for the test command.
type testConfig struct {
	// Package patterns to test (e.g., "./...", "./internal/...")
	packages []string

	// Test flags to pass to go test (-v, -run, -bench, etc.)
	testFlags []string

	// Working directory
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// testCommand implements the 'loopguard test' command.
//
// This command instruments Go source files, test files included, and runs
// 'go test' over the instrumented packages. It acts as a drop-in
// replacement for 'go test' with loop guards active.
//
// Flow:
//  1. Parse arguments (test flags + package patterns)
//  2. Create temporary workspace
//  3. Instrument source files (including _test.go)
//  4. Write the workspace go.mod (original module identity preserved)
//  5. Call 'go test' with instrumented code
//  6. Forward test output and exit code
//  7. Cleanup temporary files
//
// Example:
//
//	loopguard test ./...
//	loopguard test -v ./internal/...
//	loopguard test -run=TestDrain ./pkg/queue
//	loopguard test -cover -coverprofile=coverage.out ./...
func testCommand(args []string) {
	config, err := parseTestArgs(args)
	if err != nil {
		slog.Error("invalid arguments", "err", err)
		os.Exit(1)
	}

	if err := runtime.ValidateRuntimeAvailable(); err != nil {
		slog.Error("loop guard runtime not found", "err", err)
		fmt.Fprintln(os.Stderr, "\nPlease ensure the runtime is installed:")
		fmt.Fprintln(os.Stderr, "  go get github.com/kolkov/loopguard/guard")
		os.Exit(1)
	}

	workspace, err := createWorkspace()
	if err != nil {
		slog.Error("failed to create workspace", "err", err)
		os.Exit(1)
	}
	defer workspace.cleanup()

	if err := instrumentTestSources(config, workspace); err != nil {
		slog.Error("instrumentation failed", "err", err)
		os.Exit(1)
	}

	if err := workspace.setupTestModule(config.workDir); err != nil {
		slog.Error("failed to set up test module", "err", err)
		os.Exit(1)
	}

	os.Exit(runTests(workspace, config))
}

// parseTestArgs parses command-line arguments for 'loopguard test'.
//
// The 'go test' command format is:
//
//	go test [build/test flags] [packages] [test binary flags]
//
// We support:
//
//	loopguard test ./...
//	loopguard test -v ./internal/...
//	loopguard test -run=TestFoo -v ./pkg/...
//	loopguard test -cover -coverprofile=c.out ./...
//
// Returns testConfig with parsed arguments.
func parseTestArgs(args []string) (*testConfig, error) {
	config := &testConfig{
		packages:  []string{},
		testFlags: []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// -v is both ours and go test's.
		if arg == "-v" {
			config.verbose = true
			config.testFlags = append(config.testFlags, arg)
			continue
		}

		if strings.HasPrefix(arg, "-") {
			config.testFlags = append(config.testFlags, arg)

			// Consume the flag's value when it comes as a separate argument.
			if testFlagNeedsValue(arg) && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				config.testFlags = append(config.testFlags, args[i])
			}
			continue
		}

		// No dash prefix: a package pattern.
		config.packages = append(config.packages, arg)
	}

	// Default: test the current directory.
	if len(config.packages) == 0 {
		config.packages = []string{"."}
	}

	return config, nil
}

// testFlagNeedsValue returns true if the test flag expects a following value.
func testFlagNeedsValue(flag string) bool {
	// Already in = form (e.g., -run=TestFoo).
	if strings.Contains(flag, "=") {
		return false
	}

	valueFlags := []string{
		"-run", "-bench", "-benchtime", "-blockprofile", "-blockprofilerate",
		"-coverprofile", "-covermode", "-count", "-cpu", "-cpuprofile",
		"-memprofile", "-memprofilerate", "-mutexprofile", "-mutexprofilefraction",
		"-outputdir", "-parallel", "-timeout", "-trace",
		// Build flags that may appear
		"-ldflags", "-gcflags", "-tags", "-mod", "-modfile",
	}

	for _, vf := range valueFlags {
		if flag == vf {
			return true
		}
	}

	return false
}

// instrumentTestSources instruments all source files including test files,
// preserving the relative directory layout so package import paths keep
// resolving inside the workspace.
func instrumentTestSources(config *testConfig, workspace *workspace) error {
	dirs, err := resolvePackagePatterns(config.packages, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve packages: %w", err)
	}

	if len(dirs) == 0 {
		return fmt.Errorf("no packages found matching patterns: %v", config.packages)
	}

	var allGoFiles []string
	for _, dir := range dirs {
		goFiles, err := collectTestGoFiles(dir)
		if err != nil {
			return fmt.Errorf("failed to collect files from %s: %w", dir, err)
		}
		allGoFiles = append(allGoFiles, goFiles...)
	}

	if len(allGoFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	for _, srcPath := range allGoFiles {
		result, err := instrument.InstrumentFile(srcPath, nil)
		if err != nil {
			return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}

		relPath, err := filepath.Rel(config.workDir, srcPath)
		if err != nil {
			relPath = filepath.Base(srcPath)
		}

		outPath := filepath.Join(workspace.srcDir, relPath)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", outPath, err)
		}

		if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		if config.verbose {
			slog.Info("instrumented",
				"file", relPath,
				"size_checks", result.Stats.SizeChecks,
				"counter_checks", result.Stats.CounterChecks,
				"already_guarded", result.Stats.LoopsSkipped,
			)
		}
	}

	return nil
}

// setupTestModule writes the workspace go.mod for 'loopguard test' and
// carries go.sum across so dependency verification still works.
func (w *workspace) setupTestModule(sourceDir string) error {
	if err := runtime.ModFileTestOverlay(w.srcDir, sourceDir); err != nil {
		return err
	}

	goSumSrc := filepath.Join(sourceDir, "go.sum")
	if data, err := os.ReadFile(goSumSrc); err == nil {
		goSumDst := filepath.Join(w.srcDir, "go.sum")
		if err := os.WriteFile(goSumDst, data, 0644); err != nil {
			return fmt.Errorf("failed to copy go.sum: %w", err)
		}
	}

	// The runtime requirement is new to this module; tidy resolves it.
	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.srcDir
	tidyCmd.Stdout = os.Stdout
	tidyCmd.Stderr = os.Stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}

	return nil
}

// resolvePackagePatterns resolves package patterns like "./..." to directories.
func resolvePackagePatterns(patterns []string, workDir string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		// "..." suffix means recursive.
		if strings.HasSuffix(pattern, "/...") || strings.HasSuffix(pattern, "\\...") {
			baseDir := strings.TrimSuffix(strings.TrimSuffix(pattern, "/..."), "\\...")
			if baseDir == "." || baseDir == "" {
				baseDir = workDir
			} else if !filepath.IsAbs(baseDir) {
				baseDir = filepath.Join(workDir, baseDir)
			}

			err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					return nil
				}
				name := info.Name()
				if strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" {
					return filepath.SkipDir
				}
				hasGo, _ := hasGoFiles(path)
				if hasGo && !seen[path] {
					dirs = append(dirs, path)
					seen[path] = true
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", baseDir, err)
			}
			continue
		}

		// Single directory or package.
		dir := pattern
		if pattern == "." {
			dir = workDir
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, pattern)
		}

		if !seen[dir] {
			dirs = append(dirs, dir)
			seen[dir] = true
		}
	}

	return dirs, nil
}

// hasGoFiles checks if a directory contains any .go files.
func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return true, nil
		}
	}

	return false, nil
}

// collectTestGoFiles collects all .go files from a directory. Unlike the
// build path, _test.go files are included.
func collectTestGoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var goFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".go") {
			goFiles = append(goFiles, filepath.Join(dir, entry.Name()))
		}
	}

	return goFiles, nil
}

// runTests executes 'go test' in the workspace with instrumented code.
func runTests(workspace *workspace, config *testConfig) int {
	args := []string{"test"}
	args = append(args, config.testFlags...)
	args = append(args, runtime.BuildFlags()...)

	// Instrumented sources for every requested package live under srcDir.
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = workspace.srcDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		slog.Error("failed to execute tests", "err", err)
		return 1
	}

	return 0
}

// build.go implements the 'loopguard build' command.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kolkov/loopguard/cmd/loopguard/instrument"
	"github.com/kolkov/loopguard/cmd/loopguard/runtime"
)

// buildCommand implements the 'loopguard build' command.
//
// This command instruments Go source files and builds them with loop
// guards. It acts as a drop-in replacement for 'go build', supporting the
// standard flags.
//
// Flow:
//  1. Parse arguments (source files + go build flags)
//  2. Create temporary workspace
//  3. Instrument source files (rewrite loops with guard checks)
//  4. Setup runtime linking (go.mod overlay)
//  5. Call 'go build' with instrumented code
//  6. Cleanup temporary files
//
// Example:
//
//	loopguard build main.go
//	loopguard build -o myapp main.go helper.go
//	loopguard build -ldflags="-s -w" .
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
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

	if err := instrumentSources(config, workspace); err != nil {
		slog.Error("instrumentation failed", "err", err)
		os.Exit(1)
	}

	if err := workspace.setupRuntimeLinking(config.workDir); err != nil {
		slog.Error("failed to set up runtime linking", "err", err)
		os.Exit(1)
	}

	if err := workspace.build(config); err != nil {
		slog.Error("build failed", "err", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		slog.Info("built successfully", "output", config.outputFile)
	}
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// parseBuildArgs parses command-line arguments for 'loopguard build'.
//
// It separates:
//   - Source files (.go files or directories)
//   - Output file (-o flag)
//   - Go build flags (everything else)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If the previous flag expects a value, this is it (even if it
		// starts with -). Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		if arg == "-v" {
			config.verbose = true
			continue
		}

		if strings.HasPrefix(arg, "-") {
			// Pass through to go build.
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		// No dash prefix: a source file, directory, or package path.
		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build the current directory.
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}

	for _, vf := range valueFlags {
		// Already in = form (e.g. -ldflags=-s).
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory (where instrumented .go files go)
	srcDir string
}

// createWorkspace creates a temporary workspace for building instrumented code.
func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "loopguard-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	return &workspace{
		dir:    dir,
		srcDir: srcDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
	}
}

// setupRuntimeLinking creates the go.mod overlay for runtime linking.
//
// sourceDir locates the instrumented project's own go.mod so its replace
// directives carry across to the workspace.
func (w *workspace) setupRuntimeLinking(sourceDir string) error {
	overlayPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	// If an overlay was created, rename it to go.mod and tidy.
	if overlayPath != "" {
		goModPath := filepath.Join(w.dir, "go.mod")
		if err := os.Rename(overlayPath, goModPath); err != nil {
			return fmt.Errorf("failed to setup go.mod: %w", err)
		}

		tidyCmd := exec.Command("go", "mod", "tidy")
		tidyCmd.Dir = w.dir
		tidyCmd.Stdout = os.Stdout
		tidyCmd.Stderr = os.Stderr
		if err := tidyCmd.Run(); err != nil {
			return fmt.Errorf("failed to tidy go.mod: %w", err)
		}
	}

	return nil
}

// build runs 'go build' on the instrumented code in the workspace.
func (w *workspace) build(config *buildConfig) error {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, config.buildFlags...)
	args = append(args, runtime.BuildFlags()...)
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// instrumentSources instruments all source files and writes them to the
// workspace.
func instrumentSources(config *buildConfig, workspace *workspace) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	for _, srcPath := range goFiles {
		result, err := instrument.InstrumentFile(srcPath, nil)
		if err != nil {
			return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}

		// Flatten the directory structure: workspace src holds one package.
		outPath := filepath.Join(workspace.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		slog.Info("instrumented",
			"file", srcPath,
			"guards", result.Stats.Total(),
		)
		if config.verbose {
			slog.Info("instrumentation detail",
				"file", filepath.Base(srcPath),
				"size_checks", result.Stats.SizeChecks,
				"counter_checks", result.Stats.CounterChecks,
				"already_guarded", result.Stats.LoopsSkipped,
			)
		}
	}

	return nil
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scanned for .go files)
//   - "." for the current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if info.IsDir() {
			entries, err := os.ReadDir(srcPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
			}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}

				name := entry.Name()
				// Tests are excluded from builds.
				if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
					goFiles = append(goFiles, filepath.Join(srcPath, name))
				}
			}
		} else if strings.HasSuffix(srcPath, ".go") {
			goFiles = append(goFiles, srcPath)
		}
	}

	return goFiles, nil
}

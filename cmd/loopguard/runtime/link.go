// Package runtime provides runtime library linking for instrumented code.
//
// This package handles injecting the loop guard runtime into instrumented
// Go programs. It provides mechanisms to ensure the runtime is linked and
// resolvable from the temporary build workspace.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// Version is the module version required for the loop guard runtime when
// instrumented code resolves it through the module proxy. A local replace
// overrides it when running from a source checkout.
const Version = "v0.1.0"

// GetRuntimePackagePath returns the import path for the loop guard runtime.
//
// This is the package that instrumented code will import to access
// CheckSize, CheckCount, and the rest of the guard API.
//
// Returns: "github.com/kolkov/loopguard/guard"
func GetRuntimePackagePath() string {
	return "github.com/kolkov/loopguard/guard"
}

// ValidateRuntimeAvailable checks if the runtime library is available.
//
// This verifies that the loop guard runtime package can be found and
// imported. If the package is missing, the caller prints installation
// instructions.
//
// Returns:
//   - nil if runtime is available
//   - error with installation instructions if missing
func ValidateRuntimeAvailable() error {
	// Running from a source checkout puts the runtime under
	// internal/guard/monitor.
	projectRoot, err := findProjectRoot()
	if err == nil {
		runtimePath := filepath.Join(projectRoot, "internal", "guard", "monitor")
		if _, err := os.Stat(runtimePath); err == nil {
			return nil
		}
	}

	// Otherwise assume the published module resolves through the module
	// proxy when the workspace go.mod requires it.
	return nil
}

// findProjectRoot finds the root directory of the loopguard project.
//
// This walks up the directory tree from the current working directory
// looking for our specific project marker (internal/guard/monitor). A bare
// go.mod is not enough because that would match the user's project.
//
// Returns:
//   - Project root path
//   - Error if root cannot be found
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		runtimePath := filepath.Join(dir, "internal", "guard", "monitor")
		if _, err := os.Stat(runtimePath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Not found by walking up. The installed binary may sit in the project
	// root or its bin directory.
	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidates := []string{
			exeDir,
			filepath.Dir(exeDir),
			filepath.Dir(filepath.Dir(exeDir)),
		}
		for _, candidate := range candidates {
			runtimePath := filepath.Join(candidate, "internal", "guard", "monitor")
			if _, err := os.Stat(runtimePath); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find loopguard project root")
}

// findOriginalGoMod finds the go.mod file of the project being instrumented.
//
// This walks up from the given directory looking for a go.mod file. This is
// different from findProjectRoot, which finds loopguard's own root.
//
// Parameters:
//   - startDir: Directory to start searching from (usually the source file's directory)
//
// Returns:
//   - Path to go.mod file
//   - Empty string if no go.mod found
func findOriginalGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// BuildFlags returns additional flags needed for building instrumented code.
//
// Returns:
//   - Slice of build flags to pass to 'go build'
func BuildFlags() []string {
	// No special flags needed today. Candidates for later: build tags that
	// compile the checks out entirely.
	return []string{}
}

// ModFileOverlay creates a temporary go.mod overlay for instrumented code.
//
// When instrumenting code outside the loopguard project, the temporary
// workspace needs to resolve the runtime import. This creates a go.mod
// overlay that replaces the remote import with a local path.
//
// It also preserves replace directives from the original project's go.mod,
// converting relative paths to absolute paths (the temp directory has a
// different working directory).
//
// Parameters:
//   - tempDir: Temporary directory where instrumented code is being built
//   - sourceDir: Directory of the source file being instrumented (to find original go.mod)
//
// Returns:
//   - Path to overlay file
//   - Error if overlay creation fails
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		// Not in development mode - use the published package.
		//nolint:nilerr // Error indicates published mode, not a failure
		return "", nil
	}

	var content strings.Builder
	content.WriteString("module instrumented\n\n")
	content.WriteString("go 1.24.0\n\n")
	content.WriteString(fmt.Sprintf("require github.com/kolkov/loopguard %s\n\n", Version))
	content.WriteString(fmt.Sprintf("replace github.com/kolkov/loopguard => %s\n", projectRoot))

	// Carry the instrumented project's own replace directives across.
	if sourceDir != "" {
		originalGoMod := findOriginalGoMod(sourceDir)
		if originalGoMod != "" {
			replaceDirectives := extractReplaceDirectives(originalGoMod)
			if replaceDirectives != "" {
				content.WriteString("\n// Replace directives from original go.mod:\n")
				content.WriteString(replaceDirectives)
			}
		}
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, []byte(content.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	return overlayPath, nil
}

// ModFileTestOverlay writes the go.mod for a test workspace.
//
// Unlike ModFileOverlay, the project's module identity must survive: test
// files import their own packages by the original module path. The original
// go.mod is parsed, the loop guard runtime requirement is added, relative
// replace targets are made absolute (the workspace lives elsewhere), and a
// local replace for the runtime is appended when running from a source
// checkout.
//
// Parameters:
//   - srcDir: Workspace directory holding the instrumented sources
//   - sourceDir: Directory of the project under test (to find its go.mod)
//
// Returns:
//   - Error if the project has no go.mod or rewriting fails
func ModFileTestOverlay(srcDir, sourceDir string) error {
	goModPath := findOriginalGoMod(sourceDir)
	if goModPath == "" {
		return fmt.Errorf("no go.mod found above %s; loopguard test requires a module", sourceDir)
	}

	data, err := os.ReadFile(goModPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", goModPath, err)
	}

	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", goModPath, err)
	}

	// Relative replace targets point at the wrong place once the go.mod
	// moves to the workspace.
	goModDir := filepath.Dir(goModPath)
	for _, rep := range modFile.Replace {
		newPath := rep.New.Path
		if rep.New.Version != "" || !isLocalPath(newPath) || filepath.IsAbs(newPath) {
			continue
		}
		absPath, err := filepath.Abs(filepath.Join(goModDir, newPath))
		if err != nil {
			continue
		}
		if err := modFile.AddReplace(rep.Old.Path, rep.Old.Version, absPath, ""); err != nil {
			return fmt.Errorf("failed to rewrite replace for %s: %w", rep.Old.Path, err)
		}
	}

	if err := modFile.AddRequire("github.com/kolkov/loopguard", Version); err != nil {
		return fmt.Errorf("failed to require loop guard runtime: %w", err)
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		if err := modFile.AddReplace("github.com/kolkov/loopguard", "", projectRoot, ""); err != nil {
			return fmt.Errorf("failed to add runtime replace: %w", err)
		}
	}

	out, err := modFile.Format()
	if err != nil {
		return fmt.Errorf("failed to format go.mod: %w", err)
	}

	outPath := filepath.Join(srcDir, "go.mod")
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	return nil
}

// extractReplaceDirectives reads a go.mod file and extracts replace
// directives, converting relative paths to absolute paths.
//
// Parameters:
//   - goModPath: Path to the go.mod file to parse
//
// Returns:
//   - String containing replace directives with absolute paths
func extractReplaceDirectives(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}

	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return ""
	}

	if len(modFile.Replace) == 0 {
		return ""
	}

	goModDir := filepath.Dir(goModPath)
	var result strings.Builder

	for _, rep := range modFile.Replace {
		newPath := rep.New.Path

		// Local paths have no version and are filesystem paths.
		if rep.New.Version == "" && isLocalPath(newPath) {
			if !filepath.IsAbs(newPath) {
				absPath, err := filepath.Abs(filepath.Join(goModDir, newPath))
				if err == nil {
					newPath = absPath
				}
			}
		}

		if rep.Old.Version != "" {
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s %s => %s %s\n",
					rep.Old.Path, rep.Old.Version, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s %s => %s\n",
					rep.Old.Path, rep.Old.Version, newPath))
			}
		} else {
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s => %s %s\n",
					rep.Old.Path, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s => %s\n",
					rep.Old.Path, newPath))
			}
		}
	}

	return result.String()
}

// isLocalPath checks if a path is a local filesystem path (not a module path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	// Relative paths like "subdir/module" with no dots.
	if strings.ContainsAny(path, `/\`) && !strings.Contains(path, ".") {
		return true
	}
	return false
}

// link_test.go tests runtime library injection.
package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGetRuntimePackagePath verifies the runtime import path is correct.
func TestGetRuntimePackagePath(t *testing.T) {
	path := GetRuntimePackagePath()

	expected := "github.com/kolkov/loopguard/guard"
	if path != expected {
		t.Errorf("GetRuntimePackagePath() = %q, want %q", path, expected)
	}

	if !strings.Contains(path, "/") {
		t.Errorf("GetRuntimePackagePath() returned invalid import path: %q", path)
	}
}

// TestValidateRuntimeAvailable checks runtime availability detection.
func TestValidateRuntimeAvailable(t *testing.T) {
	err := ValidateRuntimeAvailable()

	if err != nil {
		t.Logf("ValidateRuntimeAvailable() returned: %v", err)
		// Not fatal in a test environment; production checks the actual
		// runtime package.
	}
}

// TestFindProjectRoot verifies project root detection.
func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()

	if err != nil {
		t.Logf("findProjectRoot() error: %v (expected if not in project tree)", err)
		return
	}

	runtimePath := filepath.Join(root, "internal", "guard", "monitor")
	if _, err := os.Stat(runtimePath); err != nil {
		t.Errorf("findProjectRoot() returned %q but it lacks internal/guard/monitor", root)
	}
}

// TestBuildFlags verifies build flags are returned correctly.
func TestBuildFlags(t *testing.T) {
	flags := BuildFlags()

	if flags == nil {
		t.Errorf("BuildFlags() returned nil, want empty slice")
	}
}

// TestModFileOverlay verifies go.mod overlay creation.
func TestModFileOverlay(t *testing.T) {
	tempDir := t.TempDir()

	overlayPath, err := ModFileOverlay(tempDir, "")
	if err != nil {
		t.Fatalf("ModFileOverlay() failed: %v", err)
	}

	// Outside a development tree the overlay is skipped.
	if overlayPath == "" {
		t.Log("ModFileOverlay() skipped (published mode)")
		return
	}

	content, err := os.ReadFile(overlayPath)
	if err != nil {
		t.Fatalf("Failed to read overlay file: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "module instrumented") {
		t.Errorf("Overlay missing 'module instrumented' declaration")
	}
	if !strings.Contains(contentStr, "replace github.com/kolkov/loopguard") {
		t.Errorf("Overlay missing replace directive")
	}
	if !strings.Contains(contentStr, "go 1.") {
		t.Errorf("Overlay missing go version directive")
	}
}

// TestModFileOverlay_CarriesReplaceDirectives verifies that replace
// directives from the instrumented project's go.mod survive with paths made
// absolute.
func TestModFileOverlay_CarriesReplaceDirectives(t *testing.T) {
	sourceDir := t.TempDir()
	original := `module example.com/app

go 1.24.0

require example.com/dep v1.0.0

replace example.com/dep => ./localdep
`
	if err := os.WriteFile(filepath.Join(sourceDir, "go.mod"), []byte(original), 0644); err != nil {
		t.Fatalf("Failed to write go.mod: %v", err)
	}

	tempDir := t.TempDir()
	overlayPath, err := ModFileOverlay(tempDir, sourceDir)
	if err != nil {
		t.Fatalf("ModFileOverlay() failed: %v", err)
	}
	if overlayPath == "" {
		t.Skip("not in development tree, overlay skipped")
	}

	content, err := os.ReadFile(overlayPath)
	if err != nil {
		t.Fatalf("Failed to read overlay file: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "replace example.com/dep => ") {
		t.Errorf("Overlay missing carried replace directive:\n%s", contentStr)
	}
	wantAbs := filepath.Join(sourceDir, "localdep")
	if !strings.Contains(contentStr, wantAbs) {
		t.Errorf("Carried replace path not absolute, want %q in:\n%s", wantAbs, contentStr)
	}
}

// TestModFileTestOverlay verifies the test workspace keeps the original
// module identity and gains the runtime requirement.
func TestModFileTestOverlay(t *testing.T) {
	sourceDir := t.TempDir()
	original := `module example.com/app

go 1.24.0

require example.com/dep v1.0.0

replace example.com/dep => ./localdep
`
	if err := os.WriteFile(filepath.Join(sourceDir, "go.mod"), []byte(original), 0644); err != nil {
		t.Fatalf("Failed to write go.mod: %v", err)
	}

	srcDir := t.TempDir()
	if err := ModFileTestOverlay(srcDir, sourceDir); err != nil {
		t.Fatalf("ModFileTestOverlay() failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(srcDir, "go.mod"))
	if err != nil {
		t.Fatalf("Failed to read workspace go.mod: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "module example.com/app") {
		t.Errorf("Workspace go.mod lost module identity:\n%s", contentStr)
	}
	if !strings.Contains(contentStr, "github.com/kolkov/loopguard "+Version) {
		t.Errorf("Workspace go.mod missing runtime requirement:\n%s", contentStr)
	}
	wantAbs := filepath.Join(sourceDir, "localdep")
	if !strings.Contains(contentStr, wantAbs) {
		t.Errorf("Relative replace not made absolute, want %q in:\n%s", wantAbs, contentStr)
	}
}

// TestModFileTestOverlay_NoGoMod verifies the module requirement is enforced.
func TestModFileTestOverlay_NoGoMod(t *testing.T) {
	err := ModFileTestOverlay(t.TempDir(), t.TempDir())
	if err == nil {
		t.Fatal("ModFileTestOverlay() succeeded without a go.mod")
	}
	if !strings.Contains(err.Error(), "go.mod") {
		t.Errorf("Error should mention go.mod: %v", err)
	}
}

// TestExtractReplaceDirectives covers version-pinned and module-path forms.
func TestExtractReplaceDirectives(t *testing.T) {
	dir := t.TempDir()
	goMod := `module example.com/app

go 1.24.0

replace (
	example.com/a v1.2.3 => example.com/b v1.2.4
	example.com/c => example.com/d v2.0.0
)
`
	goModPath := filepath.Join(dir, "go.mod")
	if err := os.WriteFile(goModPath, []byte(goMod), 0644); err != nil {
		t.Fatalf("Failed to write go.mod: %v", err)
	}

	out := extractReplaceDirectives(goModPath)

	for _, want := range []string{
		"replace example.com/a v1.2.3 => example.com/b v1.2.4",
		"replace example.com/c => example.com/d v2.0.0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("extractReplaceDirectives() missing %q:\n%s", want, out)
		}
	}
}

// TestIsLocalPath covers the path classification table.
func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"./local", true},
		{"../sibling", true},
		{"/abs/path", true},
		{"C:\\windows\\path", true},
		{"github.com/kolkov/loopguard", false},
		{"example.com/dep", false},
	}

	for _, tt := range tests {
		if got := isLocalPath(tt.path); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// test_test.go implements tests for the 'loopguard test' command.
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantPackages []string
		wantFlags    []string
		wantVerbose  bool
	}{
		{
			name:         "no args default to current dir",
			args:         []string{},
			wantPackages: []string{"."},
			wantFlags:    []string{},
		},
		{
			name:         "single package",
			args:         []string{"./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{},
		},
		{
			name:         "verbose flag",
			args:         []string{"-v", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-v"},
			wantVerbose:  true,
		},
		{
			name:         "run flag with value",
			args:         []string{"-run", "TestDrain", "./pkg/..."},
			wantPackages: []string{"./pkg/..."},
			wantFlags:    []string{"-run", "TestDrain"},
		},
		{
			name:         "run flag with equals",
			args:         []string{"-run=TestDrain", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-run=TestDrain"},
		},
		{
			name:         "multiple flags",
			args:         []string{"-v", "-cover", "-timeout=30s", "./internal/..."},
			wantPackages: []string{"./internal/..."},
			wantFlags:    []string{"-v", "-cover", "-timeout=30s"},
			wantVerbose:  true,
		},
		{
			name:         "coverage profile",
			args:         []string{"-coverprofile", "coverage.out", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-coverprofile", "coverage.out"},
		},
		{
			name:         "multiple packages",
			args:         []string{"./pkg1", "./pkg2"},
			wantPackages: []string{"./pkg1", "./pkg2"},
			wantFlags:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := parseTestArgs(tt.args)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPackages, config.packages)
			assert.Equal(t, tt.wantFlags, config.testFlags)
			assert.Equal(t, tt.wantVerbose, config.verbose)
		})
	}
}

func TestTestFlagNeedsValue(t *testing.T) {
	tests := []struct {
		flag string
		want bool
	}{
		{"-run", true},
		{"-run=TestDrain", false},
		{"-bench", true},
		{"-bench=.", false},
		{"-timeout", true},
		{"-timeout=30s", false},
		{"-coverprofile", true},
		{"-v", false},
		{"-cover", false},
		{"-benchmem", false},
		{"-count", true},
		{"-parallel", true},
		{"-ldflags", true},
		{"-tags", true},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, testFlagNeedsValue(tt.flag))
		})
	}
}

func TestResolvePackagePatterns(t *testing.T) {
	tmpDir := t.TempDir()

	pkg1 := filepath.Join(tmpDir, "pkg1")
	pkg2 := filepath.Join(tmpDir, "pkg2")
	sub := filepath.Join(pkg1, "sub")
	vendored := filepath.Join(tmpDir, "vendor", "dep")

	for _, dir := range []string{pkg1, pkg2, sub, vendored} {
		require.NoError(t, os.MkdirAll(dir, 0755))
		goFile := filepath.Join(dir, "pkg.go")
		require.NoError(t, os.WriteFile(goFile, []byte("package pkg\n"), 0644))
	}

	t.Run("single directory", func(t *testing.T) {
		dirs, err := resolvePackagePatterns([]string{"pkg1"}, tmpDir)
		require.NoError(t, err)
		assert.Equal(t, []string{pkg1}, dirs)
	})

	t.Run("current directory", func(t *testing.T) {
		dirs, err := resolvePackagePatterns([]string{"."}, tmpDir)
		require.NoError(t, err)
		assert.Equal(t, []string{tmpDir}, dirs)
	})

	t.Run("recursive pattern skips vendor", func(t *testing.T) {
		dirs, err := resolvePackagePatterns([]string{"./..."}, tmpDir)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{pkg1, pkg2, sub}, dirs)
	})

	t.Run("duplicate patterns collapse", func(t *testing.T) {
		dirs, err := resolvePackagePatterns([]string{"pkg1", "pkg1"}, tmpDir)
		require.NoError(t, err)
		assert.Len(t, dirs, 1)
	})
}

func TestHasGoFiles(t *testing.T) {
	withGo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(withGo, "pkg.go"), []byte("package pkg\n"), 0644))

	withoutGo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(withoutGo, "readme.txt"), []byte("not go\n"), 0644))

	got, err := hasGoFiles(withGo)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = hasGoFiles(withoutGo)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCollectTestGoFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"main.go":      "package main\n",
		"main_test.go": "package main\n",
		"helper.go":    "package main\n",
		"readme.txt":   "not go\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644))
	}

	goFiles, err := collectTestGoFiles(tmpDir)
	require.NoError(t, err)

	// Test files come along, unlike the build path.
	require.Len(t, goFiles, 3)
	names := make([]string, 0, len(goFiles))
	for _, f := range goFiles {
		names = append(names, filepath.Base(f))
	}
	assert.ElementsMatch(t, []string{"main.go", "main_test.go", "helper.go"}, names)
}

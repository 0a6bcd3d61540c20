package instrument

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRewriteError_Error tests error message formatting.
func TestRewriteError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RewriteError
		want string
	}{
		{
			name: "without suggestion",
			err: &RewriteError{
				File:    "main.go",
				Line:    42,
				Column:  15,
				Message: "cannot insert loop counters in a function that mixes goto with loops",
			},
			want: "main.go:42:15: cannot insert loop counters in a function that mixes goto with loops",
		},
		{
			name: "with suggestion",
			err: &RewriteError{
				File:       "worker.go",
				Line:       7,
				Column:     2,
				Message:    "rewrite failed",
				Suggestion: "restructure the goto",
			},
			want: "worker.go:7:2: rewrite failed\n\nSuggestion: restructure the goto",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestNewRewriteError verifies position extraction from a token.Pos.
func TestNewRewriteError(t *testing.T) {
	src := `package main

func main() {
	println("x")
}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "pos.go", src, 0)
	require.NoError(t, err)

	rewriteErr := NewRewriteError(fset, file.Decls[0].Pos(), "boom")

	assert.Equal(t, "pos.go", rewriteErr.File)
	assert.Equal(t, 3, rewriteErr.Line)
	assert.Equal(t, 1, rewriteErr.Column)
	assert.Equal(t, "boom", rewriteErr.Message)
	assert.Empty(t, rewriteErr.Suggestion)
}

func TestNewRewriteErrorWithSuggestion(t *testing.T) {
	fset := token.NewFileSet()
	fset.AddFile("x.go", 1, 100)

	err := NewRewriteErrorWithSuggestion(fset, token.Pos(1), "msg", "hint")

	assert.Equal(t, "hint", err.Suggestion)
	assert.Contains(t, err.Error(), "Suggestion: hint")
}

// Package instrument - Custom error types for instrumentation.
//
// This file defines error handling for the loop rewriting engine. Errors
// include file position (file:line:column) and helpful suggestions.
//
// Example output:
//
//	main.go:42:15: failed to rewrite loop: label target lost
//
//	Suggestion: Rename the loop label so it does not collide with an injected identifier
package instrument

import (
	"fmt"
	"go/token"
)

// RewriteError represents an error during loop rewriting with context.
//
// This error type provides detailed information about where rewriting
// failed, including file position and an optional suggestion for resolving
// the issue.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type RewriteError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message
//
// If Suggestion is non-empty, it is appended on a new line with a
// "Suggestion: " prefix.
func (e *RewriteError) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewRewriteError creates an error with file position from an AST node.
//
// Parameters:
//   - fset: File set containing position information
//   - pos: Token position (from AST node.Pos())
//   - msg: Error message describing what went wrong
//
// Returns:
//   - *RewriteError: Error with file position populated
func NewRewriteError(fset *token.FileSet, pos token.Pos, msg string) *RewriteError {
	position := fset.Position(pos)
	return &RewriteError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewRewriteErrorWithSuggestion creates an error that includes a hint for
// resolving it. Use this when actionable guidance exists.
func NewRewriteErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *RewriteError {
	err := NewRewriteError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}

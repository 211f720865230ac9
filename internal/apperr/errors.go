// Package apperr declares the sentinel errors shared by the runtime packages.
// Callers classify failures with errors.Is; producers wrap with fmt.Errorf and %w.
package apperr

import "errors"

// Document parsing.
var (
	ErrParseSyntax      = errors.New("parse: syntax error")
	ErrParseOutOfMemory = errors.New("parse: resource limit exceeded")
)

// Schema and action compilation.
var (
	ErrMissingSection     = errors.New("compile: missing section")
	ErrInvalidShape       = errors.New("compile: invalid shape")
	ErrCompileOutOfMemory = errors.New("compile: resource limit exceeded")
)

// Expression evaluation.
var (
	ErrEvalSyntax   = errors.New("eval: syntax error")
	ErrDivideByZero = errors.New("eval: divide by zero")
)

// Action execution.
var (
	ErrUnknownAction   = errors.New("action: unknown action")
	ErrMissingArgument = errors.New("action: missing argument")
	ErrUnsupported     = errors.New("action: unsupported")
)

// Navigation.
var (
	ErrAlreadyRendering  = errors.New("nav: already rendering")
	ErrCannotPopRoot     = errors.New("nav: cannot pop root screen")
	ErrScreenNotFound    = errors.New("nav: screen not found")
	ErrComponentNotFound = errors.New("nav: component not found")
	ErrQueueFull         = errors.New("nav: queue full")
)

// Infrastructure.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrTimeout  = errors.New("timeout")
	ErrClosed   = errors.New("closed")
)

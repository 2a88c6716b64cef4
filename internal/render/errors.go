package render

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for rendering and stream parsing.
var (
	ErrInvalidFormat  = errors.New("invalid image format")
	ErrInvalidRequest = errors.New("invalid render request")
	ErrNoSignature    = errors.New("renderer output does not start with an image signature")
	ErrEmptyStream    = errors.New("renderer produced no output")
	ErrUnexpectedEOF  = errors.New("unexpected end of renderer output")
	ErrTooManyPages   = errors.New("renderer produced more pages than requested")
)

// maxStderrInError caps how many stderr lines are repeated in Error().
const maxStderrInError = 3

// Error describes a failed renderer invocation with enough context to
// diagnose it without re-running.
type Error struct {
	Document  string
	FirstPage int
	LastPage  int
	DPI       int
	Command   string
	ExitCode  int
	Pages     int // pages emitted before the failure
	Stderr    []string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rendering %s pages %d-%d at %d dpi: %v", e.Document, e.FirstPage, e.LastPage, e.DPI, e.Err)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if len(e.Stderr) > 0 {
		lines := e.Stderr
		if len(lines) > maxStderrInError {
			lines = lines[:maxStderrInError]
		}
		fmt.Fprintf(&b, ": %s", strings.Join(lines, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

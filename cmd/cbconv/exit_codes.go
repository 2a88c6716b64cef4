package main

import (
	"errors"
	"os"

	cbconv "github.com/alnah/go-cbconv"
	"github.com/alnah/go-cbconv/internal/config"
	"github.com/alnah/go-cbconv/internal/dpi"
	"github.com/alnah/go-cbconv/internal/process"
	"github.com/alnah/go-cbconv/internal/render"
)

// Exit codes for cbconv CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Successful conversion
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or validation
	ExitIO       = 3 // File not found, unreadable document, permission denied
	ExitRenderer = 4 // Ghostscript or 7-Zip failures, pages not rendered
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Renderer errors (exit 4)
	if errors.Is(err, cbconv.ErrPartialConversion) ||
		errors.Is(err, cbconv.ErrArchive) ||
		errors.Is(err, process.ErrStart) ||
		errors.Is(err, process.ErrExitStatus) ||
		errors.Is(err, render.ErrNoSignature) ||
		errors.Is(err, render.ErrEmptyStream) ||
		errors.Is(err, render.ErrUnexpectedEOF) ||
		errors.Is(err, dpi.ErrMaximumDPI) {
		return ExitRenderer
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, cbconv.ErrEmptyInput) ||
		errors.Is(err, cbconv.ErrInputNotFound) ||
		errors.Is(err, cbconv.ErrInvalidDocument) ||
		errors.Is(err, cbconv.ErrOutputDir) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrNoBooks) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrFieldRange) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, render.ErrInvalidFormat) ||
		errors.Is(err, dpi.ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrUnknownCommand) {
		return ExitUsage
	}

	return ExitGeneral
}

package cbconv

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	ErrEmptyInput        = errors.New("input path cannot be empty")
	ErrInputNotFound     = errors.New("input file not found")
	ErrInvalidDocument   = errors.New("cannot read document")
	ErrOutputDir         = errors.New("cannot prepare output directory")
	ErrPartialConversion = errors.New("some pages were not converted")
	ErrPageNotRendered   = errors.New("page was not rendered")
	ErrArchive           = errors.New("archive creation failed")
)

// PageError reports one page that was not written. DPI is zero when the
// failure happened before a resolution was chosen.
type PageError struct {
	Page int
	DPI  int
	Err  error
}

func (e *PageError) Error() string {
	if e.DPI > 0 {
		return fmt.Sprintf("page %d at %d dpi: %v", e.Page, e.DPI, e.Err)
	}
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

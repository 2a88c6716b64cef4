// Package page defines page sizes and the page artifact naming contract.
//
// Sizes are compared by area: the signed difference of width*height is the
// only ordering used when searching for a rendering resolution.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// NumberWidth is the zero-padded width of page numbers in artifact names.
const NumberWidth = 4

const namePrefix = "page-"

// ErrDecodeSize is returned when image dimensions cannot be read.
var ErrDecodeSize = errors.New("cannot read image dimensions")

// Size is a page size in pixels.
type Size struct {
	Width  int
	Height int
}

// Area returns width*height.
func (s Size) Area() int64 {
	return int64(s.Width) * int64(s.Height)
}

// Diff returns s.Area() - o.Area().
func (s Size) Diff(o Size) int64 {
	return s.Area() - o.Area()
}

// Smaller reports whether s has a smaller area than o.
func (s Size) Smaller(o Size) bool {
	return s.Diff(o) < 0
}

// IsZero reports whether either dimension is unset.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FileName returns the artifact name for page number n, e.g. page-0007.jpg.
// ext may be given with or without a leading dot.
func FileName(n int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s%0*d.%s", namePrefix, NumberWidth, n, ext)
}

// ParseFileName recovers the page number from an artifact name or path.
func ParseFileName(name string) (int, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, namePrefix) {
		return 0, false
	}
	digits := strings.TrimSuffix(base[len(namePrefix):], filepath.Ext(base))
	if len(digits) < NumberWidth {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DecodeSize reads the dimensions and format name from an encoded image
// header without decoding pixels.
func DecodeSize(data []byte) (Size, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Size{}, "", fmt.Errorf("%w: %v", ErrDecodeSize, err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, format, nil
}

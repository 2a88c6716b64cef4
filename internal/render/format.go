package render

import (
	"bytes"
	"fmt"
	"strings"
)

// Format is the image format a renderer writes.
type Format string

// Supported output formats.
const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegSignature = []byte{0xff, 0xd8, 0xff}

	// IEND chunk type; the chunk's 4-byte CRC follows it.
	pngTrailer  = []byte{'I', 'E', 'N', 'D'}
	jpegTrailer = []byte{0xff, 0xd9}
)

// ParseFormat accepts png, jpeg or jpg, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	default:
		return "", fmt.Errorf("%w: %q (must be png or jpeg)", ErrInvalidFormat, s)
	}
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

// Device returns the Ghostscript output device.
func (f Format) Device() string {
	if f == JPEG {
		return "jpeg"
	}
	return "png16m"
}

// Signature returns the magic bytes every image of this format starts with.
func (f Format) Signature() []byte {
	if f == JPEG {
		return jpegSignature
	}
	return pngSignature
}

// Complete reports whether data ends the way every finished image of this
// format does: an IEND chunk for PNG, an EOI marker for JPEG.
func (f Format) Complete(data []byte) bool {
	if f == JPEG {
		return bytes.HasSuffix(data, jpegTrailer)
	}
	n := len(data)
	return n >= len(pngSignature)+12 && bytes.Equal(data[n-8:n-4], pngTrailer)
}

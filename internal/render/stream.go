package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/alnah/go-cbconv/internal/bufpool"
)

// Page is one complete image cut from a renderer's output stream. Data
// belongs to a pooled buffer and is only valid during the handler call.
type Page struct {
	Number int
	Data   []byte
}

// PageHandler receives pages in stream order. Returning an error stops
// parsing.
type PageHandler func(p Page) error

// StreamParser splits a concatenation of images into pages by matching the
// format signature that starts each image.
//
// A page is cut when the next signature appears, so every page but the last
// is known to be whole before it is emitted. The last page is held by Read
// until the caller knows the producer succeeded: Commit emits it, Abort
// drops it.
type StreamParser struct {
	pool      *bufpool.Pool
	format    Format
	signature []byte
	first     int
	expected  int

	emitted int
	tail    *bufpool.Growable // holds the last page between Read and Commit
}

// NewStreamParser creates a parser numbering pages from first. When expected
// is positive, a stream with fewer or more pages is an error.
func NewStreamParser(pool *bufpool.Pool, format Format, first, expected int) *StreamParser {
	return &StreamParser{
		pool:      pool,
		format:    format,
		signature: format.Signature(),
		first:     first,
		expected:  expected,
	}
}

// Parse reads r to EOF and emits every page, the last one included. It is
// Read followed by Commit, for streams whose producer cannot fail.
func (p *StreamParser) Parse(r io.Reader, handle PageHandler) (int, error) {
	if _, err := p.Read(r, handle); err != nil {
		p.Abort()
		return p.emitted, err
	}
	return p.Commit(handle)
}

// Read consumes r to EOF, emitting each page as soon as the next signature
// is seen. Bytes already scanned are never scanned again. The final page is
// checked for its end marker and held for Commit. Read returns the number
// of pages emitted.
func (p *StreamParser) Read(r io.Reader, handle PageHandler) (int, error) {
	buf := bufpool.NewGrowable(p.pool)
	held := false
	defer func() {
		if !held {
			buf.Release()
		}
	}()

	sig := p.signature
	checked := false
	scan := 0

	for {
		_, readErr := buf.Fill(r)

		if !checked && buf.Count() >= len(sig) {
			if !buf.HasPrefixAt(0, sig) {
				return p.emitted, ErrNoSignature
			}
			checked = true
			scan = len(sig)
		}

		for checked {
			i := buf.Index(scan, sig)
			if i < 0 {
				// A signature may straddle the next read.
				scan = max(scan, buf.Count()-len(sig)+1)
				break
			}
			if err := p.emit(buf.Bytes()[:i], handle); err != nil {
				return p.emitted, err
			}
			buf.Discard(i)
			scan = len(sig)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return p.emitted, readErr
		}
	}

	switch {
	case buf.Count() == 0 && p.emitted == 0:
		return 0, ErrEmptyStream
	case buf.Count() > 0 && !checked:
		return p.emitted, ErrNoSignature
	case buf.Count() > 0:
		number := p.first + p.emitted
		if p.expected > 0 && p.emitted >= p.expected {
			return p.emitted, fmt.Errorf("%w: more than %d", ErrTooManyPages, p.expected)
		}
		if !p.format.Complete(buf.Bytes()) {
			return p.emitted, fmt.Errorf("%w: page %d is truncated", ErrUnexpectedEOF, number)
		}
		p.tail, held = buf, true
	}
	return p.emitted, nil
}

// Commit emits the page held by Read, if any, and checks the page count.
// It returns the total number of pages emitted.
func (p *StreamParser) Commit(handle PageHandler) (int, error) {
	if tail := p.tail; tail != nil {
		p.tail = nil
		err := p.emit(tail.Bytes(), handle)
		tail.Release()
		if err != nil {
			return p.emitted, err
		}
	}
	if p.expected > 0 && p.emitted < p.expected {
		return p.emitted, fmt.Errorf("%w: got %d of %d pages", ErrUnexpectedEOF, p.emitted, p.expected)
	}
	return p.emitted, nil
}

// Abort drops the page held by Read. It is safe to call more than once.
func (p *StreamParser) Abort() {
	if p.tail != nil {
		p.tail.Release()
		p.tail = nil
	}
}

// emit hands one whole image to handle.
func (p *StreamParser) emit(data []byte, handle PageHandler) error {
	number := p.first + p.emitted
	if p.expected > 0 && p.emitted >= p.expected {
		return fmt.Errorf("%w: more than %d", ErrTooManyPages, p.expected)
	}
	if !p.format.Complete(data) {
		return fmt.Errorf("%w: page %d is truncated", ErrUnexpectedEOF, number)
	}
	if err := handle(Page{Number: number, Data: data}); err != nil {
		return err
	}
	p.emitted++
	return nil
}

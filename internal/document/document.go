// Package document inspects PDF books: page count and, per page, the pixel
// size of the largest embedded image. That size is what a rendered page
// should match.
package document

import (
	"errors"
	"fmt"
	"os"

	"rsc.io/pdf"

	"github.com/alnah/go-cbconv/internal/page"
)

// maxFormDepth bounds recursion into nested form XObjects.
const maxFormDepth = 4

// Sentinel errors.
var (
	ErrOpen      = errors.New("cannot open document")
	ErrMalformed = errors.New("malformed document")
	ErrNoPages   = errors.New("document has no pages")
)

// Page describes one page of a document.
type Page struct {
	Number int       // 1-based
	Wanted page.Size // largest embedded image, zero when the page has none
	Images int
}

// Info is the result of inspecting a document.
type Info struct {
	Path  string
	Pages []Page
}

// NumPages returns the page count.
func (i *Info) NumPages() int {
	return len(i.Pages)
}

// Inspect reads the page tree of the PDF at path.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided input document
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	return inspect(path, f, st.Size())
}

func inspect(path string, f *os.File, size int64) (info *Info, err error) {
	// The PDF reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, r)
		}
	}()

	rd, err := pdf.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	n := rd.NumPage()
	if n < 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, path)
	}

	info = &Info{Path: path, Pages: make([]Page, 0, n)}
	for i := 1; i <= n; i++ {
		p := rd.Page(i)
		if p.V.IsNull() {
			return nil, fmt.Errorf("%w: %s: page %d missing", ErrMalformed, path, i)
		}
		wanted, images := largestImage(p.Resources(), 0)
		info.Pages = append(info.Pages, Page{Number: i, Wanted: wanted, Images: images})
	}
	return info, nil
}

// largestImage walks the XObjects of a resource dictionary, descending into
// forms, and returns the image with the largest area.
func largestImage(resources pdf.Value, depth int) (page.Size, int) {
	var best page.Size
	count := 0

	xobjects := resources.Key("XObject")
	for _, name := range xobjects.Keys() {
		x := xobjects.Key(name)
		switch x.Key("Subtype").Name() {
		case "Image":
			s := page.Size{Width: int(x.Key("Width").Int64()), Height: int(x.Key("Height").Int64())}
			if s.IsZero() {
				continue
			}
			count++
			if best.Smaller(s) {
				best = s
			}
		case "Form":
			if depth >= maxFormDepth {
				continue
			}
			s, c := largestImage(x.Key("Resources"), depth+1)
			count += c
			if best.Smaller(s) {
				best = s
			}
		}
	}
	return best, count
}

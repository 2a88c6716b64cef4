package cbconv

import (
	"sort"
	"sync"

	"github.com/alnah/go-cbconv/internal/document"
	"github.com/alnah/go-cbconv/internal/page"
)

// Range is a run of consecutive pages rendered by one invocation at one
// resolution.
type Range struct {
	First int
	Last  int
	DPI   int
}

// Pages returns the number of pages in the range.
func (r Range) Pages() int {
	return r.Last - r.First + 1
}

// distinctSizes returns the non-zero wanted sizes in order of first
// appearance, each with the first page that wants it.
func distinctSizes(pages []document.Page) ([]page.Size, map[page.Size]int) {
	var order []page.Size
	first := make(map[page.Size]int)
	for _, p := range pages {
		if p.Wanted.IsZero() {
			continue
		}
		if _, ok := first[p.Wanted]; !ok {
			first[p.Wanted] = p.Number
			order = append(order, p.Wanted)
		}
	}
	return order, first
}

// planRanges groups consecutive pages sharing a resolution into ranges of
// at most perJob pages. dpiFor returns false for pages to skip.
func planRanges(pages []document.Page, perJob int, dpiFor func(document.Page) (int, bool)) []Range {
	var ranges []Range
	var cur *Range

	for _, p := range pages {
		dpi, ok := dpiFor(p)
		if !ok {
			cur = nil
			continue
		}
		if cur != nil && cur.DPI == dpi && cur.Last == p.Number-1 && cur.Pages() < perJob {
			cur.Last = p.Number
			continue
		}
		ranges = append(ranges, Range{First: p.Number, Last: p.Number, DPI: dpi})
		cur = &ranges[len(ranges)-1]
	}
	return ranges
}

// pageTracker records, for every page of a book, whether it was written or
// why it was not. Safe for concurrent use.
type pageTracker struct {
	mu      sync.Mutex
	written []bool
	count   int
	causes  map[int]*PageError
}

func newPageTracker(pages int) *pageTracker {
	return &pageTracker{
		written: make([]bool, pages+1),
		causes:  make(map[int]*PageError),
	}
}

// markWritten records page n and returns the number written so far.
func (t *pageTracker) markWritten(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.written[n] {
		t.written[n] = true
		t.count++
	}
	delete(t.causes, n)
	return t.count
}

// fail records err for every page in [first, last] not yet written. The
// first recorded cause wins.
func (t *pageTracker) fail(first, last, dpi int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for n := first; n <= last; n++ {
		if t.written[n] {
			continue
		}
		if _, ok := t.causes[n]; !ok {
			t.causes[n] = &PageError{Page: n, DPI: dpi, Err: err}
		}
	}
}

// writtenCount returns the number of pages written.
func (t *pageTracker) writtenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// failures lists every unwritten page in page order. Pages without a
// recorded cause get fallback.
func (t *pageTracker) failures(fallback error) []*PageError {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*PageError
	for n := 1; n < len(t.written); n++ {
		if t.written[n] {
			continue
		}
		pe, ok := t.causes[n]
		if !ok {
			pe = &PageError{Page: n, Err: fallback}
		}
		out = append(out, pe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

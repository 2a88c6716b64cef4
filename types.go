package cbconv

import "time"

// Input contains conversion parameters.
type Input struct {
	Path      string // PDF book (required)
	OutputDir string // page directory (optional, default: <dir>/<book>)
	Archive   bool   // pack pages into <book>.cbz next to OutputDir
	KeepPages bool   // keep page files after archiving
}

// Result describes one converted book. It is returned even when some pages
// failed, so callers can report what was written.
type Result struct {
	Book      string
	Source    string
	OutputDir string
	Archive   string // empty unless an archive was written
	Pages     int    // pages in the document
	Written   int    // page files written
	Probes    int    // renderer invocations spent on resolution search
	Ranges    []Range
	Duration  time.Duration

	failed []*PageError
}

// Failed lists the pages that were not written, in page order.
func (r *Result) Failed() []*PageError {
	return r.failed
}

// OK reports whether every page was written.
func (r *Result) OK() bool {
	return len(r.failed) == 0
}

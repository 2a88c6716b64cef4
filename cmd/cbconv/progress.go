package main

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter rewrites one status line per book on a terminal stream.
// Safe for concurrent use.
type progressPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	disabled bool
	book     string
	active   bool
}

func newProgressPrinter(w io.Writer, disabled bool) *progressPrinter {
	return &progressPrinter{w: w, disabled: disabled}
}

// Begin starts the status line for book.
func (p *progressPrinter) Begin(book string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book = book
}

// End terminates the status line, if one was written.
func (p *progressPrinter) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
	}
	p.active = false
}

func (p *progressPrinter) Report(msg string) {
	if p.disabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
	fmt.Fprintf(p.w, "%s: %s\n", p.book, msg)
}

func (p *progressPrinter) ReportPercent(msg string, percent float64) {
	if p.disabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s: %3.0f%% %s", p.book, percent, msg)
	p.active = true
}

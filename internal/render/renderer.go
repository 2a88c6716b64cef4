// Package render rasterizes document pages with an external tool and cuts
// its standard output into one image per page.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/alnah/go-cbconv/internal/bufpool"
	"github.com/alnah/go-cbconv/internal/process"
)

// Rendering defaults.
const (
	DefaultTool        = "gs"
	DefaultJPEGQuality = 90
)

// Tool locates the rasterizer binary. Args are placed before the rendering
// switches.
type Tool struct {
	Path string
	Args []string
	Env  []string
}

// Request selects a page range and resolution.
type Request struct {
	Document    string
	FirstPage   int
	LastPage    int
	DPI         int
	Format      Format
	JPEGQuality int
	WorkDir     string
}

// Pages returns the number of pages in the range.
func (r Request) Pages() int {
	return r.LastPage - r.FirstPage + 1
}

// Validate checks the page range and resolution.
func (r Request) Validate() error {
	switch {
	case r.Document == "":
		return fmt.Errorf("%w: document is empty", ErrInvalidRequest)
	case r.FirstPage < 1 || r.LastPage < r.FirstPage:
		return fmt.Errorf("%w: page range %d-%d", ErrInvalidRequest, r.FirstPage, r.LastPage)
	case r.DPI < 1:
		return fmt.Errorf("%w: dpi %d", ErrInvalidRequest, r.DPI)
	}
	return nil
}

// Args builds the Ghostscript switches for req, writing images to stdout.
func Args(req Request) []string {
	format := req.Format
	if format == "" {
		format = PNG
	}
	args := []string{
		"-q",
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-sDEVICE=" + format.Device(),
		"-r" + strconv.Itoa(req.DPI),
		"-dFirstPage=" + strconv.Itoa(req.FirstPage),
		"-dLastPage=" + strconv.Itoa(req.LastPage),
		"-dTextAlphaBits=4",
		"-dGraphicsAlphaBits=4",
	}
	if format == JPEG {
		q := req.JPEGQuality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		args = append(args, "-dJPEGQ="+strconv.Itoa(q))
	}
	return append(args, "-sOutputFile=-", req.Document)
}

// Renderer drives one rasterizer invocation. Start must be called exactly
// once before Errors or Wait; calling them first panics.
type Renderer struct {
	tool Tool
	pool *bufpool.Pool

	mu       sync.Mutex
	req      Request
	runner   *process.Runner
	pages    int
	parseErr error

	// flush guards the held last page.
	flush     sync.Mutex
	parser    *StreamParser
	handler   PageHandler
	committed bool
	commitErr error
}

// NewRenderer creates a renderer using tool and pooled stream buffers.
func NewRenderer(tool Tool, pool *bufpool.Pool) *Renderer {
	if tool.Path == "" {
		tool.Path = DefaultTool
	}
	return &Renderer{tool: tool, pool: pool}
}

// Start spawns the rasterizer for req. handler receives each page as soon
// as the next one begins; the last page is delivered by Wait once the
// rasterizer has exited cleanly.
func (r *Renderer) Start(ctx context.Context, req Request, handler PageHandler) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.Format == "" {
		req.Format = PNG
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runner != nil {
		return process.ErrAlreadyStarted
	}

	args := append(append([]string(nil), r.tool.Args...), Args(req)...)
	runner := process.NewRunner(process.Command{
		Path: r.tool.Path,
		Args: args,
		Dir:  req.WorkDir,
		Env:  r.tool.Env,
	})

	parser := NewStreamParser(r.pool, req.Format, req.FirstPage, req.Pages())
	err := runner.Start(ctx, func(out io.Reader) error {
		n, err := parser.Read(out, handler)
		r.mu.Lock()
		r.pages, r.parseErr = n, err
		r.mu.Unlock()
		return err
	})
	if err != nil {
		return newError(req, runner.Command().String(), -1, 0, nil, err)
	}

	r.req = req
	r.runner = runner
	r.parser = parser
	r.handler = handler
	return nil
}

// Errors returns the rasterizer's stderr lines.
func (r *Renderer) Errors() []string {
	return r.started("Errors").Errors()
}

// Wait blocks until the rasterizer exits and its output is parsed. A failure
// is returned as *Error.
func (r *Renderer) Wait() (int, error) {
	runner := r.started("Wait")

	code, err := runner.Wait()
	if err == nil {
		n, err := r.commit()
		if err == nil {
			return code, nil
		}
		r.mu.Lock()
		req := r.req
		r.mu.Unlock()
		return code, newError(req, runner.Command().String(), code, n, runner.Errors(), err)
	}
	r.abort()

	r.mu.Lock()
	req, pages, parseErr := r.req, r.pages, r.parseErr
	r.mu.Unlock()

	// Report the parse failure itself rather than the process wrapper. A
	// tool that failed usually also produced a bad stream.
	if parseErr != nil && errors.Is(err, process.ErrOutput) {
		err = parseErr
		if code > 0 {
			err = fmt.Errorf("%w: %d: %w", process.ErrExitStatus, code, parseErr)
		}
	}
	return code, newError(req, runner.Command().String(), code, pages, runner.Errors(), err)
}

// Close kills the rasterizer if it is still running. Close before Start is a
// no-op.
func (r *Renderer) Close() error {
	r.mu.Lock()
	runner := r.runner
	r.mu.Unlock()

	if runner == nil {
		return nil
	}
	err := runner.Close()
	r.abort()
	return err
}

// commit delivers the page held back by the parser. It runs once; later
// calls return the first result.
func (r *Renderer) commit() (int, error) {
	r.flush.Lock()
	defer r.flush.Unlock()

	if !r.committed {
		r.committed = true
		n, err := r.parser.Commit(r.handler)
		r.commitErr = err
		r.mu.Lock()
		r.pages = n
		r.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages, r.commitErr
}

// abort drops the held page. A process that failed or was killed may have
// stopped writing it halfway.
func (r *Renderer) abort() {
	r.flush.Lock()
	defer r.flush.Unlock()
	if r.parser != nil {
		r.parser.Abort()
	}
}

func (r *Renderer) started(op string) *process.Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runner == nil {
		panic("render: " + op + " called before Start")
	}
	return r.runner
}

func newError(req Request, cmdline string, code, pages int, stderr []string, err error) error {
	return &Error{
		Document:  req.Document,
		FirstPage: req.FirstPage,
		LastPage:  req.LastPage,
		DPI:       req.DPI,
		Command:   cmdline,
		ExitCode:  code,
		Pages:     pages,
		Stderr:    stderr,
		Err:       err,
	}
}

// RenderPages runs a complete invocation: start, wait, close.
func RenderPages(ctx context.Context, tool Tool, pool *bufpool.Pool, req Request, handler PageHandler) error {
	r := NewRenderer(tool, pool)
	if err := r.Start(ctx, req, handler); err != nil {
		return err
	}
	defer r.Close()

	_, err := r.Wait()
	return err
}

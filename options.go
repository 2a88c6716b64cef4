package cbconv

import (
	"log/slog"

	"github.com/alnah/go-cbconv/internal/metrics"
	"github.com/alnah/go-cbconv/internal/render"
)

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	workers     int
	minimumDPI  int
	maximumDPI  int
	format      render.Format
	jpegQuality int
	pagesPerJob int
	bufferSize  int
	gs          toolConfig
	sevenZip    toolConfig
	toolEnv     []string
}

type toolConfig struct {
	path string
	args []string
}

// Defaults used when no option is given.
const (
	DefaultPagesPerJob = 16
	DefaultBufferSize  = 4 << 20
)

// WithWorkers sets how many pages or page ranges are processed in parallel.
// Zero derives the count from GOMAXPROCS (see ResolveWorkers).
// Panics if n < 0 (programmer error).
func WithWorkers(n int) Option {
	if n < 0 {
		panic("cbconv: WithWorkers count must not be negative")
	}
	return func(c *Converter) {
		c.cfg.workers = n
	}
}

// WithMinimumDPI sets the lowest resolution tried for any page.
// Panics if dpi < 1.
func WithMinimumDPI(dpi int) Option {
	if dpi < 1 {
		panic("cbconv: WithMinimumDPI must be positive")
	}
	return func(c *Converter) {
		c.cfg.minimumDPI = dpi
	}
}

// WithMaximumDPI caps the resolution search. Pages that still come out too
// small at this resolution are reported as failed.
// Panics if dpi < 1.
func WithMaximumDPI(dpi int) Option {
	if dpi < 1 {
		panic("cbconv: WithMaximumDPI must be positive")
	}
	return func(c *Converter) {
		c.cfg.maximumDPI = dpi
	}
}

// WithFormat selects the page image format.
func WithFormat(f render.Format) Option {
	return func(c *Converter) {
		c.cfg.format = f
	}
}

// WithJPEGQuality sets the JPEG quality (1-100). Panics outside that range.
func WithJPEGQuality(q int) Option {
	if q < 1 || q > 100 {
		panic("cbconv: WithJPEGQuality must be between 1 and 100")
	}
	return func(c *Converter) {
		c.cfg.jpegQuality = q
	}
}

// WithPagesPerJob bounds how many consecutive pages one renderer invocation
// produces. Panics if n < 1.
func WithPagesPerJob(n int) Option {
	if n < 1 {
		panic("cbconv: WithPagesPerJob must be positive")
	}
	return func(c *Converter) {
		c.cfg.pagesPerJob = n
	}
}

// WithBufferSize sets the base size of pooled stream buffers.
// Panics if n < 1.
func WithBufferSize(n int) Option {
	if n < 1 {
		panic("cbconv: WithBufferSize must be positive")
	}
	return func(c *Converter) {
		c.cfg.bufferSize = n
	}
}

// WithGhostscript sets the Ghostscript binary. args are passed before the
// rendering switches.
func WithGhostscript(path string, args ...string) Option {
	return func(c *Converter) {
		c.cfg.gs = toolConfig{path: path, args: args}
	}
}

// WithSevenZip sets the 7-Zip binary used for archives. args are passed
// before the archive command.
func WithSevenZip(path string, args ...string) Option {
	return func(c *Converter) {
		c.cfg.sevenZip = toolConfig{path: path, args: args}
	}
}

// WithToolEnv sets the environment of external tools. Nil inherits the
// current process environment.
func WithToolEnv(env []string) Option {
	return func(c *Converter) {
		c.cfg.toolEnv = env
	}
}

// WithProgress sets the sink notified once per written page.
func WithProgress(p Progress) Option {
	return func(c *Converter) {
		if p != nil {
			c.progress = p
		}
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records job, page and buffer statistics into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Converter) {
		c.metrics = m
	}
}

package cbconv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alnah/go-cbconv/internal/archive"
	"github.com/alnah/go-cbconv/internal/bufpool"
	"github.com/alnah/go-cbconv/internal/document"
	"github.com/alnah/go-cbconv/internal/dpi"
	"github.com/alnah/go-cbconv/internal/fileutil"
	"github.com/alnah/go-cbconv/internal/jobs"
	"github.com/alnah/go-cbconv/internal/metrics"
	"github.com/alnah/go-cbconv/internal/page"
	"github.com/alnah/go-cbconv/internal/render"
)

// ArchiveExt is the extension of written archives.
const ArchiveExt = ".cbz"

// Converter turns PDF books into directories of page images.
// Create with NewConverter and reuse it across books; Convert is safe for
// concurrent use.
type Converter struct {
	cfg      converterConfig
	pool     *bufpool.Pool
	progress Progress
	logger   *slog.Logger
	metrics  *metrics.Collector
	inspect  func(path string) (*document.Info, error)
}

// NewConverter creates a Converter with default configuration.
// Returns an error if the resolution bounds or format are invalid.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		cfg: converterConfig{
			minimumDPI:  dpi.DefaultMinimumDPI,
			maximumDPI:  dpi.DefaultMaximumDPI,
			format:      render.PNG,
			jpegQuality: render.DefaultJPEGQuality,
			pagesPerJob: DefaultPagesPerJob,
			bufferSize:  DefaultBufferSize,
			gs:          toolConfig{path: render.DefaultTool},
			sevenZip:    toolConfig{path: archive.DefaultTool},
		},
		progress: nopProgress{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		inspect:  document.Inspect,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.searchSettings().Validate(); err != nil {
		return nil, err
	}
	if _, err := render.ParseFormat(string(c.cfg.format)); err != nil {
		return nil, err
	}
	c.cfg.workers = ResolveWorkers(c.cfg.workers)

	c.pool = bufpool.New(c.cfg.bufferSize)
	c.metrics.WatchPool(c.pool)

	return c, nil
}

// Workers returns the resolved worker count.
func (c *Converter) Workers() int {
	return c.cfg.workers
}

func (c *Converter) searchSettings() dpi.Settings {
	s := dpi.DefaultSettings()
	s.MinimumDPI = c.cfg.minimumDPI
	s.MaximumDPI = c.cfg.maximumDPI
	return s
}

func (c *Converter) renderTool() render.Tool {
	return render.Tool{Path: c.cfg.gs.path, Args: c.cfg.gs.args, Env: c.cfg.toolEnv}
}

func (c *Converter) archiveTool() archive.Tool {
	return archive.Tool{Path: c.cfg.sevenZip.path, Args: c.cfg.sevenZip.args, Env: c.cfg.toolEnv}
}

// Convert renders every page of input.Path into the output directory.
//
// A Result is returned whenever the document could be read, even if pages
// failed; the error then wraps ErrPartialConversion and Result.Failed lists
// each missing page. Cancelling ctx stops the renderers and reports the
// pages not yet written.
func (c *Converter) Convert(ctx context.Context, input Input) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	start := time.Now()
	info, outDir, err := c.prepare(input)
	if err != nil {
		c.metrics.RecordBook(false)
		return nil, err
	}

	res := &Result{
		Book:      fileutil.BookName(input.Path),
		Source:    input.Path,
		OutputDir: outDir,
		Pages:     info.NumPages(),
	}
	log := c.logger.With("book", res.Book)
	log.Info("converting", "pages", res.Pages, "workers", c.cfg.workers, "output", outDir)

	tracker := newPageTracker(res.Pages)

	resolutions := c.searchAll(ctx, log, input.Path, info.Pages, tracker, res)
	res.Ranges = planRanges(info.Pages, c.cfg.pagesPerJob, func(p document.Page) (int, bool) {
		if p.Wanted.IsZero() {
			return c.cfg.minimumDPI, true
		}
		d, ok := resolutions[p.Wanted]
		return d, ok
	})
	failedRanges := c.renderAll(ctx, log, input.Path, outDir, res.Ranges, tracker, res.Pages)

	fallback := ErrPageNotRendered
	if ctx.Err() != nil {
		fallback = ctx.Err()
	}
	res.Written = tracker.writtenCount()
	res.failed = tracker.failures(fallback)
	c.metrics.RecordPages(res.Written, len(res.failed))

	switch {
	case len(res.failed) > 0 || failedRanges > 0:
		err = fmt.Errorf("%w: %d of %d pages, %d ranges failed", ErrPartialConversion, len(res.failed), res.Pages, failedRanges)
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
	case input.Archive:
		err = c.pack(ctx, log, input, res)
	}

	res.Duration = time.Since(start)
	c.metrics.RecordBook(err == nil)
	log.Info("converted", "written", res.Written, "failed", len(res.failed), "duration", res.Duration)
	return res, err
}

// prepare validates input, reads the document and creates the output
// directory.
func (c *Converter) prepare(input Input) (*document.Info, string, error) {
	if input.Path == "" {
		return nil, "", ErrEmptyInput
	}
	if !fileutil.FileExists(input.Path) {
		return nil, "", fmt.Errorf("%w: %s", ErrInputNotFound, input.Path)
	}

	info, err := c.inspect(input.Path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	outDir := input.OutputDir
	if outDir == "" {
		outDir = filepath.Join(filepath.Dir(input.Path), fileutil.BookName(input.Path))
	}
	if err := fileutil.EnsureDir(outDir); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrOutputDir, err)
	}
	return info, outDir, nil
}

// searchAll runs one resolution search per distinct wanted size. Pages whose
// search failed are recorded in tracker and left out of the returned map.
func (c *Converter) searchAll(ctx context.Context, log *slog.Logger, path string, pages []document.Page, tracker *pageTracker, res *Result) map[page.Size]int {
	sizes, firstPage := distinctSizes(pages)
	resolutions := make(map[page.Size]int, len(sizes))
	if len(sizes) == 0 {
		return resolutions
	}

	var mu sync.Mutex
	settings := c.searchSettings()

	exec := jobs.NewExecutor(func(r jobs.Result[dpi.Result]) {
		size := r.Info.(page.Size)
		c.metrics.RecordJob(metrics.KindSearch, r.Duration, r.Err)
		c.metrics.RecordProbes(len(r.Value.Probes))

		mu.Lock()
		defer mu.Unlock()
		res.Probes += len(r.Value.Probes)
		if r.Err != nil {
			log.Warn("resolution search failed", "wanted", size, "job", r.ID, "error", r.Err)
			for _, p := range pages {
				if p.Wanted == size {
					tracker.fail(p.Number, p.Number, 0, r.Err)
				}
			}
			return
		}
		log.Debug("resolution found", "wanted", size, "dpi", r.Value.DPI,
			"size", r.Value.Size, "probes", len(r.Value.Probes), "job", r.ID)
		resolutions[size] = r.Value.DPI
	}, jobs.WithLogger(c.logger))

	waiter, err := exec.Start(ctx, min(c.cfg.workers, len(sizes)), true)
	if err != nil {
		log.Error("starting search workers", "error", err)
		return resolutions
	}

	for _, size := range sizes {
		prober := &render.Prober{
			Tool:     c.renderTool(),
			Pool:     c.pool,
			Document: path,
			Page:     firstPage[size],
			Format:   c.cfg.format,
		}
		job := jobs.Func[dpi.Result](func(ctx context.Context) (dpi.Result, error) {
			return dpi.Search(ctx, settings, size, prober)
		})
		if _, err := exec.AddJobWithInfo(ctx, job, size); err != nil {
			break
		}
	}
	exec.Stop()

	// Workers exit once their jobs observe ctx.
	if err := waiter.Wait(context.WithoutCancel(ctx)); err != nil {
		log.Debug("search workers stopped", "error", err)
	}
	return resolutions
}

// renderAll dispatches ranges as render jobs and writes each page as it is
// cut from the stream. It returns the number of ranges whose job failed.
func (c *Converter) renderAll(ctx context.Context, log *slog.Logger, path, outDir string, ranges []Range, tracker *pageTracker, total int) int {
	if len(ranges) == 0 {
		return 0
	}

	ext := c.cfg.format.Extension()

	var failed atomic.Int32
	exec := jobs.NewExecutor(func(r jobs.Result[int]) {
		rg := r.Info.(Range)
		c.metrics.RecordJob(metrics.KindRender, r.Duration, r.Err)
		if r.Err != nil {
			log.Warn("range failed", "first", rg.First, "last", rg.Last, "dpi", rg.DPI,
				"written", r.Value, "job", r.ID, "error", r.Err)
			failed.Add(1)
			tracker.fail(rg.First, rg.Last, rg.DPI, r.Err)
			return
		}
		log.Debug("range rendered", "first", rg.First, "last", rg.Last, "dpi", rg.DPI,
			"duration", r.Duration, "job", r.ID)
	}, jobs.WithLogger(c.logger))

	producer := jobs.ProducerFunc[int](func(ctx context.Context, submit jobs.Submit[int]) error {
		for _, rg := range ranges {
			if err := submit(c.renderJob(path, outDir, ext, rg, tracker, total), rg); err != nil {
				return err
			}
		}
		return nil
	})

	waiter, err := exec.StartProducer(ctx, min(c.cfg.workers, len(ranges)), producer)
	if err != nil {
		log.Error("starting render workers", "error", err)
		return len(ranges)
	}
	if err := waiter.Wait(context.WithoutCancel(ctx)); err != nil {
		log.Debug("render producer stopped", "error", err)
	}
	return int(failed.Load())
}

func (c *Converter) renderJob(path, outDir, ext string, rg Range, tracker *pageTracker, total int) jobs.Job[int] {
	return jobs.Func[int](func(ctx context.Context) (int, error) {
		req := render.Request{
			Document:    path,
			FirstPage:   rg.First,
			LastPage:    rg.Last,
			DPI:         rg.DPI,
			Format:      c.cfg.format,
			JPEGQuality: c.cfg.jpegQuality,
		}

		written := 0
		err := render.RenderPages(ctx, c.renderTool(), c.pool, req, func(p render.Page) error {
			name := filepath.Join(outDir, page.FileName(p.Number, ext))
			if err := fileutil.WriteFileAtomic(name, p.Data); err != nil {
				return fmt.Errorf("writing page %d: %w", p.Number, err)
			}
			written++
			n := tracker.markWritten(p.Number)
			c.progress.ReportPercent(fmt.Sprintf("page %d/%d", p.Number, total), float64(n)*100/float64(total))
			return nil
		})
		return written, err
	})
}

// pack writes the archive next to the page directory and removes the pages
// unless input.KeepPages is set.
func (c *Converter) pack(ctx context.Context, log *slog.Logger, input Input, res *Result) error {
	output := filepath.Join(filepath.Dir(res.OutputDir), res.Book+ArchiveExt)
	comp := archive.NewCompressor(c.archiveTool(), c.cfg.workers)

	n, err := comp.Compress(ctx, res.OutputDir, output)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	res.Archive = output
	log.Info("archived", "archive", output, "pages", n)
	c.progress.Report("archived " + filepath.Base(output))

	if input.KeepPages {
		return nil
	}
	return removePages(res.OutputDir)
}

// removePages deletes page files from dir, then dir itself if it is empty.
func removePages(dir string) error {
	files, err := archive.PageFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(filepath.Join(dir, f)); err != nil {
			return fmt.Errorf("removing page: %w", err)
		}
	}
	// Kept when other files remain.
	_ = os.Remove(dir)
	return nil
}

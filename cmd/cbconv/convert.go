package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	cbconv "github.com/alnah/go-cbconv"
	"github.com/alnah/go-cbconv/internal/config"
	"github.com/alnah/go-cbconv/internal/fileutil"
	"github.com/alnah/go-cbconv/internal/metrics"
	"github.com/alnah/go-cbconv/internal/render"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput          = errors.New("no input specified")
	ErrNoBooks          = errors.New("no PDF files found")
	ErrInvalidExtension = errors.New("file must have a .pdf extension")
	ErrConversionFailed = errors.New("conversion failed")
)

// Converter is the interface for the conversion service.
type Converter interface {
	Convert(ctx context.Context, input cbconv.Input) (*cbconv.Result, error)
}

// Compile-time interface implementation check.
var _ Converter = (*cbconv.Converter)(nil)

// BookResult holds the outcome of a single book.
type BookResult struct {
	InputPath string
	OutputDir string
	Result    *cbconv.Result // nil when the document could not be read
	Err       error
	Duration  time.Duration
}

// runConvert orchestrates the conversion process.
func runConvert(ctx context.Context, positionalArgs []string, flags *convertFlags, env *Environment) error {
	envCfg := loadEnvConfig()

	cfg, err := loadConfig(flags.common.config, envCfg.ConfigPath)
	if err != nil {
		return err
	}

	// CLI flags > env vars > config file > defaults
	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	inputPath, err := resolveInputPath(positionalArgs)
	if err != nil {
		return err
	}
	books, err := discoverBooks(inputPath, cfg.Output.DefaultDir)
	if err != nil {
		return fmt.Errorf("discovering books: %w", err)
	}
	if len(books) == 0 {
		return fmt.Errorf("%w in %s", ErrNoBooks, inputPath)
	}

	logger := newLogger(env.Stderr, flags.common)
	collector := metrics.NewCollector()

	if flags.metricsAddr != "" {
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := collector.Serve(serveCtx, flags.metricsAddr); err != nil {
				logger.Error("metrics endpoint", "addr", flags.metricsAddr, "error", err)
			}
		}()
	}

	progress := newProgressPrinter(env.Stderr, flags.common.quiet || flags.common.verbose)
	opts, err := converterOptions(cfg, logger, collector, progress)
	if err != nil {
		return err
	}
	conv, err := cbconv.NewConverter(opts...)
	if err != nil {
		return err
	}

	results := convertBooks(ctx, conv, books, cfg.Output, progress, env.Now)

	failed, firstErr := printResults(results, flags.common, env)
	if flags.common.verbose {
		printMetrics(env.Stderr, collector)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d book(s): %w", ErrConversionFailed, failed, len(results), firstErr)
	}
	return nil
}

// loadConfig loads the config named by flag, or by the environment when the
// flag is unset. Without either, every value defers to the defaults.
func loadConfig(flagConfig, envConfig string) (*config.Config, error) {
	name := flagConfig
	if name == "" {
		name = envConfig
	}
	if name == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadConfig(name)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *convertFlags, cfg *config.Config) {
	if flags.workers != 0 {
		cfg.Workers = flags.workers
	}
	if flags.minDPI != 0 {
		cfg.Render.MinimumDPI = flags.minDPI
	}
	if flags.maxDPI != 0 {
		cfg.Render.MaximumDPI = flags.maxDPI
	}
	if flags.format != "" {
		cfg.Render.Format = flags.format
	}
	if flags.pagesPerJob != 0 {
		cfg.Render.PagesPerJob = flags.pagesPerJob
	}
	if flags.output != "" {
		cfg.Output.DefaultDir = flags.output
	}
	if flags.archive {
		cfg.Output.Archive = true
	}
	if flags.keepPages {
		cfg.Output.KeepPages = true
	}
}

// converterOptions translates validated settings into converter options.
// Zero values keep the library defaults.
func converterOptions(cfg *config.Config, logger *slog.Logger, m *metrics.Collector, p cbconv.Progress) ([]cbconv.Option, error) {
	opts := []cbconv.Option{
		cbconv.WithWorkers(cfg.Workers),
		cbconv.WithLogger(logger),
		cbconv.WithMetrics(m),
		cbconv.WithProgress(p),
	}

	r := cfg.Render
	if r.MinimumDPI > 0 {
		opts = append(opts, cbconv.WithMinimumDPI(r.MinimumDPI))
	}
	if r.MaximumDPI > 0 {
		opts = append(opts, cbconv.WithMaximumDPI(r.MaximumDPI))
	}
	if r.Format != "" {
		f, err := render.ParseFormat(r.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cbconv.WithFormat(f))
	}
	if r.JPEGQuality > 0 {
		opts = append(opts, cbconv.WithJPEGQuality(r.JPEGQuality))
	}
	if r.PagesPerJob > 0 {
		opts = append(opts, cbconv.WithPagesPerJob(r.PagesPerJob))
	}

	if cfg.Tools.Ghostscript != "" {
		opts = append(opts, cbconv.WithGhostscript(cfg.Tools.Ghostscript))
	}
	if cfg.Tools.SevenZip != "" {
		opts = append(opts, cbconv.WithSevenZip(cfg.Tools.SevenZip))
	}
	return opts, nil
}

// newLogger writes text logs to w: debug when verbose, errors only when
// quiet, warnings otherwise.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.verbose:
		level = slog.LevelDebug
	case f.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveInputPath determines the input path from args.
func resolveInputPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return "", ErrNoInput
}

// convertBooks converts books one after another. Each book already uses
// every worker, so books are not converted in parallel.
func convertBooks(ctx context.Context, conv Converter, books []BookToConvert, out config.OutputConfig, progress *progressPrinter, now func() time.Time) []BookResult {
	results := make([]BookResult, 0, len(books))

	for _, b := range books {
		if ctx.Err() != nil {
			results = append(results, BookResult{InputPath: b.InputPath, OutputDir: b.OutputDir, Err: ctx.Err()})
			continue
		}

		start := now()
		progress.Begin(fileutil.BookName(b.InputPath))
		res, err := conv.Convert(ctx, cbconv.Input{
			Path:      b.InputPath,
			OutputDir: b.OutputDir,
			Archive:   out.Archive,
			KeepPages: out.KeepPages,
		})
		progress.End()

		br := BookResult{InputPath: b.InputPath, OutputDir: b.OutputDir, Result: res, Err: err, Duration: now().Sub(start)}
		if res != nil {
			br.OutputDir = res.OutputDir
		}
		results = append(results, br)
	}
	return results
}

// printResults outputs conversion results and returns the failure count and
// the first failure.
func printResults(results []BookResult, f commonFlags, env *Environment) (int, error) {
	var succeeded, failed int
	var firstErr error

	for _, r := range results {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", r.InputPath, r.Err)
			if r.Result != nil && f.verbose {
				for _, pe := range r.Result.Failed() {
					fmt.Fprintf(env.Stderr, "  %v\n", pe)
				}
			}
			continue
		}

		succeeded++
		if f.quiet {
			continue
		}

		target := r.Result.OutputDir
		if r.Result.Archive != "" {
			target = r.Result.Archive
		}
		if f.verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%d pages, %d probes, %v)\n",
				r.InputPath, target, r.Result.Written, r.Result.Probes, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s (%d pages)\n", target, r.Result.Written)
		}
	}

	if !f.quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", succeeded, failed)
	}

	return failed, firstErr
}

// printMetrics writes the collector summary, one metric per line.
func printMetrics(w io.Writer, m *metrics.Collector) {
	samples, err := m.Summary()
	if err != nil {
		fmt.Fprintf(w, "metrics unavailable: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Metrics:")
	for _, s := range samples {
		fmt.Fprintf(w, "  %-40s %g\n", s.Name, s.Value)
	}
}

// bookOutputDir returns where the pages of inputPath go. An empty outputDir
// leaves the choice to the converter; a directory input keeps its layout.
func bookOutputDir(inputPath, outputDir, baseInputDir string) string {
	if outputDir == "" {
		return ""
	}
	name := fileutil.BookName(inputPath)
	if baseInputDir != "" {
		if rel, err := filepath.Rel(baseInputDir, inputPath); err == nil {
			return filepath.Join(outputDir, filepath.Dir(rel), name)
		}
	}
	return filepath.Join(outputDir, name)
}

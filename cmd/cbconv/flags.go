package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// errHelp reports that -h was handled and usage was printed.
var errHelp = flag.ErrHelp

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common      commonFlags
	output      string
	workers     int
	minDPI      int
	maxDPI      int
	format      string
	archive     bool
	keepPages   bool
	pagesPerJob int
	metricsAddr string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed progress and timing")
}

// parseConvertFlags parses convert command flags and returns positional args.
// Usage goes to usage on -h.
func parseConvertFlags(args []string, usage io.Writer) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &convertFlags{}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")

	// Rendering flags
	fs.IntVar(&f.minDPI, "min-dpi", 0, "lowest resolution tried (default 96)")
	fs.IntVar(&f.maxDPI, "max-dpi", 0, "highest resolution tried (default 1200)")
	fs.StringVar(&f.format, "format", "", "page format: png, jpeg")
	fs.IntVar(&f.pagesPerJob, "pages-per-job", 0, "pages per Ghostscript invocation")

	// Archive flags
	fs.BoolVar(&f.archive, "archive", false, "pack pages into a .cbz archive")
	fs.BoolVar(&f.keepPages, "keep-pages", false, "keep page files after archiving")

	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	addCommonFlags(fs, &f.common)

	fs.Usage = func() { printConvertUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}

// Package cbconv converts PDF comic books into page images sized to match
// the artwork embedded in each page.
//
// # Quick Start
//
// Create a converter and convert a book:
//
//	conv, err := cbconv.NewConverter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := conv.Convert(ctx, cbconv.Input{
//	    Path:    "Vol 1.pdf",
//	    Archive: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Archive) // Vol 1.cbz
//
// When only some pages fail, Convert still returns the Result and an error
// wrapping ErrPartialConversion. Result.Failed lists every missing page with
// its cause.
//
// # Conversion Pipeline
//
//  1. The document is inspected for its page count and, per page, the pixel
//     size of the largest embedded image.
//  2. For every distinct size, a search job renders the first such page at
//     increasing resolutions until the output is at least that large.
//  3. Consecutive pages sharing a resolution are grouped into ranges, each
//     rendered by one Ghostscript invocation streaming images to stdout.
//  4. Images are cut from the stream and written as page-NNNN.png.
//  5. Optionally, the pages are packed into a .cbz archive with 7-Zip.
//
// # Configuration
//
// Use functional options to customize the converter:
//
//	conv, err := cbconv.NewConverter(
//	    cbconv.WithWorkers(4),
//	    cbconv.WithMinimumDPI(150),
//	    cbconv.WithFormat(render.JPEG),
//	    cbconv.WithGhostscript("/opt/gs/bin/gs"),
//	)
//
// # Observability
//
// WithLogger attaches a slog.Logger. WithMetrics records job, page and
// buffer pool counters into a Prometheus registry owned by the caller.
package cbconv

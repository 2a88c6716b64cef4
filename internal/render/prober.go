package render

import (
	"context"
	"fmt"

	"github.com/alnah/go-cbconv/internal/bufpool"
	"github.com/alnah/go-cbconv/internal/page"
)

// Prober renders a single page at a given resolution and reports the
// resulting image size. Each call is a full rasterizer invocation.
type Prober struct {
	Tool     Tool
	Pool     *bufpool.Pool
	Document string
	Page     int
	Format   Format
}

// Probe renders p.Page at dpi and decodes the image header.
func (p *Prober) Probe(ctx context.Context, dpi int) (page.Size, error) {
	var size page.Size

	req := Request{
		Document:  p.Document,
		FirstPage: p.Page,
		LastPage:  p.Page,
		DPI:       dpi,
		Format:    p.Format,
	}
	err := RenderPages(ctx, p.Tool, p.Pool, req, func(pg Page) error {
		s, _, err := page.DecodeSize(pg.Data)
		if err != nil {
			return fmt.Errorf("page %d at %d dpi: %w", pg.Number, dpi, err)
		}
		size = s
		return nil
	})
	if err != nil {
		return page.Size{}, err
	}
	return size, nil
}

// Package dpi finds the lowest rendering resolution that produces a page at
// least as large as a wanted size.
//
// Sizes are compared by area only. Every probe is a full renderer
// invocation, so the search takes one coarse step, extrapolates linearly and
// then refines one DPI at a time in both directions.
package dpi

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnah/go-cbconv/internal/page"
)

// Search defaults.
const (
	DefaultMinimumDPI = 96
	DefaultMaximumDPI = 1200
	DefaultStepSize   = 5
	DefaultSmallDiff  = 30
	DefaultOvershoot  = 5
)

// Sentinel errors.
var (
	ErrInvalidSettings = errors.New("invalid dpi search settings")
	ErrMaximumDPI      = errors.New("wanted size not reached at maximum dpi")
	ErrProbe           = errors.New("dpi probe failed")
)

// Settings tunes the search. Differences are in square pixels.
type Settings struct {
	MinimumDPI int
	MaximumDPI int
	StepSize   int
	SmallDiff  int64 // deficit refined one DPI at a time
	Overshoot  int64 // surplus tolerated before stepping down
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MinimumDPI: DefaultMinimumDPI,
		MaximumDPI: DefaultMaximumDPI,
		StepSize:   DefaultStepSize,
		SmallDiff:  DefaultSmallDiff,
		Overshoot:  DefaultOvershoot,
	}
}

// Validate checks that the bounds and step are usable.
func (s Settings) Validate() error {
	switch {
	case s.MinimumDPI < 1:
		return fmt.Errorf("%w: minimum dpi %d", ErrInvalidSettings, s.MinimumDPI)
	case s.MaximumDPI < s.MinimumDPI:
		return fmt.Errorf("%w: maximum dpi %d below minimum %d", ErrInvalidSettings, s.MaximumDPI, s.MinimumDPI)
	case s.StepSize < 1:
		return fmt.Errorf("%w: step size %d", ErrInvalidSettings, s.StepSize)
	case s.SmallDiff < 0 || s.Overshoot < 0:
		return fmt.Errorf("%w: negative threshold", ErrInvalidSettings)
	}
	return nil
}

// Prober renders one page at dpi and reports the image size.
type Prober interface {
	Probe(ctx context.Context, dpi int) (page.Size, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, dpi int) (page.Size, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, dpi int) (page.Size, error) {
	return f(ctx, dpi)
}

// Probe is one (resolution, size) observation.
type Probe struct {
	DPI  int
	Size page.Size
}

// Result is the outcome of one search.
type Result struct {
	DPI    int
	Size   page.Size
	Probes []Probe // in probing order, each DPI at most once
}

// search holds the state of one run. It is never shared.
type search struct {
	settings Settings
	wanted   page.Size
	prober   Prober
	seen     map[int]page.Size
	probes   []Probe
}

// Search returns the smallest DPI, not below s.MinimumDPI, whose rendered
// area is at least the wanted area. A zero wanted size resolves to the
// minimum without probing.
func Search(ctx context.Context, s Settings, wanted page.Size, p Prober) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if wanted.IsZero() {
		return Result{DPI: s.MinimumDPI}, nil
	}

	st := &search{settings: s, wanted: wanted, prober: p, seen: make(map[int]page.Size)}
	dpi, size, err := st.run(ctx)
	if err != nil {
		return Result{Probes: st.probes}, err
	}
	return Result{DPI: dpi, Size: size, Probes: st.probes}, nil
}

func (st *search) run(ctx context.Context) (int, page.Size, error) {
	s := st.settings

	dpi := s.MinimumDPI
	size, err := st.probe(ctx, dpi)
	if err != nil {
		return 0, page.Size{}, err
	}
	if !size.Smaller(st.wanted) {
		return dpi, size, nil
	}

	diff := st.wanted.Diff(size)
	if diff > s.SmallDiff {
		dpi = st.clamp(dpi + s.StepSize)
		size, err = st.probe(ctx, dpi)
		if err != nil {
			return 0, page.Size{}, err
		}

		newDiff := st.wanted.Diff(size)
		if newDiff > s.SmallDiff {
			// Assume area grows linearly with DPI around here.
			if gained := diff - newDiff; gained > 0 {
				bigStep := int(int64(s.StepSize) * diff / gained)
				dpi = st.clamp(s.MinimumDPI + bigStep)
				if size, err = st.probe(ctx, dpi); err != nil {
					return 0, page.Size{}, err
				}
			}
		}

		for dpi > s.MinimumDPI && size.Diff(st.wanted) > s.Overshoot {
			dpi--
			if size, err = st.probe(ctx, dpi); err != nil {
				return 0, page.Size{}, err
			}
		}
	}

	for size.Smaller(st.wanted) {
		if dpi >= s.MaximumDPI {
			return 0, page.Size{}, fmt.Errorf("%w: %v at %d dpi, wanted %v", ErrMaximumDPI, size, dpi, st.wanted)
		}
		dpi++
		if size, err = st.probe(ctx, dpi); err != nil {
			return 0, page.Size{}, err
		}
	}
	return dpi, size, nil
}

func (st *search) probe(ctx context.Context, dpi int) (page.Size, error) {
	if size, ok := st.seen[dpi]; ok {
		return size, nil
	}
	if err := ctx.Err(); err != nil {
		return page.Size{}, err
	}

	size, err := st.prober.Probe(ctx, dpi)
	if err != nil {
		return page.Size{}, fmt.Errorf("%w at %d dpi: %w", ErrProbe, dpi, err)
	}
	st.seen[dpi] = size
	st.probes = append(st.probes, Probe{DPI: dpi, Size: size})
	return size, nil
}

func (st *search) clamp(dpi int) int {
	return min(max(dpi, st.settings.MinimumDPI), st.settings.MaximumDPI)
}

package dpi

import (
	"context"
	"errors"
	"testing"

	"github.com/alnah/go-cbconv/internal/page"
)

// linear renders an 800x1200 page at 96 dpi and scales both sides with dpi.
func linear(_ context.Context, dpi int) (page.Size, error) {
	return page.Size{Width: dpi * 800 / 96, Height: dpi * 1200 / 96}, nil
}

// countingProber records how often each DPI was rendered.
type countingProber struct {
	f     ProberFunc
	calls map[int]int
}

func newCountingProber(f ProberFunc) *countingProber {
	return &countingProber{f: f, calls: make(map[int]int)}
}

func (c *countingProber) Probe(ctx context.Context, dpi int) (page.Size, error) {
	c.calls[dpi]++
	return c.f(ctx, dpi)
}

func TestSearch_ExampleScenario(t *testing.T) {
	t.Parallel()

	p := newCountingProber(linear)
	res, err := Search(context.Background(), DefaultSettings(), page.Size{Width: 1000, Height: 1500}, p)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.DPI != 120 {
		t.Errorf("DPI = %d, want 120", res.DPI)
	}
	if res.Size != (page.Size{Width: 1000, Height: 1500}) {
		t.Errorf("Size = %v, want 1000x1500", res.Size)
	}

	wantOrder := []int{96, 101, 122, 121, 120}
	if len(res.Probes) != len(wantOrder) {
		t.Fatalf("probes = %v, want DPIs %v", res.Probes, wantOrder)
	}
	for i, pr := range res.Probes {
		if pr.DPI != wantOrder[i] {
			t.Errorf("probe %d at %d dpi, want %d", i, pr.DPI, wantOrder[i])
		}
	}
	for dpi, n := range p.calls {
		if n != 1 {
			t.Errorf("dpi %d probed %d times", dpi, n)
		}
	}
}

func TestSearch_Paths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wanted     page.Size
		wantDPI    int
		wantProbes int
	}{
		{"minimum already large enough", page.Size{Width: 640, Height: 480}, 96, 1},
		{"exactly the minimum size", page.Size{Width: 800, Height: 1200}, 96, 1},
		// 97 dpi gives 808x1212; the deficit at 96 is 10 square pixels.
		{"near miss refines by one", page.Size{Width: 960010, Height: 1}, 97, 2},
		{"zero wanted size", page.Size{}, 96, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Search(context.Background(), DefaultSettings(), tt.wanted, ProberFunc(linear))
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if res.DPI != tt.wantDPI {
				t.Errorf("DPI = %d, want %d", res.DPI, tt.wantDPI)
			}
			if len(res.Probes) != tt.wantProbes {
				t.Errorf("probes = %d, want %d", len(res.Probes), tt.wantProbes)
			}
		})
	}
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	ctx := context.Background()

	for w := 700; w <= 2000; w += 37 {
		wanted := page.Size{Width: w, Height: w * 3 / 2}

		res, err := Search(ctx, s, wanted, ProberFunc(linear))
		if err != nil {
			t.Fatalf("Search(%v) error = %v", wanted, err)
		}

		got, _ := linear(ctx, res.DPI)
		if got.Smaller(wanted) {
			t.Errorf("Search(%v) = %d dpi giving %v, smaller than wanted", wanted, res.DPI, got)
		}

		minimal := s.MinimumDPI
		for {
			size, _ := linear(ctx, minimal)
			if !size.Smaller(wanted) {
				break
			}
			minimal++
		}
		// A result above the minimal one is only allowed within the overshoot tolerance.
		if res.DPI != minimal && got.Diff(wanted) > s.Overshoot {
			t.Errorf("Search(%v) = %d dpi, minimal is %d", wanted, res.DPI, minimal)
		}
	}
}

func TestSearch_NeverProbesBelowMinimum(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.MinimumDPI = 150

	p := ProberFunc(func(ctx context.Context, dpi int) (page.Size, error) {
		if dpi < 150 {
			t.Errorf("probed %d dpi below minimum", dpi)
		}
		return linear(ctx, dpi)
	})
	res, err := Search(context.Background(), s, page.Size{Width: 1300, Height: 1950}, p)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.DPI < 150 {
		t.Errorf("DPI = %d, below minimum", res.DPI)
	}
}

func TestSearch_MaximumDPI(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.MaximumDPI = 110

	_, err := Search(context.Background(), s, page.Size{Width: 4000, Height: 6000}, ProberFunc(linear))
	if !errors.Is(err, ErrMaximumDPI) {
		t.Errorf("Search() error = %v, want ErrMaximumDPI", err)
	}
}

func TestSearch_FlatProberStopsAtMaximum(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.MaximumDPI = 120

	flat := ProberFunc(func(context.Context, int) (page.Size, error) {
		return page.Size{Width: 10, Height: 10}, nil
	})
	res, err := Search(context.Background(), s, page.Size{Width: 100, Height: 100}, flat)
	if !errors.Is(err, ErrMaximumDPI) {
		t.Errorf("Search() error = %v, want ErrMaximumDPI", err)
	}
	if len(res.Probes) > s.MaximumDPI-s.MinimumDPI+1 {
		t.Errorf("probes = %d, exceeds dpi range", len(res.Probes))
	}
}

func TestSearch_ProbeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("gs crashed")
	p := ProberFunc(func(_ context.Context, dpi int) (page.Size, error) {
		if dpi > 96 {
			return page.Size{}, boom
		}
		return page.Size{Width: 1, Height: 1}, nil
	})

	res, err := Search(context.Background(), DefaultSettings(), page.Size{Width: 1000, Height: 1000}, p)
	if !errors.Is(err, ErrProbe) || !errors.Is(err, boom) {
		t.Errorf("Search() error = %v, want ErrProbe wrapping cause", err)
	}
	if len(res.Probes) != 1 {
		t.Errorf("probes = %d, want the one successful probe", len(res.Probes))
	}
}

func TestSearch_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, DefaultSettings(), page.Size{Width: 1000, Height: 1500}, ProberFunc(linear))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Search() error = %v, want context.Canceled", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"zero minimum", func(s *Settings) { s.MinimumDPI = 0 }},
		{"maximum below minimum", func(s *Settings) { s.MaximumDPI = 50 }},
		{"zero step", func(s *Settings) { s.StepSize = 0 }},
		{"negative overshoot", func(s *Settings) { s.Overshoot = -1 }},
	}

	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("DefaultSettings().Validate() = %v", err)
	}
	for _, tt := range tests {
		s := DefaultSettings()
		tt.modify(&s)
		if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidSettings", tt.name, err)
		}
		if _, err := Search(context.Background(), s, page.Size{Width: 1, Height: 1}, ProberFunc(linear)); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("%s: Search() = %v, want ErrInvalidSettings", tt.name, err)
		}
	}
}

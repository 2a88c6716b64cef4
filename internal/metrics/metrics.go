// Package metrics aggregates conversion statistics across workers.
//
// A Collector owns its own Prometheus registry: it is created at startup,
// read once at shutdown through Summary, and optionally served over HTTP
// while it lives. Nothing is registered globally. A nil *Collector is valid
// and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/alnah/go-cbconv/internal/bufpool"
	"github.com/alnah/go-cbconv/internal/jobs"
)

const namespace = "cbconv"

// Job kinds used as label values.
const (
	KindSearch = "search"
	KindRender = "render"
)

// shutdownTimeout bounds how long Serve waits for in-flight scrapes.
const shutdownTimeout = 5 * time.Second

// Collector holds the conversion metrics.
type Collector struct {
	registry *prometheus.Registry

	jobsExecuted *prometheus.CounterVec
	jobsFailed   *prometheus.CounterVec
	jobsPanicked prometheus.Counter
	jobDuration  *prometheus.HistogramVec

	pagesRendered prometheus.Counter
	pagesFailed   prometheus.Counter
	dpiProbes     prometheus.Counter
	books         *prometheus.CounterVec
}

// NewCollector creates a collector with a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_executed_total",
			Help:      "Jobs executed by workers, by kind.",
		}, []string{"kind"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Jobs that returned an error, by kind.",
		}, []string{"kind"}),
		jobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Jobs that panicked and were recovered.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time, by kind.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		pagesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rendered_total",
			Help:      "Pages written to disk.",
		}),
		pagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "Pages that could not be rendered.",
		}),
		dpiProbes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dpi_probes_total",
			Help:      "Single-page renders performed while searching for a resolution.",
		}),
		books: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "books_total",
			Help:      "Books processed, by outcome.",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		c.jobsExecuted,
		c.jobsFailed,
		c.jobsPanicked,
		c.jobDuration,
		c.pagesRendered,
		c.pagesFailed,
		c.dpiProbes,
		c.books,
	)
	return c
}

// WatchPool exposes the buffer pool counters. Values are read at gather time.
func (c *Collector) WatchPool(pool *bufpool.Pool) {
	if c == nil || pool == nil {
		return
	}

	stat := func(name, help string, read func(bufpool.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bufpool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(pool.Stats())) })
	}

	c.registry.MustRegister(
		stat("gets_total", "Buffers checked out.", func(s bufpool.Stats) uint64 { return s.Gets }),
		stat("allocs_total", "Buffers allocated because none was pooled.", func(s bufpool.Stats) uint64 { return s.Allocs }),
		stat("releases_total", "Buffers returned to the pool.", func(s bufpool.Stats) uint64 { return s.Releases }),
		stat("dropped_total", "Returned buffers not kept by the pool.", func(s bufpool.Stats) uint64 { return s.Dropped }),
	)
}

// RecordJob records one completed job of kind.
func (c *Collector) RecordJob(kind string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.jobsExecuted.WithLabelValues(kind).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		c.jobsFailed.WithLabelValues(kind).Inc()
	}
	if errors.Is(err, jobs.ErrJobPanicked) {
		c.jobsPanicked.Inc()
	}
}

// RecordPages adds rendered and failed page counts.
func (c *Collector) RecordPages(rendered, failed int) {
	if c == nil {
		return
	}
	c.pagesRendered.Add(float64(rendered))
	c.pagesFailed.Add(float64(failed))
}

// RecordProbes adds n DPI probes.
func (c *Collector) RecordProbes(n int) {
	if c == nil {
		return
	}
	c.dpiProbes.Add(float64(n))
}

// RecordBook counts a processed book. ok is false when any page failed.
func (c *Collector) RecordBook(ok bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.books.WithLabelValues(outcome).Inc()
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Sample is one flattened metric value.
type Sample struct {
	Name  string
	Value float64
}

// Summary gathers counters and gauges, summing label variants under the
// metric name, and histogram sample counts under name_count. Samples are
// sorted by name.
func (c *Collector) Summary() ([]Sample, error) {
	if c == nil {
		return nil, nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make([]Sample, 0, len(families))
	for _, mf := range families {
		var total float64
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		if mf.GetType() == dto.MetricType_HISTOGRAM {
			name += "_count"
		}
		out = append(out, Sample{Name: name, Value: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

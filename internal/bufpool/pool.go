// Package bufpool provides reusable byte buffers for streaming subprocess
// output without per-page allocation churn.
//
// A Pool serves buffers in size classes that are whole multiples of its base
// size. Buffers are identified only by their memory: the pool never tracks
// which caller holds a buffer and never inspects its contents.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Pool sizing constants.
const (
	// DefaultSize is the base buffer size, large enough for a typical
	// rasterized comic page.
	DefaultSize = 4 << 20

	// DefaultThresholdPercent is the share of capacity below which free space
	// is considered nearly exhausted.
	DefaultThresholdPercent = 10

	// maxClasses caps pooled size classes; larger requests are allocated
	// fresh and dropped on release.
	maxClasses = 16
)

// Stats holds cumulative pool counters.
type Stats struct {
	Gets     uint64 // buffers handed out
	Allocs   uint64 // buffers allocated fresh because no pooled one was available
	Releases uint64 // buffers returned and kept for reuse
	Dropped  uint64 // buffers returned but not kept (foreign size)
}

// Pool is a thread-safe pool of byte buffers. The zero value is not usable;
// create one with New.
type Pool struct {
	size             int
	thresholdPercent int
	classes          [maxClasses]sync.Pool

	gets     atomic.Uint64
	allocs   atomic.Uint64
	releases atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a pool serving buffers of size bytes. A non-positive size
// falls back to DefaultSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		size:             size,
		thresholdPercent: DefaultThresholdPercent,
	}
}

// Size returns the base buffer size.
func (p *Pool) Size() int {
	return p.size
}

// Threshold returns the free-space level, in bytes, below which a buffer of
// the given capacity should be grown before the next read.
func (p *Pool) Threshold(capacity int) int {
	return capacity * p.thresholdPercent / 100
}

// Get returns a buffer of the pool's base size.
func (p *Pool) Get() []byte {
	return p.GetSize(p.size)
}

// GetSize returns a buffer of at least n bytes. The length is rounded up to
// the next multiple of the base size so released buffers land back in a
// reusable class.
func (p *Pool) GetSize(n int) []byte {
	p.gets.Add(1)

	class := p.classFor(n)
	if class >= maxClasses {
		p.allocs.Add(1)
		return make([]byte, n)
	}

	if v := p.classes[class].Get(); v != nil {
		return *(v.(*[]byte))
	}

	p.allocs.Add(1)
	return make([]byte, (class+1)*p.size)
}

// Release returns buf for reuse. buf must not be used afterwards and must not
// be released twice. Buffers whose capacity is not a pooled class are dropped.
func (p *Pool) Release(buf []byte) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c < p.size || c%p.size != 0 || c/p.size > maxClasses {
		p.dropped.Add(1)
		return
	}
	buf = buf[:c]
	p.releases.Add(1)
	p.classes[c/p.size-1].Put(&buf)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Gets:     p.gets.Load(),
		Allocs:   p.allocs.Load(),
		Releases: p.releases.Load(),
		Dropped:  p.dropped.Load(),
	}
}

// classFor maps a requested size to a zero-based class index.
func (p *Pool) classFor(n int) int {
	if n <= p.size {
		return 0
	}
	return (n+p.size-1)/p.size - 1
}

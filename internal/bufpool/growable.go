package bufpool

import (
	"bytes"
	"io"
)

// Growable is a pooled buffer with a logical length that grows while it is
// filled from a stream. It is owned by a single goroutine.
type Growable struct {
	pool      *Pool
	buf       []byte
	count     int
	increment int
	released  bool
}

// NewGrowable checks out a base-size buffer from pool.
func NewGrowable(pool *Pool) *Growable {
	return &Growable{
		pool:      pool,
		buf:       pool.Get(),
		increment: pool.Size(),
	}
}

// Count returns the number of valid bytes.
func (g *Growable) Count() int {
	return g.count
}

// Cap returns the current capacity.
func (g *Growable) Cap() int {
	return len(g.buf)
}

// Bytes returns the valid bytes. The slice is only valid until the next call
// that modifies the buffer.
func (g *Growable) Bytes() []byte {
	return g.buf[:g.count]
}

// Fill performs a single read from r, appending at the tail. When free space
// has dropped below the pool threshold (or is exhausted) the buffer is first grown by the
// original increment and existing bytes are copied over.
func (g *Growable) Fill(r io.Reader) (int, error) {
	g.mustBeLive()

	free := len(g.buf) - g.count
	if free == 0 || free < g.pool.Threshold(len(g.buf)) {
		g.grow()
	}

	n, err := r.Read(g.buf[g.count:])
	g.count += n
	return n, err
}

// HasPrefixAt reports whether the bytes starting at off begin with marker.
// It never reads past Count.
func (g *Growable) HasPrefixAt(off int, marker []byte) bool {
	if off < 0 || off+len(marker) > g.count {
		return false
	}
	return bytes.Equal(g.buf[off:off+len(marker)], marker)
}

// Index returns the offset of the first occurrence of marker at or after
// from, or -1.
func (g *Growable) Index(from int, marker []byte) int {
	if from < 0 {
		from = 0
	}
	if from >= g.count {
		return -1
	}
	i := bytes.Index(g.buf[from:g.count], marker)
	if i < 0 {
		return -1
	}
	return from + i
}

// Discard drops the first n valid bytes and moves the rest to the front.
func (g *Growable) Discard(n int) {
	if n >= g.count {
		g.count = 0
		return
	}
	copy(g.buf, g.buf[n:g.count])
	g.count -= n
}

// Reset empties the buffer without releasing it.
func (g *Growable) Reset() {
	g.count = 0
}

// Release hands the buffer back to the pool. The Growable must not be used
// afterwards; releasing twice is a no-op.
func (g *Growable) Release() {
	if g.released {
		return
	}
	g.released = true
	g.pool.Release(g.buf)
	g.buf = nil
	g.count = 0
}

func (g *Growable) grow() {
	next := g.pool.GetSize(len(g.buf) + g.increment)
	copy(next, g.buf[:g.count])
	g.pool.Release(g.buf)
	g.buf = next
}

func (g *Growable) mustBeLive() {
	if g.released {
		panic("bufpool: use of released Growable")
	}
}

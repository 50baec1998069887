// Package shmring is a fixed-size single-producer, single-consumer byte ring.
//
// Read and write positions are free-running counters; only their low bits
// index the buffer. The whole buffer is usable and full is distinct from
// empty because wr-rd ranges over 0..size.
package shmring

import "sync/atomic"

// Ring is a power-of-two byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)
}

// New allocates a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the buffer size.
func (r *Ring) Cap() int { return len(r.buf) }

// Space returns the number of bytes that can be written. The counters run
// free and are masked only on access, so a full ring is never mistaken for
// an empty one.
func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// Available returns the number of bytes that can be read.
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Reset empties the ring. Neither side may be active.
func (r *Ring) Reset() {
	r.rd.Store(0)
	r.wr.Store(0)
}

// Producer side

// WriteFrom copies as much of src as fits and returns the count.
func (r *Ring) WriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	space := int(r.size() - (wr - rd))
	if space <= 0 {
		return 0
	}
	if len(src) < space {
		space = len(src)
	}
	n = space

	wrIdx := wr & r.mask
	first := int(r.size() - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release
	return n
}

// Put appends one byte. It returns false when the ring is full.
func (r *Ring) Put(b byte) bool {
	return r.WriteFrom([]byte{b}) == 1
}

// Consumer side

// ReadInto copies up to len(dst) bytes out of the ring and returns the count.
func (r *Ring) ReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	rdIdx := rd & r.mask
	first := int(r.size() - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}

// Get removes one byte. ok is false when the ring is empty.
func (r *Ring) Get() (b byte, ok bool) {
	var one [1]byte
	if r.ReadInto(one[:]) == 0 {
		return 0, false
	}
	return one[0], true
}

// Indices returns the counters reduced to buffer offsets.
func (r *Ring) Indices() (rd, wr uint32) {
	return r.rd.Load() & r.mask, r.wr.Load() & r.mask
}

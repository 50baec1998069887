// Package txq queues length-framed payloads in front of a transmitter that
// can only carry one payload at a time.
//
// Each frame is a length byte holding len(payload)+1 followed by the
// payload. A frame is written whole or not at all.
package txq

import (
	"tempbeacon-go/errcode"
	"tempbeacon-go/x/shmring"
)

// DefaultCapacity is the ring size in bytes.
const DefaultCapacity = 64

// maxFrame is the largest payload a length byte can describe.
const maxFrame = 254

// Transmitter is the single-flight sink frames are handed to.
type Transmitter interface {
	Busy() bool
	TryStart(b []byte) error
}

type Options struct {
	// Capacity in bytes, a power of two. Zero selects DefaultCapacity.
	Capacity int
	// MaxPayload bounds Push. Zero allows any payload a length byte can hold.
	MaxPayload int
	// OnFault receives a transmitter refusing a frame after reporting idle.
	// Defaults to errcode.Halt.
	OnFault errcode.Handler
}

// Queue is driven from the foreground only: Push and Pop never run
// concurrently with each other.
type Queue struct {
	r       *shmring.Ring
	tx      Transmitter
	max     int
	onFault errcode.Handler

	frame   [maxFrame]byte
	capture []byte
}

func New(tx Transmitter, opts Options) *Queue {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxPayload <= 0 || opts.MaxPayload > maxFrame {
		opts.MaxPayload = maxFrame
	}
	return &Queue{
		r:       shmring.New(opts.Capacity),
		tx:      tx,
		max:     opts.MaxPayload,
		onFault: errcode.Or(opts.OnFault),
	}
}

// Open empties the queue and the capture buffer.
func (q *Queue) Open() {
	q.r.Reset()
	q.capture = q.capture[:0]
}

// Cap returns the ring capacity in bytes.
func (q *Queue) Cap() int { return q.r.Cap() }

// FreeSpace returns the bytes available for new frames, length bytes
// included. It is capacity-(wr-rd) on free-running indices, not on masked
// ones, so a full ring reads 0 rather than capacity.
func (q *Queue) FreeSpace() int { return q.r.Space() }

// Len returns the bytes held, length bytes included.
func (q *Queue) Len() int { return q.r.Available() }

// Indices returns the ring's read and write offsets.
func (q *Queue) Indices() (rd, wr uint32) { return q.r.Indices() }

// Push appends one frame. It fails with errcode.Overrun, writing nothing,
// when the frame does not fit.
func (q *Queue) Push(payload []byte) error {
	const op = "txq.Push"
	if len(payload) == 0 || len(payload) > q.max {
		return errcode.New(errcode.InvalidParams, op, "payload length out of range")
	}
	need := len(payload) + 1
	if q.r.Space() < need {
		return errcode.New(errcode.Overrun, op, "frame does not fit")
	}
	q.r.Put(byte(need))
	q.r.WriteFrom(payload)
	return nil
}

// Pop removes the oldest frame. With diagnostic set the payload goes to the
// capture buffer; otherwise it is handed to the transmitter. Pop reports
// false, and does nothing, when the queue is empty or the transmitter busy.
func (q *Queue) Pop(diagnostic bool) bool {
	if q.tx.Busy() || q.r.Available() == 0 {
		return false
	}
	n, _ := q.r.Get()
	p := q.frame[:q.r.ReadInto(q.frame[:int(n)-1])]

	if diagnostic {
		q.capture = append(q.capture[:0], p...)
		return true
	}
	if err := q.tx.TryStart(p); err != nil {
		q.onFault(&errcode.E{C: errcode.Protocol, Op: "txq.Pop", Msg: "transmitter refused frame", Err: err})
	}
	return true
}

// Write queues s and tries to start it at once.
func (q *Queue) Write(s string) error {
	if err := q.Push([]byte(s)); err != nil {
		return err
	}
	q.Pop(false)
	return nil
}

// Captured returns the payload of the last diagnostic Pop.
func (q *Queue) Captured() []byte { return q.capture }

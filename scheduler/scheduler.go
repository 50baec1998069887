// Package scheduler holds the process-wide set of pending deferred-work flags.
//
// Interrupt handlers Post bits; the foreground loop Polls the set, Clears a
// bit at the start of servicing it and runs the matching handler. Posting a
// bit that is already pending coalesces into one future dispatch.
package scheduler

import (
	"math/bits"
	"strings"
	"sync/atomic"
)

// Event is a bitmask of deferred-work kinds.
type Event uint32

// Event bits used by the beacon firmware.
const (
	TimerComp0 Event = 1 << iota
	TimerComp1
	TimerUnderflow
	SensorReadDone
	Boot
	LinkTxDone
	SensorWriteDone
)

var eventNames = [...]string{
	"timer_comp0",
	"timer_comp1",
	"timer_uf",
	"sensor_read_done",
	"boot",
	"link_tx_done",
	"sensor_write_done",
}

// Has reports whether every bit of x is set in e.
func (e Event) Has(x Event) bool { return x != 0 && e&x == x }

// Lowest returns the lowest set bit of e, or 0.
func (e Event) Lowest() Event { return e & -e }

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var b strings.Builder
	for e != 0 {
		i := bits.TrailingZeros32(uint32(e))
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		if i < len(eventNames) {
			b.WriteString(eventNames[i])
		} else {
			b.WriteString("bit")
			b.WriteByte('0' + byte(i/10))
			b.WriteByte('0' + byte(i%10))
		}
		e &^= 1 << i
	}
	return b.String()
}

// Scheduler is the pending-event set. The zero value is not usable; call New.
type Scheduler struct {
	pending atomic.Uint32
	wake    chan struct{}
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// Open clears the pending set and any undelivered wake-up.
func (s *Scheduler) Open() {
	s.pending.Store(0)
	select {
	case <-s.wake:
	default:
	}
}

// Post marks e pending. Safe from interrupt context; never blocks.
func (s *Scheduler) Post(e Event) {
	s.pending.Or(uint32(e))
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Clear removes e from the pending set. Only the handler that owns e calls
// it, at the start of servicing.
func (s *Scheduler) Clear(e Event) {
	s.pending.And(^uint32(e))
}

// Poll returns the pending set without modifying it.
func (s *Scheduler) Poll() Event {
	return Event(s.pending.Load())
}

// Pending delivers a wake-up after each Post. A sleeping core selects on it.
func (s *Scheduler) Pending() <-chan struct{} { return s.wake }

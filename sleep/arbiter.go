// Package sleep arbitrates the deepest power state the core may enter.
//
// Each subsystem that needs a clock or peripheral alive blocks the first
// depth it cannot tolerate, and unblocks it when done. Blocks are reference
// counted per depth, so independent subsystems compose regardless of order.
package sleep

import (
	"context"
	"strconv"

	"tempbeacon-go/errcode"
	"tempbeacon-go/x/critical"
)

// Depth is a power state, from EM0 (fully awake) to EM4 (shutoff).
type Depth uint8

const (
	EM0 Depth = iota
	EM1
	EM2
	EM3
	EM4
)

const (
	// NumDepths is the number of power states tracked.
	NumDepths = 5
	// Deepest is the most aggressive depth CurrentFloor can report.
	Deepest = EM4
	// DeepestEntered caps EnterLowestAvailable; leaving EM4 needs a reset.
	DeepestEntered = EM3
	// MaxBlocks bounds every per-depth counter. Exceeding it means a block
	// was leaked without its unblock.
	MaxBlocks = 4
)

func (d Depth) String() string { return "em" + strconv.Itoa(int(d)) }

// Sleeper puts the core into depth d until the next wake-up.
type Sleeper interface {
	Sleep(ctx context.Context, d Depth)
}

// Options configures an Arbiter.
type Options struct {
	// OnFault receives resource-exhaustion faults. Defaults to errcode.Halt.
	OnFault errcode.Handler
}

// Arbiter holds the per-depth block counters.
type Arbiter struct {
	cs      critical.Section
	counts  [NumDepths]uint8
	core    Sleeper
	onFault errcode.Handler
}

// New returns an Arbiter that sleeps through core.
func New(core Sleeper, opts Options) *Arbiter {
	return &Arbiter{core: core, onFault: errcode.Or(opts.OnFault)}
}

// Open zeroes every counter.
func (a *Arbiter) Open() {
	st := a.cs.Enter()
	a.counts = [NumDepths]uint8{}
	a.cs.Exit(st)
}

// Block forbids entering d or any deeper state. Callable from interrupt
// context.
func (a *Arbiter) Block(d Depth) {
	if d >= NumDepths {
		a.onFault(errcode.New(errcode.InvalidParams, "sleep.Block", "depth "+d.String()))
		return
	}
	st := a.cs.Enter()
	if a.counts[d] >= MaxBlocks {
		a.cs.Exit(st)
		a.onFault(errcode.New(errcode.Exhausted, "sleep.Block", "counter overflow at "+d.String()))
		return
	}
	a.counts[d]++
	a.cs.Exit(st)
}

// Unblock releases one block of d. Releasing a depth that is not blocked is
// a no-op.
func (a *Arbiter) Unblock(d Depth) {
	if d >= NumDepths {
		return
	}
	st := a.cs.Enter()
	if a.counts[d] > 0 {
		a.counts[d]--
	}
	a.cs.Exit(st)
}

// CurrentFloor returns the shallowest blocked depth, or Deepest when nothing
// is blocked.
func (a *Arbiter) CurrentFloor() Depth {
	st := a.cs.Enter()
	d, _ := a.floorLocked()
	a.cs.Exit(st)
	return d
}

func (a *Arbiter) floorLocked() (Depth, bool) {
	for d := EM0; d < NumDepths; d++ {
		if a.counts[d] != 0 {
			return d, true
		}
	}
	return Deepest, false
}

// Target returns the depth EnterLowestAvailable would enter now.
func (a *Arbiter) Target() Depth {
	st := a.cs.Enter()
	floor, blocked := a.floorLocked()
	a.cs.Exit(st)
	if !blocked {
		return DeepestEntered
	}
	if floor == EM0 {
		return EM0
	}
	return floor - 1
}

// EnterLowestAvailable sleeps in the deepest depth the counters permit and
// returns the depth chosen. EM0 returns at once without a transition.
//
// The counters are sampled and released before sleeping. A wake-up posted in
// between is latched by the Sleeper's wake source, so it is not lost.
func (a *Arbiter) EnterLowestAvailable(ctx context.Context) Depth {
	d := a.Target()
	if d == EM0 {
		return d
	}
	a.core.Sleep(ctx, d)
	return d
}

// Counts returns a snapshot of the counters.
func (a *Arbiter) Counts() [NumDepths]uint8 {
	st := a.cs.Enter()
	c := a.counts
	a.cs.Exit(st)
	return c
}

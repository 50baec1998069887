package sim

import (
	"context"
	"sync"

	"tempbeacon-go/sleep"
)

// Core is the simulated CPU's sleep controller. It records each depth
// entered and, when given a wake source, blocks until the next wake-up.
type Core struct {
	mu     sync.Mutex
	wake   <-chan struct{}
	counts [sleep.NumDepths]int
	last   sleep.Depth
}

// NewCore returns a Core that sleeps until wake delivers. A nil wake
// returns from Sleep at once, for synchronous stepping.
func NewCore(wake <-chan struct{}) *Core {
	return &Core{wake: wake}
}

// SetWake replaces the wake source, for cores built before the scheduler
// that feeds them.
func (c *Core) SetWake(wake <-chan struct{}) {
	c.mu.Lock()
	c.wake = wake
	c.mu.Unlock()
}

func (c *Core) Sleep(ctx context.Context, d sleep.Depth) {
	c.mu.Lock()
	c.counts[d]++
	c.last = d
	w := c.wake
	c.mu.Unlock()
	if w == nil {
		return
	}
	select {
	case <-w:
	case <-ctx.Done():
	}
}

// Entries returns how often each depth was entered.
func (c *Core) Entries() [sleep.NumDepths]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Last returns the most recent depth entered.
func (c *Core) Last() sleep.Depth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

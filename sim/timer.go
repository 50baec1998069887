package sim

import (
	"context"
	"sync"
	"time"

	"tempbeacon-go/scheduler"
	"tempbeacon-go/sleep"
)

// TimerDepth is blocked while the timer counts: its clock stops in EM4.
const TimerDepth = sleep.EM4

type poster interface {
	Post(e scheduler.Event)
}

type blocker interface {
	Block(d sleep.Depth)
	Unblock(d sleep.Depth)
}

// Timer is the periodic low-energy timer. Each underflow posts
// scheduler.TimerUnderflow.
type Timer struct {
	mu      sync.Mutex
	ev      poster
	arb     blocker
	period  time.Duration
	running bool
	fired   int
	changed chan struct{}
}

// NewTimer returns a stopped timer with the given period. A zero period
// only fires through Underflow.
func NewTimer(period time.Duration) *Timer {
	return &Timer{period: period, changed: make(chan struct{}, 1)}
}

// Open binds the event sink and the sleep arbiter and stops the timer.
func (t *Timer) Open(ev *scheduler.Scheduler, arb *sleep.Arbiter) {
	t.Stop()
	t.mu.Lock()
	t.ev, t.arb = ev, arb
	t.mu.Unlock()
}

// Start begins counting. Starting a running timer does nothing.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	arb := t.arb
	t.mu.Unlock()
	arb.Block(TimerDepth)
	t.kick()
}

// Stop halts counting.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	arb := t.arb
	t.mu.Unlock()
	arb.Unblock(TimerDepth)
	t.kick()
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Fired returns the number of underflows.
func (t *Timer) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Underflow fires one underflow now if the timer is running.
func (t *Timer) Underflow() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	t.fired++
	ev := t.ev
	t.mu.Unlock()
	ev.Post(scheduler.TimerUnderflow)
	return true
}

func (t *Timer) kick() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// Run fires underflows every period while running, until ctx ends.
func (t *Timer) Run(ctx context.Context) {
	var tick <-chan time.Time
	var tk *time.Ticker
	defer func() {
		if tk != nil {
			tk.Stop()
		}
	}()
	for {
		if t.Running() && tk == nil && t.period > 0 {
			tk = time.NewTicker(t.period)
			tick = tk.C
		} else if !t.Running() && tk != nil {
			tk.Stop()
			tk, tick = nil, nil
		}
		select {
		case <-ctx.Done():
			return
		case <-t.changed:
		case <-tick:
			t.Underflow()
		}
	}
}

// Package sim models the beacon's peripherals on the host so the engines
// and the service run unmodified under test and in the CLI.
//
// Every model raises a level-triggered interrupt line. Interrupts are
// delivered either synchronously with Service, or from a goroutine with
// Run. Use one or the other for a given model, never both.
package sim

import (
	"context"
	"sync"
)

// maxDeliveries bounds one Service call. A handler that never clears its
// source trips it.
const maxDeliveries = 1 << 16

// line is one interrupt request line: a pending predicate and a handler.
type line struct {
	mu      sync.Mutex
	handler func()
	pending func() bool
	kick    chan struct{}
}

func newLine(pending func() bool) *line {
	return &line{pending: pending, kick: make(chan struct{}, 1)}
}

// attach sets the IRQ handler.
func (l *line) attach(h func()) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
	l.raise()
}

// raise notes that pending may have become true.
func (l *line) raise() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// service calls the handler while the line is pending and returns the
// number of deliveries.
func (l *line) service() int {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return 0
	}
	n := 0
	for l.pending() {
		if n == maxDeliveries {
			panic("sim: interrupt storm")
		}
		h()
		n++
	}
	return n
}

// run services the line until ctx ends.
func (l *line) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.kick:
			l.service()
		}
	}
}

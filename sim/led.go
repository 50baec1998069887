package sim

import "sync"

// LED is the alarm indicator.
type LED struct {
	mu      sync.Mutex
	on      bool
	changes int
}

func (l *LED) Set(on bool) {
	l.mu.Lock()
	if l.on != on {
		l.changes++
	}
	l.on = on
	l.mu.Unlock()
}

func (l *LED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Changes returns the number of on/off transitions.
func (l *LED) Changes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes
}

//go:build !(rp2040 || rp2350)

// Package critical provides short critical sections for state shared between
// interrupt handlers and the foreground loop.
//
// On MCU builds a Section masks interrupts. On host builds, where simulated
// interrupts are delivered from goroutines, it is a mutex.
package critical

import "sync"

// Section guards one shared structure. The zero value is ready to use.
type Section struct {
	mu sync.Mutex
}

// State is the token returned by Enter and consumed by Exit.
type State struct{}

// Enter begins the critical section. Sections must not nest.
func (s *Section) Enter() State {
	s.mu.Lock()
	return State{}
}

// Exit ends the critical section started by Enter.
func (s *Section) Exit(State) {
	s.mu.Unlock()
}

// Do runs fn inside the section.
func (s *Section) Do(fn func()) {
	st := s.Enter()
	defer s.Exit(st)
	fn()
}

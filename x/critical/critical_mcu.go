//go:build rp2040 || rp2350

package critical

import "runtime/interrupt"

// Section masks interrupts for its duration. It holds no state.
type Section struct{}

type State = interrupt.State

func (s *Section) Enter() State { return interrupt.Disable() }

func (s *Section) Exit(st State) { interrupt.Restore(st) }

func (s *Section) Do(fn func()) {
	st := interrupt.Disable()
	fn()
	interrupt.Restore(st)
}

package sim

import (
	"context"
	"sync"

	"tempbeacon-go/leuart"
)

// Receiver takes bytes off the wire.
type Receiver interface {
	Receive(b byte)
}

// LEUART is a register-level low-energy serial port. A written byte leaves
// the wire at once: TXBL stays raised while the transmitter is enabled and
// each byte raises TXC.
type LEUART struct {
	mu    sync.Mutex
	flags leuart.Flag
	ien   leuart.Flag
	txen  bool
	rxen  bool
	sent  int
	wire  Receiver
	irq   *line
}

// NewLEUART returns a port whose output goes to wire.
func NewLEUART(wire Receiver) *LEUART {
	u := &LEUART{wire: wire}
	u.irq = newLine(u.pendingIRQ)
	return u
}

// AttachIRQ sets the interrupt handler, normally Engine.HandleInterrupt.
func (u *LEUART) AttachIRQ(h func()) { u.irq.attach(h) }

// Service delivers pending interrupts synchronously.
func (u *LEUART) Service() int { return u.irq.service() }

// Run delivers interrupts from the calling goroutine until ctx ends.
func (u *LEUART) Run(ctx context.Context) { u.irq.run(ctx) }

// Sent returns the number of bytes put on the wire.
func (u *LEUART) Sent() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sent
}

func (u *LEUART) pendingIRQ() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flags&u.ien != 0
}

func (u *LEUART) Command(c leuart.Cmd) {
	u.mu.Lock()
	if c&leuart.CmdRXEn != 0 {
		u.rxen = true
	}
	if c&leuart.CmdRXDis != 0 {
		u.rxen = false
	}
	if c&leuart.CmdTXEn != 0 {
		u.txen = true
		u.flags |= leuart.FlagTXBL
	}
	if c&leuart.CmdTXDis != 0 {
		u.txen = false
	}
	if c&leuart.CmdClearRX != 0 {
		u.flags &^= leuart.FlagRXDataV
	}
	u.mu.Unlock()
	u.irq.raise()
}

func (u *LEUART) WriteTx(b byte) {
	u.mu.Lock()
	if !u.txen {
		u.mu.Unlock()
		return
	}
	u.sent++
	u.flags |= leuart.FlagTXC | leuart.FlagTXBL
	w := u.wire
	u.mu.Unlock()
	if w != nil {
		w.Receive(b)
	}
	u.irq.raise()
}

func (u *LEUART) Flags() leuart.Flag {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flags
}

// ClearFlags clears f. TXBL is a level and stays raised while the
// transmitter is enabled.
func (u *LEUART) ClearFlags(f leuart.Flag) {
	u.mu.Lock()
	if u.txen {
		f &^= leuart.FlagTXBL
	}
	u.flags &^= f
	u.mu.Unlock()
}

func (u *LEUART) Enabled() leuart.Flag {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ien
}

func (u *LEUART) EnableIRQ(f leuart.Flag) {
	u.mu.Lock()
	u.ien |= f
	u.mu.Unlock()
	u.irq.raise()
}

func (u *LEUART) DisableIRQ(f leuart.Flag) {
	u.mu.Lock()
	u.ien &^= f
	u.mu.Unlock()
}

func (u *LEUART) Status() leuart.Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	var s leuart.Status
	if u.txen {
		s |= leuart.StatusTXEns
	}
	if u.rxen {
		s |= leuart.StatusRXEns
	}
	return s
}

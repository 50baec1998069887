// Package leuart streams a short byte buffer out of a low-energy serial
// transmitter from its interrupt handler, one transmission at a time.
//
// The first TXBL interrupt after Start only arms the pipeline; every later
// TXBL loads one byte. After the last byte TXBL is masked and TXC closes the
// transmission, so a send of n bytes sees n+1 TXBL interrupts and one TXC.
package leuart

import (
	"context"
	"sync/atomic"

	"tempbeacon-go/errcode"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/sleep"
)

// MaxLen bounds one transmission.
const MaxLen = 80

// DefaultDepth is blocked while transmitting: the low-energy clock domain
// stops in EM3.
const DefaultDepth = sleep.EM3

type Poster interface {
	Post(e scheduler.Event)
}

type Blocker interface {
	Block(d sleep.Depth)
	Unblock(d sleep.Depth)
}

type Options struct {
	// Depth blocked during a transmission. Zero selects DefaultDepth.
	Depth sleep.Depth
	// Done is posted when a transmission completes. Zero selects
	// scheduler.LinkTxDone.
	Done scheduler.Event
	// OnFault receives protocol faults. Defaults to errcode.Halt.
	OnFault errcode.Handler
}

// Engine owns one transmitter.
type Engine struct {
	p   Peripheral
	ev  Poster
	arb Blocker

	depth   sleep.Depth
	done    scheduler.Event
	onFault errcode.Handler

	busy  atomic.Bool
	state atomic.Uint32
	idle  chan struct{}

	buf [MaxLen]byte
	n   int
	idx int
}

func New(p Peripheral, ev Poster, arb Blocker, opts Options) *Engine {
	if opts.Depth == sleep.EM0 {
		opts.Depth = DefaultDepth
	}
	if opts.Done == 0 {
		opts.Done = scheduler.LinkTxDone
	}
	return &Engine{
		p:       p,
		ev:      ev,
		arb:     arb,
		depth:   opts.Depth,
		done:    opts.Done,
		onFault: errcode.Or(opts.OnFault),
		idle:    make(chan struct{}, 1),
	}
}

// Open leaves the port idle: interrupts masked, buffers and flags cleared,
// transmitter off. A transmission cut short drops its sleep block and posts
// nothing.
func (e *Engine) Open() {
	e.p.DisableIRQ(FlagTXC | FlagTXBL | FlagRXDataV)
	e.p.Command(CmdTXDis | CmdClearTX | CmdClearRX)
	e.p.ClearFlags(FlagTXC | FlagTXBL | FlagRXDataV)
	e.state.Store(uint32(Init))
	if e.busy.Load() {
		e.release()
	}
}

func (e *Engine) Busy() bool   { return e.busy.Load() }
func (e *Engine) State() State { return State(e.state.Load()) }

// Start waits for any transmission in flight to finish, then begins sending
// a copy of b. The caller's slice is not retained.
func (e *Engine) Start(ctx context.Context, b []byte) error {
	if err := validate(b); err != nil {
		return err
	}
	for !e.busy.CompareAndSwap(false, true) {
		select {
		case <-e.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.begin(b)
	return nil
}

// TryStart is Start without waiting; it fails with errcode.Busy.
func (e *Engine) TryStart(b []byte) error {
	if err := validate(b); err != nil {
		return err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return errcode.New(errcode.Busy, "leuart.Start", "transmission in flight")
	}
	e.begin(b)
	return nil
}

func validate(b []byte) error {
	if len(b) == 0 || len(b) > MaxLen {
		return errcode.New(errcode.InvalidParams, "leuart.Start", "length must be 1..80")
	}
	return nil
}

func (e *Engine) begin(b []byte) {
	e.n = copy(e.buf[:], b)
	e.idx = 0
	e.state.Store(uint32(Init))
	e.arb.Block(e.depth)
	e.p.Command(CmdTXEn)
	e.p.EnableIRQ(FlagTXBL)
}

// HandleInterrupt is the peripheral's IRQ handler.
func (e *Engine) HandleInterrupt() {
	f := e.p.Flags() & e.p.Enabled()
	e.p.ClearFlags(f)

	if f&FlagTXBL != 0 {
		e.onTXBL()
	}
	if f&FlagTXC != 0 {
		e.onTXC()
	}
}

func (e *Engine) onTXBL() {
	switch e.State() {
	case Init:
		e.state.Store(uint32(SendData))
	case SendData:
		e.p.WriteTx(e.buf[e.idx])
		e.idx++
		if e.idx == e.n {
			e.p.DisableIRQ(FlagTXBL)
			e.p.EnableIRQ(FlagTXC)
			e.state.Store(uint32(StopClose))
		}
	default:
		e.fault("txbl")
	}
}

func (e *Engine) onTXC() {
	if e.State() != StopClose {
		e.fault("txc")
		return
	}
	e.p.Command(CmdTXDis)
	e.p.DisableIRQ(FlagTXC)
	e.state.Store(uint32(Init))
	e.release()
	e.ev.Post(e.done)
}

func (e *Engine) release() {
	e.arb.Unblock(e.depth)
	e.busy.Store(false)
	select {
	case e.idle <- struct{}{}:
	default:
	}
}

func (e *Engine) fault(irq string) {
	e.onFault(errcode.New(errcode.Protocol, "leuart."+irq, "unexpected in "+e.State().String()))
}

// Package i2cm runs one two-wire bus master transaction at a time from the
// peripheral's interrupt handler.
//
// A read is the sensor's command-then-read shape:
//
//	START addr+W  ACK  command  ACK
//	RSTART addr+R NACK (slave busy, retried) ... ACK
//	data[MS]  ACK  data[LS]  NACK  STOP
//
// A write sends the command followed by up to two data bytes, MS first.
//
// Start returns immediately. The interrupt handler walks the transaction to
// STOP, then releases the sleep block and posts the completion event.
package i2cm

import (
	"context"
	"sync/atomic"

	"tempbeacon-go/errcode"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/sleep"
)

// DefaultDepth is blocked for the life of a transaction: the bus clock does
// not run in EM2 or deeper.
const DefaultDepth = sleep.EM2

// Poster receives completion events.
type Poster interface {
	Post(e scheduler.Event)
}

// Blocker holds the core out of deep sleep while a transaction runs.
type Blocker interface {
	Block(d sleep.Depth)
	Unblock(d sleep.Depth)
}

// Transfer describes one transaction. Exactly one is in flight per Engine.
type Transfer struct {
	Addr    uint8 // 7-bit slave address
	Command byte
	Dir     Direction

	// Read: N is 1 or 2 and the bytes land in *Dst, MS byte first.
	Dst *uint32
	// Write: N is 0..2 data bytes taken from the low bytes of Data, MS first.
	Data uint32
	N    int

	// Done is posted when the STOP completes. Zero posts nothing.
	Done scheduler.Event
}

func (t *Transfer) validate() error {
	const op = "i2cm.Start"
	if t.Addr > 0x7F {
		return errcode.New(errcode.InvalidParams, op, "address exceeds 7 bits")
	}
	switch t.Dir {
	case Read:
		if t.Dst == nil {
			return errcode.New(errcode.InvalidParams, op, "read without destination")
		}
		if t.N < 1 || t.N > 2 {
			return errcode.New(errcode.InvalidParams, op, "read length must be 1 or 2")
		}
	case Write:
		if t.N < 0 || t.N > 2 {
			return errcode.New(errcode.InvalidParams, op, "write length must be 0..2")
		}
	default:
		return errcode.New(errcode.InvalidParams, op, "unknown direction")
	}
	return nil
}

// Options configures an Engine. All fields are optional.
type Options struct {
	// Depth blocked during a transaction. Zero selects DefaultDepth.
	Depth sleep.Depth
	// MaxNackRetries bounds repeated-start retries while the slave is busy.
	// Zero retries forever.
	MaxNackRetries int
	// OnFault receives protocol faults. Defaults to errcode.Halt.
	OnFault errcode.Handler
}

// Engine owns one master peripheral.
type Engine struct {
	p   Peripheral
	ev  Poster
	arb Blocker

	depth    sleep.Depth
	maxNacks int
	onFault  errcode.Handler

	busy  atomic.Bool
	state atomic.Uint32
	idle  chan struct{}

	// Interrupt-owned once Start returns.
	tr    Transfer
	left  int
	nacks int
}

// New binds an Engine to p. Call Open before the first Start.
func New(p Peripheral, ev Poster, arb Blocker, opts Options) *Engine {
	d := opts.Depth
	if d == sleep.EM0 {
		d = DefaultDepth
	}
	return &Engine{
		p:        p,
		ev:       ev,
		arb:      arb,
		depth:    d,
		maxNacks: opts.MaxNackRetries,
		onFault:  errcode.Or(opts.OnFault),
		idle:     make(chan struct{}, 1),
	}
}

// Open resets the bus and enables the interrupts the state machine uses.
func (e *Engine) Open() {
	e.ResetBus()
	e.p.ClearFlags(e.p.Flags())
	e.p.SetEnabled(FlagAck | FlagNack | FlagMStop)
}

// Busy reports whether a transaction is in flight.
func (e *Engine) Busy() bool { return e.busy.Load() }

// State returns the current phase.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(uint32(s)) }

// Start begins tr. It fails with errcode.Busy if a transaction is already in
// flight or the peripheral is not idle; transactions are never queued.
func (e *Engine) Start(tr Transfer) error {
	if err := tr.validate(); err != nil {
		return err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return errcode.New(errcode.Busy, "i2cm.Start", "transaction in flight")
	}
	if e.p.Busy() {
		e.busy.Store(false)
		return errcode.New(errcode.Busy, "i2cm.Start", "bus not idle")
	}
	e.arb.Block(e.depth)

	e.tr = tr
	e.left = tr.N
	e.nacks = 0
	e.setState(InitSendAddr)

	// The last byte of a read must be NACKed, so every ACK is explicit.
	e.p.SetAutoAck(false)
	e.p.WriteTx(tr.Addr<<1 | byte(Write))
	e.p.Command(CmdStart)
	return nil
}

// Wait blocks until no transaction is in flight or ctx ends. Interrupts
// must be serviced concurrently for it to return.
func (e *Engine) Wait(ctx context.Context) error {
	for e.busy.Load() {
		select {
		case <-e.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// HandleInterrupt is the peripheral's IRQ handler.
func (e *Engine) HandleInterrupt() {
	f := e.p.Flags() & e.p.Enabled()
	e.p.ClearFlags(f)

	if f&FlagAck != 0 {
		e.onAck()
	}
	if f&FlagNack != 0 {
		e.onNack()
	}
	if f&FlagMStop != 0 {
		e.onMStop()
	}
	if f&FlagRXDataV != 0 {
		e.onRXDataV()
	}
}

func (e *Engine) onAck() {
	switch e.State() {
	case InitSendAddr:
		e.p.WriteTx(e.tr.Command)
		e.setState(SendCommand)
	case SendCommand:
		if e.tr.Dir == Read {
			e.repeatedStart()
			e.setState(SendRptStartAddr)
			return
		}
		e.sendOrStop()
	case SendRptStartAddr:
		e.p.SetEnabled(e.p.Enabled() | FlagRXDataV)
		if e.tr.N == 1 {
			e.setState(ReadLS)
		} else {
			e.setState(ReadMSByte)
		}
	case SendData:
		e.sendOrStop()
	default:
		e.fault("ack")
	}
}

func (e *Engine) onNack() {
	if e.State() != SendRptStartAddr {
		e.fault("nack")
		return
	}
	// Slave still converting: ask again.
	e.nacks++
	if e.maxNacks > 0 && e.nacks > e.maxNacks {
		e.onFault(errcode.New(errcode.Timeout, "i2cm.nack", "slave not ready after retries"))
		return
	}
	e.repeatedStart()
}

func (e *Engine) onRXDataV() {
	switch e.State() {
	case ReadMSByte:
		*e.tr.Dst = uint32(e.p.ReadRx()) << 8
		e.p.Command(CmdAck)
		e.setState(ReadLS)
	case ReadLS:
		if e.tr.N == 1 {
			*e.tr.Dst = uint32(e.p.ReadRx())
		} else {
			*e.tr.Dst |= uint32(e.p.ReadRx())
		}
		e.p.SetEnabled(e.p.Enabled() &^ FlagRXDataV)
		e.p.Command(CmdNack)
		e.p.Command(CmdStop)
		e.setState(StopEnd)
	default:
		e.fault("rxdatav")
	}
}

func (e *Engine) onMStop() {
	if e.State() != StopEnd {
		e.fault("mstop")
		return
	}
	done := e.tr.Done
	e.setState(InitSendAddr)
	e.release()
	if done != 0 {
		e.ev.Post(done)
	}
}

func (e *Engine) repeatedStart() {
	e.p.Command(CmdStart)
	e.p.WriteTx(e.tr.Addr<<1 | byte(Read))
}

func (e *Engine) sendOrStop() {
	if e.left == 0 {
		e.p.Command(CmdStop)
		e.setState(StopEnd)
		return
	}
	e.left--
	e.p.WriteTx(byte(e.tr.Data >> (8 * uint(e.left))))
	e.setState(SendData)
}

// release clears busy and drops the sleep block.
func (e *Engine) release() {
	e.arb.Unblock(e.depth)
	e.busy.Store(false)
	select {
	case e.idle <- struct{}{}:
	default:
	}
}

func (e *Engine) fault(irq string) {
	e.onFault(errcode.New(errcode.Protocol, "i2cm."+irq, "unexpected in "+e.State().String()))
}

// ResetBus forces the bus and the engine back to idle: abort, clear the
// transmit buffer, clock out START+STOP and wait for the stop to complete.
// It is never called on a fault; callers invoke it explicitly.
func (e *Engine) ResetBus() {
	ien := e.p.Enabled()
	e.p.SetEnabled(0)

	if e.p.Busy() {
		e.p.Command(CmdAbort)
		for e.p.Busy() {
		}
	}
	e.p.ClearFlags(e.p.Flags())
	e.p.Command(CmdClearTx)
	e.p.Command(CmdStart | CmdStop)
	for e.p.Flags()&FlagMStop == 0 {
	}
	e.p.Command(CmdAbort)
	e.p.ClearFlags(e.p.Flags())

	e.setState(InitSendAddr)
	if e.busy.Load() {
		e.release()
	}
	e.p.SetEnabled(ien &^ FlagRXDataV)
}

package sim

import (
	"context"
	"sync"

	"tempbeacon-go/i2cm"
)

// Slave is a device on the simulated bus. Calls are serialized by the bus.
type Slave interface {
	// Address is the address phase; it returns the ACK.
	Address(read bool) bool
	// Write receives one byte from the master and returns the ACK.
	Write(b byte) bool
	// Read supplies the next byte to the master.
	Read() byte
	// Stop ends the transaction.
	Stop()
}

// I2C is a register-level two-wire master peripheral. Bus events complete
// instantly: each command or transmit write raises its outcome flag before
// returning.
type I2C struct {
	mu     sync.Mutex
	slaves map[uint8]Slave

	flags   i2cm.Flag
	ien     i2cm.Flag
	autoAck bool

	active   bool  // between START and STOP
	cur      Slave // addressed slave, nil when none ACKed
	reading  bool
	needAddr bool // next transmit byte is an address
	tx       byte
	txFull   bool
	rx       byte
	nacks    int
	starts   int
	irq      *line
}

func NewI2C() *I2C {
	b := &I2C{slaves: map[uint8]Slave{}}
	b.irq = newLine(b.pendingIRQ)
	return b
}

// AttachSlave places s at addr.
func (b *I2C) AttachSlave(addr uint8, s Slave) {
	b.mu.Lock()
	b.slaves[addr] = s
	b.mu.Unlock()
}

// AttachIRQ sets the interrupt handler, normally Engine.HandleInterrupt.
func (b *I2C) AttachIRQ(h func()) { b.irq.attach(h) }

// Service delivers pending interrupts synchronously.
func (b *I2C) Service() int { return b.irq.service() }

// Run delivers interrupts from the calling goroutine until ctx ends.
func (b *I2C) Run(ctx context.Context) { b.irq.run(ctx) }

// Stats returns the number of NACKed address phases and START conditions.
func (b *I2C) Stats() (nacks, starts int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nacks, b.starts
}

func (b *I2C) pendingIRQ() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags&b.ien != 0
}

// Command applies command bits in bit order.
func (b *I2C) Command(c i2cm.Cmd) {
	b.mu.Lock()
	if c&i2cm.CmdAbort != 0 {
		b.active, b.cur, b.needAddr = false, nil, false
	}
	if c&i2cm.CmdClearTx != 0 {
		b.txFull = false
	}
	if c&i2cm.CmdStart != 0 {
		b.active = true
		b.starts++
		b.cur, b.reading = nil, false
		b.needAddr = true
		if b.txFull {
			b.txFull = false
			b.address(b.tx)
		}
	}
	if c&i2cm.CmdAck != 0 && b.cur != nil && b.reading {
		b.rx = b.cur.Read()
		b.flags |= i2cm.FlagRXDataV
	}
	if c&i2cm.CmdNack != 0 && b.cur != nil && b.reading {
		b.reading = false
	}
	if c&i2cm.CmdStop != 0 {
		if b.cur != nil {
			b.cur.Stop()
		}
		b.active, b.cur, b.needAddr, b.reading = false, nil, false, false
		b.flags |= i2cm.FlagMStop
	}
	b.mu.Unlock()
	b.irq.raise()
}

// WriteTx loads the transmit buffer. Once a START is pending the byte is
// the address; otherwise it is data for the addressed slave.
func (b *I2C) WriteTx(v byte) {
	b.mu.Lock()
	switch {
	case b.needAddr:
		b.address(v)
	case b.active && b.cur != nil && !b.reading:
		if b.cur.Write(v) {
			b.flags |= i2cm.FlagAck
		} else {
			b.flags |= i2cm.FlagNack
		}
	default:
		b.tx, b.txFull = v, true
	}
	b.mu.Unlock()
	b.irq.raise()
}

// address runs the address phase. Called with mu held.
func (b *I2C) address(v byte) {
	b.needAddr = false
	read := v&1 == 1
	s, ok := b.slaves[v>>1]
	if !ok || !s.Address(read) {
		b.nacks++
		b.flags |= i2cm.FlagNack
		return
	}
	b.cur, b.reading = s, read
	b.flags |= i2cm.FlagAck
	if read {
		b.rx = s.Read()
		b.flags |= i2cm.FlagRXDataV
	}
}

func (b *I2C) ReadRx() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flags &^= i2cm.FlagRXDataV
	return b.rx
}

func (b *I2C) Flags() i2cm.Flag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

func (b *I2C) ClearFlags(f i2cm.Flag) {
	b.mu.Lock()
	b.flags &^= f
	b.mu.Unlock()
}

func (b *I2C) Enabled() i2cm.Flag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ien
}

func (b *I2C) SetEnabled(f i2cm.Flag) {
	b.mu.Lock()
	b.ien = f
	b.mu.Unlock()
	b.irq.raise()
}

func (b *I2C) SetAutoAck(on bool) {
	b.mu.Lock()
	b.autoAck = on
	b.mu.Unlock()
}

func (b *I2C) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

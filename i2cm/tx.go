package i2cm

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"tempbeacon-go/errcode"
)

var _ drivers.I2C = Bus{}

// Bus adapts an Engine to the tinygo driver Tx shape for blocking
// configuration traffic outside the event path. The engine's interrupts must
// be serviced while Tx waits.
type Bus struct {
	e         *Engine
	timeoutMS int
}

func NewBus(e *Engine) Bus {
	return Bus{e: e, timeoutMS: 25}
}

func (b Bus) WithTimeout(ms int) Bus {
	if ms > 0 {
		b.timeoutMS = ms
	}
	return b
}

// Tx runs one transaction. w[0] is the command byte. A non-empty r reads
// len(r) bytes after a repeated start and requires len(w) == 1; otherwise
// w[1:] is written after the command.
func (b Bus) Tx(addr uint16, w, r []byte) error {
	const op = "i2cm.Tx"
	if len(w) == 0 {
		return errcode.New(errcode.InvalidParams, op, "missing command byte")
	}
	if addr > 0x7F {
		return errcode.New(errcode.InvalidParams, op, "address exceeds 7 bits")
	}

	tr := Transfer{Addr: uint8(addr), Command: w[0]}
	var dst uint32
	if len(r) > 0 {
		if len(w) != 1 {
			return errcode.New(errcode.Unsupported, op, "write-then-read with data bytes")
		}
		tr.Dir, tr.Dst, tr.N = Read, &dst, len(r)
	} else {
		tr.Dir, tr.N = Write, len(w)-1
		for _, v := range w[1:] {
			tr.Data = tr.Data<<8 | uint32(v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(b.timeoutMS)*time.Millisecond)
	defer cancel()

	if err := b.e.Wait(ctx); err != nil {
		return errcode.New(errcode.Busy, op, "engine did not become idle")
	}
	if err := b.e.Start(tr); err != nil {
		return err
	}
	if err := b.e.Wait(ctx); err != nil {
		return &errcode.E{C: errcode.Timeout, Op: op, Msg: "transaction did not complete", Err: err}
	}

	for i := range r {
		r[i] = byte(dst >> (8 * uint(len(r)-1-i)))
	}
	return nil
}

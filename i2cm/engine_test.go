package i2cm

import (
	"errors"
	"testing"

	"tempbeacon-go/errcode"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/sleep"
)

// fakePeriph records register traffic. A STOP command raises MSTOP, as the
// hardware does once the stop condition has been clocked out.
type fakePeriph struct {
	flags   Flag
	ien     Flag
	rx      byte
	autoAck bool
	busy    bool

	cmds []Cmd
	tx   []byte
}

func (f *fakePeriph) Command(c Cmd) {
	f.cmds = append(f.cmds, c)
	if c&CmdStop != 0 {
		f.flags |= FlagMStop
	}
}
func (f *fakePeriph) WriteTx(b byte)     { f.tx = append(f.tx, b) }
func (f *fakePeriph) ReadRx() byte       { f.flags &^= FlagRXDataV; return f.rx }
func (f *fakePeriph) Flags() Flag        { return f.flags }
func (f *fakePeriph) ClearFlags(x Flag)  { f.flags &^= x }
func (f *fakePeriph) Enabled() Flag      { return f.ien }
func (f *fakePeriph) SetEnabled(x Flag)  { f.ien = x }
func (f *fakePeriph) SetAutoAck(on bool) { f.autoAck = on }
func (f *fakePeriph) Busy() bool         { return f.busy }
func (f *fakePeriph) raise(x Flag)       { f.flags |= x }
func (f *fakePeriph) reset()             { f.cmds, f.tx = nil, nil }
func (f *fakePeriph) lastCmd() (c Cmd)   { return f.cmds[len(f.cmds)-1] }
func (f *fakePeriph) lastTx() (b byte)   { return f.tx[len(f.tx)-1] }
func (f *fakePeriph) hasCmd(c Cmd) bool {
	for _, x := range f.cmds {
		if x == c {
			return true
		}
	}
	return false
}

type posts []scheduler.Event

func (p *posts) Post(e scheduler.Event) { *p = append(*p, e) }

type blocks [sleep.NumDepths]int

func (b *blocks) Block(d sleep.Depth)   { b[d]++ }
func (b *blocks) Unblock(d sleep.Depth) { b[d]-- }

type rig struct {
	p      *fakePeriph
	ev     *posts
	arb    *blocks
	faults []*errcode.E
	e      *Engine
}

func newRig(t *testing.T, opts Options) *rig {
	t.Helper()
	r := &rig{p: &fakePeriph{}, ev: &posts{}, arb: &blocks{}}
	opts.OnFault = func(e *errcode.E) { r.faults = append(r.faults, e) }
	r.e = New(r.p, r.ev, r.arb, opts)
	r.e.Open()
	r.p.reset()
	return r
}

func (r *rig) irq(f Flag) {
	r.p.raise(f)
	r.e.HandleInterrupt()
}

func TestOpenEnablesAckNackStop(t *testing.T) {
	r := newRig(t, Options{})
	if r.p.ien != FlagAck|FlagNack|FlagMStop {
		t.Fatalf("ien = %b", r.p.ien)
	}
	if r.p.flags != 0 {
		t.Fatalf("flags left pending: %b", r.p.flags)
	}
}

func TestReadWithBusySlave(t *testing.T) {
	r := newRig(t, Options{})
	var dst uint32
	err := r.e.Start(Transfer{Addr: 0x40, Command: 0xF3, Dir: Read, Dst: &dst, N: 2, Done: scheduler.SensorReadDone})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.e.Busy() || r.arb[sleep.EM2] != 1 {
		t.Fatalf("busy=%v EM2 blocks=%d", r.e.Busy(), r.arb[sleep.EM2])
	}
	if r.p.autoAck || r.p.lastTx() != 0x80 || r.p.lastCmd() != CmdStart {
		t.Fatalf("start sequence wrong: tx=%x cmds=%v autoack=%v", r.p.tx, r.p.cmds, r.p.autoAck)
	}

	r.irq(FlagAck)
	if r.e.State() != SendCommand || r.p.lastTx() != 0xF3 {
		t.Fatalf("after addr ACK: state=%v tx=%x", r.e.State(), r.p.tx)
	}
	r.irq(FlagAck)
	if r.e.State() != SendRptStartAddr || r.p.lastTx() != 0x81 {
		t.Fatalf("after cmd ACK: state=%v tx=%x", r.e.State(), r.p.tx)
	}

	n := len(r.p.tx)
	r.irq(FlagNack)
	if r.e.State() != SendRptStartAddr || len(r.p.tx) != n+1 || r.p.lastTx() != 0x81 || r.p.lastCmd() != CmdStart {
		t.Fatalf("NACK did not retry repeated start: state=%v tx=%x", r.e.State(), r.p.tx)
	}

	r.irq(FlagAck)
	if r.e.State() != ReadMSByte || r.p.ien&FlagRXDataV == 0 {
		t.Fatalf("after read addr ACK: state=%v ien=%b", r.e.State(), r.p.ien)
	}
	r.p.rx = 0xAB
	r.irq(FlagRXDataV)
	if r.e.State() != ReadLS || r.p.lastCmd() != CmdAck {
		t.Fatalf("after MS byte: state=%v", r.e.State())
	}
	r.p.rx = 0xCD
	r.irq(FlagRXDataV)
	if r.e.State() != StopEnd || !r.p.hasCmd(CmdNack) || r.p.lastCmd() != CmdStop {
		t.Fatalf("after LS byte: state=%v cmds=%v", r.e.State(), r.p.cmds)
	}
	if len(*r.ev) != 0 {
		t.Fatal("event posted before STOP completed")
	}

	r.e.HandleInterrupt() // MSTOP raised by the STOP command
	if dst != 0xABCD {
		t.Fatalf("dst = %#x", dst)
	}
	if len(*r.ev) != 1 || (*r.ev)[0] != scheduler.SensorReadDone {
		t.Fatalf("posts = %v", *r.ev)
	}
	if r.e.Busy() || r.e.State() != InitSendAddr || r.arb[sleep.EM2] != 0 {
		t.Fatalf("not idle: busy=%v state=%v EM2=%d", r.e.Busy(), r.e.State(), r.arb[sleep.EM2])
	}
	if r.p.ien&FlagRXDataV != 0 {
		t.Fatal("RXDATAV left enabled")
	}
	if len(r.faults) != 0 {
		t.Fatalf("faults: %v", r.faults)
	}
}

func TestSingleByteRead(t *testing.T) {
	r := newRig(t, Options{})
	var dst uint32 = 0xFFFF
	if err := r.e.Start(Transfer{Addr: 0x40, Command: 0xE7, Dir: Read, Dst: &dst, N: 1}); err != nil {
		t.Fatal(err)
	}
	r.irq(FlagAck)
	r.irq(FlagAck)
	r.irq(FlagAck)
	if r.e.State() != ReadLS {
		t.Fatalf("state = %v", r.e.State())
	}
	r.p.rx = 0x3A
	r.irq(FlagRXDataV)
	r.e.HandleInterrupt()
	if dst != 0x3A || r.e.Busy() {
		t.Fatalf("dst=%#x busy=%v", dst, r.e.Busy())
	}
	if len(*r.ev) != 0 {
		t.Fatalf("zero Done posted %v", *r.ev)
	}
}

func TestWriteSendsDataMSFirst(t *testing.T) {
	r := newRig(t, Options{})
	if err := r.e.Start(Transfer{Addr: 0x40, Command: 0xE6, Dir: Write, Data: 0x12BA, N: 2, Done: scheduler.SensorWriteDone}); err != nil {
		t.Fatal(err)
	}
	r.irq(FlagAck) // addr
	r.irq(FlagAck) // command
	if r.e.State() != SendData || r.p.lastTx() != 0x12 {
		t.Fatalf("state=%v tx=%x", r.e.State(), r.p.tx)
	}
	r.irq(FlagAck)
	if r.p.lastTx() != 0xBA {
		t.Fatalf("tx=%x", r.p.tx)
	}
	r.irq(FlagAck)
	if r.e.State() != StopEnd || r.p.lastCmd() != CmdStop {
		t.Fatalf("state=%v", r.e.State())
	}
	r.e.HandleInterrupt()
	if r.e.Busy() || len(*r.ev) != 1 || (*r.ev)[0] != scheduler.SensorWriteDone {
		t.Fatalf("busy=%v posts=%v", r.e.Busy(), *r.ev)
	}
	want := []byte{0x80, 0xE6, 0x12, 0xBA}
	if string(r.p.tx) != string(want) {
		t.Fatalf("tx = %x, want %x", r.p.tx, want)
	}
}

func TestStartRejectsWhenBusy(t *testing.T) {
	r := newRig(t, Options{})
	var dst uint32
	tr := Transfer{Addr: 0x40, Command: 0xF3, Dir: Read, Dst: &dst, N: 2}
	if err := r.e.Start(tr); err != nil {
		t.Fatal(err)
	}
	if err := r.e.Start(tr); !errors.Is(err, errcode.Busy) {
		t.Fatalf("second Start: %v", err)
	}
	if r.arb[sleep.EM2] != 1 {
		t.Fatalf("EM2 blocks = %d", r.arb[sleep.EM2])
	}

	r2 := newRig(t, Options{})
	r2.p.busy = true
	if err := r2.e.Start(tr); !errors.Is(err, errcode.Busy) {
		t.Fatalf("Start on busy bus: %v", err)
	}
	if r2.e.Busy() || r2.arb[sleep.EM2] != 0 {
		t.Fatal("failed Start left state behind")
	}
}

func TestStartValidates(t *testing.T) {
	r := newRig(t, Options{})
	var dst uint32
	cases := []Transfer{
		{Addr: 0x80, Dir: Write},
		{Addr: 0x40, Dir: Read, N: 2},
		{Addr: 0x40, Dir: Read, Dst: &dst, N: 3},
		{Addr: 0x40, Dir: Write, N: 3},
		{Addr: 0x40, Dir: 7},
	}
	for i, tr := range cases {
		if err := r.e.Start(tr); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
	if r.e.Busy() {
		t.Fatal("engine busy after rejected starts")
	}
}

func TestUnexpectedInterruptIsProtocolFault(t *testing.T) {
	cases := []struct {
		name string
		flag Flag
		op   string
	}{
		{"nack in init", FlagNack, "i2cm.nack"},
		{"mstop in init", FlagMStop, "i2cm.mstop"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, Options{})
			var dst uint32
			_ = r.e.Start(Transfer{Addr: 0x40, Command: 0xF3, Dir: Read, Dst: &dst, N: 2})
			r.irq(tc.flag)
			if len(r.faults) != 1 || r.faults[0].C != errcode.Protocol || r.faults[0].Op != tc.op {
				t.Fatalf("faults = %v", r.faults)
			}
		})
	}

	r := newRig(t, Options{})
	r.p.ien |= FlagRXDataV
	r.irq(FlagRXDataV)
	if len(r.faults) != 1 || r.faults[0].Op != "i2cm.rxdatav" {
		t.Fatalf("rxdatav in idle: %v", r.faults)
	}
}

func TestNackRetryBound(t *testing.T) {
	r := newRig(t, Options{MaxNackRetries: 2})
	var dst uint32
	_ = r.e.Start(Transfer{Addr: 0x40, Command: 0xF3, Dir: Read, Dst: &dst, N: 2})
	r.irq(FlagAck)
	r.irq(FlagAck)
	r.irq(FlagNack)
	r.irq(FlagNack)
	if len(r.faults) != 0 {
		t.Fatalf("faulted within bound: %v", r.faults)
	}
	r.irq(FlagNack)
	if len(r.faults) != 1 || r.faults[0].C != errcode.Timeout {
		t.Fatalf("faults = %v", r.faults)
	}
	if !r.e.Busy() {
		t.Fatal("engine released without ResetBus")
	}

	r.e.ResetBus()
	if r.e.Busy() || r.e.State() != InitSendAddr || r.arb[sleep.EM2] != 0 {
		t.Fatalf("ResetBus: busy=%v state=%v EM2=%d", r.e.Busy(), r.e.State(), r.arb[sleep.EM2])
	}
	if r.p.ien != FlagAck|FlagNack|FlagMStop {
		t.Fatalf("ien not restored: %b", r.p.ien)
	}
	if len(*r.ev) != 0 {
		t.Fatalf("ResetBus posted %v", *r.ev)
	}
}

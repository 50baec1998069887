package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempbeacon-go/drivers/si7021"
	"tempbeacon-go/errcode"
	"tempbeacon-go/i2cm"
	"tempbeacon-go/leuart"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/sleep"
)

type rig struct {
	sched *scheduler.Scheduler
	arb   *sleep.Arbiter
	core  *Core
}

func newRig(t *testing.T) *rig {
	t.Helper()
	s := scheduler.New()
	c := NewCore(nil)
	a := sleep.New(c, sleep.Options{OnFault: func(e *errcode.E) { t.Errorf("arbiter fault: %v", e) }})
	s.Open()
	a.Open()
	return &rig{sched: s, arb: a, core: c}
}

func failOnFault(t *testing.T) errcode.Handler {
	return func(e *errcode.E) { t.Errorf("fault: %v", e) }
}

func TestI2CMeasureWithConversionNacks(t *testing.T) {
	r := newRig(t)
	bus := NewI2C()
	sensor := NewSi7021(725, 3)
	bus.AttachSlave(si7021.Address, sensor)

	eng := i2cm.New(bus, r.sched, r.arb, i2cm.Options{OnFault: failOnFault(t)})
	bus.AttachIRQ(eng.HandleInterrupt)
	eng.Open()

	dev := si7021.New(eng, nil)
	require.NoError(t, dev.StartRead(scheduler.SensorReadDone))
	require.Equal(t, [sleep.NumDepths]uint8{0, 0, 1, 0, 0}, r.arb.Counts())

	bus.Service()

	require.False(t, eng.Busy())
	require.Equal(t, i2cm.InitSendAddr, eng.State())
	require.Equal(t, scheduler.SensorReadDone, r.sched.Poll())
	require.Equal(t, int32(725), dev.DeciFahrenheit())
	require.Equal(t, [sleep.NumDepths]uint8{}, r.arb.Counts())

	nacks, _ := bus.Stats()
	require.Equal(t, 3, nacks)
	require.Equal(t, 1, sensor.Measures())
}

func TestI2CMissingSlaveFaults(t *testing.T) {
	r := newRig(t)
	bus := NewI2C()
	var faults []*errcode.E
	eng := i2cm.New(bus, r.sched, r.arb, i2cm.Options{OnFault: func(e *errcode.E) { faults = append(faults, e) }})
	bus.AttachIRQ(eng.HandleInterrupt)
	eng.Open()

	var dst uint32
	require.NoError(t, eng.Start(i2cm.Transfer{Addr: 0x41, Command: 0xF3, Dir: i2cm.Read, Dst: &dst, N: 2}))
	bus.Service()
	require.Len(t, faults, 1)
	require.Equal(t, errcode.Protocol, faults[0].C)

	eng.ResetBus()
	require.False(t, eng.Busy())
	require.Equal(t, [sleep.NumDepths]uint8{}, r.arb.Counts())
}

func TestBlockingBusConfigure(t *testing.T) {
	r := newRig(t)
	bus := NewI2C()
	sensor := NewSi7021(804, 2)
	bus.AttachSlave(si7021.Address, sensor)
	eng := i2cm.New(bus, r.sched, r.arb, i2cm.Options{OnFault: failOnFault(t)})
	bus.AttachIRQ(eng.HandleInterrupt)
	eng.Open()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	dev := si7021.New(eng, i2cm.NewBus(eng).WithTimeout(200), si7021.Config{Settle: time.Millisecond})
	require.NoError(t, dev.Configure())
	require.Equal(t, byte(si7021.RH10Temp13), sensor.User1())

	f, err := dev.Measure()
	require.NoError(t, err)
	require.Equal(t, int32(804), f)
}

func TestLEUARTToPeer(t *testing.T) {
	r := newRig(t)
	peer := NewPeer()
	port := NewLEUART(peer)
	eng := leuart.New(port, r.sched, r.arb, leuart.Options{OnFault: failOnFault(t)})
	port.AttachIRQ(eng.HandleInterrupt)
	eng.Open()

	require.NoError(t, eng.TryStart([]byte("Temp = 72.5 F\n")))
	require.Equal(t, uint8(1), r.arb.Counts()[sleep.EM3])
	port.Service()

	require.False(t, eng.Busy())
	require.Equal(t, scheduler.LinkTxDone, r.sched.Poll())
	require.Equal(t, []string{"Temp = 72.5 F\n"}, peer.Lines())
	require.Equal(t, 14, port.Sent())
	require.Zero(t, port.Status()&leuart.StatusTXEns)
}

func TestLEUARTRunAndReadLine(t *testing.T) {
	r := newRig(t)
	peer := NewPeer()
	port := NewLEUART(peer)
	eng := leuart.New(port, r.sched, r.arb, leuart.Options{OnFault: failOnFault(t)})
	port.AttachIRQ(eng.HandleInterrupt)
	eng.Open()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go port.Run(ctx)

	require.NoError(t, eng.Start(ctx, []byte("one\n")))
	require.NoError(t, eng.Start(ctx, []byte("two\n")))

	l1, err := peer.ReadLine(ctx)
	require.NoError(t, err)
	l2, err := peer.ReadLine(ctx)
	require.NoError(t, err)
	require.Equal(t, "one\n", l1)
	require.Equal(t, "two\n", l2)
}

func TestTimerBlocksAndPosts(t *testing.T) {
	r := newRig(t)
	tm := NewTimer(0)
	tm.Open(r.sched, r.arb)

	require.False(t, tm.Underflow())
	tm.Start()
	tm.Start()
	require.Equal(t, uint8(1), r.arb.Counts()[TimerDepth])
	require.True(t, tm.Underflow())
	require.Equal(t, scheduler.TimerUnderflow, r.sched.Poll())
	tm.Stop()
	require.Equal(t, uint8(0), r.arb.Counts()[TimerDepth])
	require.Equal(t, 1, tm.Fired())
}

func TestTimerRun(t *testing.T) {
	r := newRig(t)
	tm := NewTimer(2 * time.Millisecond)
	tm.Open(r.sched, r.arb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tm.Run(ctx)
	tm.Start()

	require.Eventually(t, func() bool { return tm.Fired() >= 3 }, time.Second, time.Millisecond)
	tm.Stop()
}

func TestCoreWake(t *testing.T) {
	s := scheduler.New()
	c := NewCore(s.Pending())
	a := sleep.New(c, sleep.Options{})
	a.Open()

	done := make(chan sleep.Depth, 1)
	go func() { done <- a.EnterLowestAvailable(context.Background()) }()
	s.Post(scheduler.Boot)

	select {
	case d := <-done:
		require.Equal(t, sleep.EM3, d)
	case <-time.After(time.Second):
		t.Fatal("core did not wake")
	}
	require.Equal(t, 1, c.Entries()[sleep.EM3])
	require.Equal(t, sleep.EM3, c.Last())
}

func TestRawFromDeciF(t *testing.T) {
	for _, f := range []int32{-100, 0, 600, 725, 804, 900, 1500} {
		require.Equal(t, f, si7021.DeciFahrenheit(uint32(RawFromDeciF(f))), "deciF %d", f)
	}
}

func TestLED(t *testing.T) {
	var l LED
	l.Set(true)
	l.Set(true)
	l.Set(false)
	require.False(t, l.On())
	require.Equal(t, 2, l.Changes())
}

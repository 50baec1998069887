package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"tempbeacon-go/drivers/si7021"
	"tempbeacon-go/errcode"
	"tempbeacon-go/services/beacon"
	"tempbeacon-go/services/config"
	"tempbeacon-go/sim"
	"tempbeacon-go/x/logx"
)

// board is the beacon wired to simulated peripherals. Outside run it is
// stepped synchronously from the shell goroutine.
type board struct {
	cfg    config.Config
	svc    *beacon.Service
	bus    *sim.I2C
	sensor *sim.Si7021
	port   *sim.LEUART
	peer   *sim.Peer
	core   *sim.Core
	timer  *sim.Timer
	led    *sim.LED

	mu     sync.Mutex
	faults []*errcode.E
}

func newBoard(cfg config.Config, deciF int32, convertNacks int) *board {
	b := &board{
		cfg:    cfg,
		bus:    sim.NewI2C(),
		sensor: sim.NewSi7021(deciF, convertNacks),
		peer:   sim.NewPeer(),
		core:   sim.NewCore(nil),
		timer:  sim.NewTimer(cfg.Timer.Period()),
		led:    &sim.LED{},
	}
	b.port = sim.NewLEUART(b.peer)
	b.bus.AttachSlave(si7021.Address, b.sensor)
	b.svc = beacon.New(cfg, beacon.Hardware{
		Bus:   b.bus,
		Link:  b.port,
		Core:  b.core,
		Timer: b.timer,
		Alarm: b.led,
	}, beacon.Options{OnFault: b.onFault})
	b.bus.AttachIRQ(b.svc.BusEngine().HandleInterrupt)
	b.port.AttachIRQ(b.svc.LinkEngine().HandleInterrupt)
	return b
}

// onFault records instead of halting so the shell survives a fault.
func (b *board) onFault(e *errcode.E) {
	b.mu.Lock()
	b.faults = append(b.faults, e)
	b.mu.Unlock()
	logx.Error(logx.Sim, "fault", "err", e)
}

func (b *board) takeFaults() []*errcode.E {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.faults
	b.faults = nil
	return f
}

// open resets the service and steps through boot.
func (b *board) open() {
	b.peer.Reset()
	b.svc.Open()
	b.pump()
}

// pump delivers interrupts and dispatches events until both are quiet.
func (b *board) pump() int {
	steps := 0
	for {
		n := b.bus.Service() + b.port.Service()
		if b.svc.Step() {
			steps++
			continue
		}
		if n == 0 {
			return steps
		}
	}
}

// tick fires n timer underflows, pumping after each.
func (b *board) tick(n int) int {
	fired := 0
	for i := 0; i < n; i++ {
		if !b.timer.Underflow() {
			break
		}
		fired++
		b.pump()
	}
	return fired
}

// run switches to free-running mode for d: interrupt lines, the timer and
// the foreground loop each get a goroutine, and the core sleeps until the
// scheduler posts.
func (b *board) run(parent context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	b.core.SetWake(b.svc.Scheduler().Pending())
	defer b.core.SetWake(nil)

	var wg sync.WaitGroup
	for _, f := range []func(context.Context){b.bus.Run, b.port.Run, b.timer.Run} {
		wg.Add(1)
		go func(f func(context.Context)) {
			defer wg.Done()
			f(ctx)
		}(f)
	}
	err := b.svc.Run(ctx)
	wg.Wait()
	b.pump()
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

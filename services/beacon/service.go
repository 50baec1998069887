// Package beacon is the application: a foreground dispatch loop that reads
// the temperature sensor on every timer underflow and sends the reading
// over the serial radio link, sleeping as deep as pending work allows.
package beacon

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"tempbeacon-go/drivers/si7021"
	"tempbeacon-go/errcode"
	"tempbeacon-go/i2cm"
	"tempbeacon-go/leuart"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/services/config"
	"tempbeacon-go/sleep"
	"tempbeacon-go/txq"
	"tempbeacon-go/x/logx"
)

// Timer is the periodic measurement source.
type Timer interface {
	Open(ev *scheduler.Scheduler, arb *sleep.Arbiter)
	Start()
	Stop()
}

// Indicator is the over-temperature alarm output.
type Indicator interface {
	Set(on bool)
}

// Hardware is the set of peripherals the service drives.
type Hardware struct {
	Bus   i2cm.Peripheral
	Link  leuart.Peripheral
	Core  sleep.Sleeper
	Timer Timer
	Alarm Indicator // optional
}

type Options struct {
	// OnFault receives unrecoverable faults from every component. Defaults
	// to errcode.Halt.
	OnFault errcode.Handler
	Logger  *slog.Logger
}

// Stats is a snapshot of application counters.
type Stats struct {
	Booted    bool
	Readings  int
	LastDeciF int32
	Alarm     bool
	Dropped   int
	Skipped   int
	Errors    int // recoverable failures logged by the foreground
}

type bootStep uint8

const (
	bootIdle bootStep = iota
	bootReadReset
	bootWrite
	bootReadBack
	bootMeasure
	bootDone
)

// passedLine is sent when the boot-time sensor check succeeds.
const passedLine = "\nPassed Si7021 self-test\n"

// Service owns the runtime. Step, Write and the accessors that touch
// foreground state are serialized; interrupt handlers run concurrently.
type Service struct {
	cfg     config.Config
	hw      Hardware
	onFault errcode.Handler
	log     *slog.Logger

	sched  *scheduler.Scheduler
	arb    *sleep.Arbiter
	bus    *i2cm.Engine
	link   *leuart.Engine
	q      *txq.Queue
	sensor *si7021.Device

	fg    sync.Mutex
	boot  bootStep
	user1 uint32
	stats Stats
}

// New assembles the runtime on hw. Call Open before Run or Step.
func New(cfg config.Config, hw Hardware, opts Options) *Service {
	s := &Service{
		cfg:     cfg,
		hw:      hw,
		onFault: errcode.Or(opts.OnFault),
		log:     opts.Logger,
	}
	if s.log == nil {
		s.log = logx.Logger(logx.Beacon)
	}
	s.sched = scheduler.New()
	s.arb = sleep.New(hw.Core, sleep.Options{OnFault: s.onFault})
	s.bus = i2cm.New(hw.Bus, s.sched, s.arb, i2cm.Options{
		MaxNackRetries: cfg.Sensor.MaxNackRetries,
		OnFault:        s.onFault,
	})
	s.link = leuart.New(hw.Link, s.sched, s.arb, leuart.Options{
		Done:    scheduler.LinkTxDone,
		OnFault: s.onFault,
	})
	s.q = txq.New(s.link, txq.Options{
		Capacity:   cfg.Link.QueueSize,
		MaxPayload: cfg.Link.MaxPayload,
		OnFault:    s.onFault,
	})
	s.sensor = si7021.New(s.bus, i2cm.NewBus(s.bus), si7021.Config{
		Address:    cfg.Sensor.Address,
		Resolution: cfg.Sensor.Resolution,
		Settle:     cfg.Sensor.Settle(),
	})
	return s
}

// Open brings every component to its reset state, blocks the system sleep
// floor and posts Boot.
func (s *Service) Open() {
	s.fg.Lock()
	defer s.fg.Unlock()

	s.sched.Open()
	s.arb.Open()
	s.bus.Open()
	s.arb.Block(sleep.Depth(s.cfg.Sleep.SystemFloor))
	s.link.Open()
	s.q.Open()
	s.hw.Timer.Open(s.sched, s.arb)
	s.boot = bootIdle
	s.stats = Stats{}
	if s.hw.Alarm != nil {
		s.hw.Alarm.Set(false)
	}

	s.sched.Post(scheduler.Boot)
}

// Run dispatches pending events until ctx ends, sleeping whenever nothing
// is pending.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Step() {
			continue
		}
		d := s.arb.EnterLowestAvailable(ctx)
		s.log.Debug("woke", "depth", d.String())
	}
}

// Step services every event pending at the time of the call, lowest bit
// first, and reports whether there were any.
func (s *Service) Step() bool {
	s.fg.Lock()
	defer s.fg.Unlock()

	ev := s.sched.Poll()
	if ev == 0 {
		return false
	}
	for ev != 0 {
		e := ev.Lowest()
		ev &^= e
		s.dispatch(e)
	}
	return true
}

func (s *Service) dispatch(e scheduler.Event) {
	switch e {
	case scheduler.TimerComp0, scheduler.TimerComp1:
		s.onTimerCompare(e)
	case scheduler.TimerUnderflow:
		s.onTimerUnderflow()
	case scheduler.SensorReadDone:
		s.onSensorRead()
	case scheduler.Boot:
		s.onBoot()
	case scheduler.LinkTxDone:
		s.onLinkTxDone()
	case scheduler.SensorWriteDone:
		s.onSensorConfig()
	default:
		s.sched.Clear(e)
		s.log.Warn("unhandled event", "event", e.String())
	}
}

// Write queues application text for the link.
func (s *Service) Write(text string) error {
	s.fg.Lock()
	defer s.fg.Unlock()
	return s.q.Write(text)
}

// ResetBus forces the sensor bus idle.
func (s *Service) ResetBus() {
	s.fg.Lock()
	defer s.fg.Unlock()
	s.bus.ResetBus()
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	s.fg.Lock()
	defer s.fg.Unlock()
	return s.stats
}

// QueueFree returns the link queue's free bytes.
func (s *Service) QueueFree() int {
	s.fg.Lock()
	defer s.fg.Unlock()
	return s.q.FreeSpace()
}

func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Service) Arbiter() *sleep.Arbiter         { return s.arb }
func (s *Service) BusEngine() *i2cm.Engine         { return s.bus }
func (s *Service) LinkEngine() *leuart.Engine      { return s.link }
func (s *Service) Sensor() *si7021.Device          { return s.sensor }

// fail routes err by its code. Caller-misuse codes are logged and counted;
// anything else goes to the fault handler. It reports whether err was fatal.
func (s *Service) fail(op string, err error) bool {
	var e *errcode.E
	if !errors.As(err, &e) {
		e = &errcode.E{C: errcode.Of(err), Op: op, Err: err}
	}
	if !errcode.Fatal(e.C) && e.C != errcode.Error {
		s.stats.Errors++
		s.log.Warn("error", "op", op, "err", err)
		return false
	}
	s.log.Error("fault", "op", op, "err", err)
	s.onFault(e)
	return true
}

// send queues text and counts drops on overrun.
func (s *Service) send(text string) {
	if err := s.q.Write(text); err != nil {
		s.stats.Dropped++
		s.log.Warn("link queue full, dropping", "len", len(text), "err", err)
	}
}

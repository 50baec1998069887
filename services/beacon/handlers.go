package beacon

import (
	"time"

	"tempbeacon-go/drivers/si7021"
	"tempbeacon-go/errcode"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/txq"
	"tempbeacon-go/x/conv"
	"tempbeacon-go/x/mathx"
)

// FormatReading renders tenths of °F as a link line: "Temp = 72.5 F\n".
// A zero tenths digit is omitted ("Temp = 72 F\n").
func FormatReading(deciF int32) string {
	var b [40]byte
	out := append(b[:0], "Temp = "...)
	n := int64(deciF)
	if n < 0 {
		out = append(out, '-')
	}
	n = mathx.Abs(n)
	var num [20]byte
	out = append(out, conv.Itoa(num[:], n/10)...)
	if t := n % 10; t != 0 {
		out = append(out, '.', byte('0'+t))
	}
	out = append(out, " F\n"...)
	return string(out)
}

func (s *Service) onBoot() {
	s.sched.Clear(scheduler.Boot)
	s.log.Info("boot")

	if s.cfg.Link.SelfTest {
		if err := txq.SelfTest(s.cfg.Link.QueueSize); err != nil {
			if s.fail("beacon.boot", err) {
				return
			}
		} else {
			s.log.Debug("queue self-test passed")
		}
	}
	if !s.cfg.Sensor.Configure {
		s.finishBoot()
		return
	}
	s.settle()
	s.boot = bootReadReset
	if err := s.sensor.StartReadUser1(&s.user1, scheduler.SensorWriteDone); err != nil {
		s.fail("beacon.boot", err)
	}
}

// onSensorConfig advances the boot-time sensor check one transaction at a
// time: read user 1, write the resolution, read it back, take a reading.
func (s *Service) onSensorConfig() {
	s.sched.Clear(scheduler.SensorWriteDone)
	const op = "beacon.configure"

	var err error
	switch s.boot {
	case bootReadReset:
		u := byte(s.user1)
		if u != si7021.User1Reset && u != s.sensor.Resolution() {
			s.fail(op, &errcode.E{C: errcode.Protocol, Op: op, Msg: "user1 before write", Err: si7021.ErrUserReg})
			return
		}
		s.boot = bootWrite
		err = s.sensor.StartWriteUser1(0, scheduler.SensorWriteDone)
	case bootWrite:
		s.settle()
		s.boot = bootReadBack
		err = s.sensor.StartReadUser1(&s.user1, scheduler.SensorWriteDone)
	case bootReadBack:
		if byte(s.user1) != s.sensor.Resolution() {
			s.fail(op, &errcode.E{C: errcode.Protocol, Op: op, Msg: "user1 after write", Err: si7021.ErrUserReg})
			return
		}
		s.boot = bootMeasure
		err = s.sensor.StartRead(scheduler.SensorWriteDone)
	case bootMeasure:
		f := s.sensor.DeciFahrenheit()
		if !mathx.Between(f, s.cfg.Sensor.MinDeciF, s.cfg.Sensor.MaxDeciF) {
			s.log.Error("boot reading out of range", "deci_f", f, "min", s.cfg.Sensor.MinDeciF, "max", s.cfg.Sensor.MaxDeciF)
			s.fail(op, errcode.New(errcode.Protocol, op, "boot reading out of range"))
			return
		}
		s.log.Info("sensor configured", "user1", s.user1, "deci_f", f)
		s.send(passedLine)
		s.finishBoot()
	default:
		s.log.Warn("sensor write done outside boot", "step", int(s.boot))
	}
	if err != nil {
		s.fail(op, err)
	}
}

func (s *Service) finishBoot() {
	s.boot = bootDone
	s.stats.Booted = true
	for _, g := range s.cfg.Link.Greeting {
		s.send(g)
	}
	s.hw.Timer.Start()
	s.log.Info("timer started", "period", s.cfg.Timer.Period())
}

func (s *Service) settle() {
	if d := s.cfg.Sensor.Settle(); d > 0 {
		time.Sleep(d)
	}
}

func (s *Service) onTimerCompare(e scheduler.Event) {
	s.sched.Clear(e)
	s.fail("beacon.timer", errcode.New(errcode.Protocol, "beacon.timer", "unexpected "+e.String()))
}

func (s *Service) onTimerUnderflow() {
	s.sched.Clear(scheduler.TimerUnderflow)
	err := s.sensor.StartRead(scheduler.SensorReadDone)
	switch errcode.Of(err) {
	case errcode.OK:
	case errcode.Busy:
		s.stats.Skipped++
		s.log.Warn("sensor bus busy, skipping reading")
	default:
		s.fail("beacon.timer", err)
	}
}

func (s *Service) onSensorRead() {
	s.sched.Clear(scheduler.SensorReadDone)
	f := s.sensor.DeciFahrenheit()
	s.stats.Readings++
	s.stats.LastDeciF = f

	alarm := f > s.cfg.Alarm.ThresholdDeciF
	if alarm != s.stats.Alarm {
		s.log.Info("alarm", "on", alarm, "deci_f", f)
	}
	s.stats.Alarm = alarm
	if s.hw.Alarm != nil {
		s.hw.Alarm.Set(alarm)
	}
	s.send(FormatReading(f))
}

func (s *Service) onLinkTxDone() {
	s.sched.Clear(scheduler.LinkTxDone)
	s.q.Pop(false)
}

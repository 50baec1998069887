// Package si7021 provides a driver for the Si7021 temperature/humidity
// sensor. Periodic measurements run asynchronously on the bus engine:
//
//	d.StartRead(scheduler.SensorReadDone) // returns at once
//	...                                   // engine posts the event at STOP
//	f := d.DeciFahrenheit()
//
// Configuration and one-off measurements use the blocking drivers.I2C path.
//
// Measurements use the no-hold command: the sensor NACKs its read address
// until the conversion is done and the engine retries.
//
// Conversions are fixed-point and return tenths of units.
package si7021

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"tempbeacon-go/i2cm"
	"tempbeacon-go/scheduler"
	"tempbeacon-go/x/mathx"
)

// I2C address.
const Address = 0x40

// Commands.
const (
	cmdMeasureTempNoHold = 0xF3
	cmdWriteUser1        = 0xE6
	cmdReadUser1         = 0xE7
)

// User register 1 values.
const (
	User1Reset = 0x3A // RH 12-bit, temp 14-bit
	RH10Temp13 = 0xBA // RH 10-bit, temp 13-bit
)

// Errors returned by the driver.
var (
	ErrUserReg = errors.New("si7021: unexpected user register value")
	ErrNoBus   = errors.New("si7021: no blocking bus")
)

// Starter begins an asynchronous bus transaction.
type Starter interface {
	Start(tr i2cm.Transfer) error
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x40 if zero.
	Address uint16
	// Resolution is written to user register 1 by Configure. Default
	// RH10Temp13.
	Resolution byte
	// Settle is waited before and after the register write, letting the
	// part finish power-up. Default 80 ms.
	Settle time.Duration
}

// Device is one sensor on the bus.
type Device struct {
	eng     Starter
	bus     drivers.I2C
	Address uint16

	cfg Config
	raw uint32 // written by the engine's interrupt handler
}

// New creates a Device. bus may be nil when Configure and Measure are not
// used. It does not touch the device.
func New(eng Starter, bus drivers.I2C, cfgs ...Config) *Device {
	c := Config{}
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Address == 0 {
		c.Address = Address
	}
	if c.Resolution == 0 {
		c.Resolution = RH10Temp13
	}
	if c.Settle <= 0 {
		c.Settle = 80 * time.Millisecond
	}
	return &Device{eng: eng, bus: bus, Address: c.Address, cfg: c}
}

// StartRead begins a temperature measurement. done is posted when the
// result is in Raw.
func (d *Device) StartRead(done scheduler.Event) error {
	return d.eng.Start(i2cm.Transfer{
		Addr:    uint8(d.Address),
		Command: cmdMeasureTempNoHold,
		Dir:     i2cm.Read,
		Dst:     &d.raw,
		N:       2,
		Done:    done,
	})
}

// StartReadUser1 begins an asynchronous read of user register 1 into dst.
func (d *Device) StartReadUser1(dst *uint32, done scheduler.Event) error {
	return d.eng.Start(i2cm.Transfer{
		Addr:    uint8(d.Address),
		Command: cmdReadUser1,
		Dir:     i2cm.Read,
		Dst:     dst,
		N:       1,
		Done:    done,
	})
}

// StartWriteUser1 begins an asynchronous write of user register 1. A zero
// v writes the configured resolution.
func (d *Device) StartWriteUser1(v byte, done scheduler.Event) error {
	if v == 0 {
		v = d.cfg.Resolution
	}
	return d.eng.Start(i2cm.Transfer{
		Addr:    uint8(d.Address),
		Command: cmdWriteUser1,
		Dir:     i2cm.Write,
		Data:    uint32(v),
		N:       1,
		Done:    done,
	})
}

// Resolution returns the user register value Configure writes.
func (d *Device) Resolution() byte { return d.cfg.Resolution }

// Raw returns the last raw temperature code.
func (d *Device) Raw() uint32 { return d.raw }

// DeciCelsius returns the last reading in tenths of °C.
func (d *Device) DeciCelsius() int32 { return DeciCelsius(d.raw) }

// DeciFahrenheit returns the last reading in tenths of °F.
func (d *Device) DeciFahrenheit() int32 { return DeciFahrenheit(d.raw) }

// ReadUser1 reads user register 1.
func (d *Device) ReadUser1() (byte, error) {
	if d.bus == nil {
		return 0, ErrNoBus
	}
	var r [1]byte
	if err := d.bus.Tx(d.Address, []byte{cmdReadUser1}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Configure checks user register 1 holds its reset value (or the target
// resolution from an earlier run), writes the configured resolution and
// reads it back.
func (d *Device) Configure() error {
	if d.bus == nil {
		return ErrNoBus
	}
	time.Sleep(d.cfg.Settle)

	v, err := d.ReadUser1()
	if err != nil {
		return err
	}
	if v != User1Reset && v != d.cfg.Resolution {
		return ErrUserReg
	}
	if err := d.bus.Tx(d.Address, []byte{cmdWriteUser1, d.cfg.Resolution}, nil); err != nil {
		return err
	}
	time.Sleep(d.cfg.Settle)

	if v, err = d.ReadUser1(); err != nil {
		return err
	}
	if v != d.cfg.Resolution {
		return ErrUserReg
	}
	return nil
}

// Measure performs a blocking measurement and returns tenths of °F. The
// result is also cached for Raw.
func (d *Device) Measure() (int32, error) {
	if d.bus == nil {
		return 0, ErrNoBus
	}
	var r [2]byte
	if err := d.bus.Tx(d.Address, []byte{cmdMeasureTempNoHold}, r[:]); err != nil {
		return 0, err
	}
	d.raw = uint32(r[0])<<8 | uint32(r[1])
	return d.DeciFahrenheit(), nil
}

// Fixed-point conversions. T(°C) = 175.72*raw/65536 - 46.85.

const scale = 65536

// centiC returns hundredths of °C scaled by 65536.
func centiC(raw uint32) int64 {
	return 17572*int64(raw&0xFFFF) - 4685*scale
}

// DeciCelsius converts a raw code to tenths of °C, rounded to nearest.
func DeciCelsius(raw uint32) int32 {
	return int32(mathx.RoundDiv(centiC(raw), 10*scale))
}

// DeciFahrenheit converts a raw code to tenths of °F, rounded to nearest.
func DeciFahrenheit(raw uint32) int32 {
	// F*100 = C*100*9/5 + 3200
	return int32(mathx.RoundDiv(centiC(raw)*9+3200*5*scale, 5*10*scale))
}

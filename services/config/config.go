package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"tempbeacon-go/errcode"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	DefaultDevice = "efm32pg12"
	op            = "config.Load"
)

// MaxPayload is the longest frame the link transmits.
const MaxPayload = 80

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// ErrUnknownDevice is returned when no embedded config exists.
var ErrUnknownDevice = errors.New("config: no embedded config for device")

// -----------------------------------------------------------------------------
// Typed configuration
// -----------------------------------------------------------------------------

type Config struct {
	Sensor Sensor `json:"sensor"`
	Link   Link   `json:"link"`
	Timer  Timer  `json:"timer"`
	Sleep  Sleep  `json:"sleep"`
	Alarm  Alarm  `json:"alarm"`
	Log    Log    `json:"log"`
}

type Sensor struct {
	Address uint16 `json:"address"`
	// Configure runs the user-register check and resolution write at boot.
	Configure bool `json:"configure"`
	// Resolution is the user register 1 value written by Configure.
	Resolution byte `json:"resolution"`
	// SettleMS is waited around the register write.
	SettleMS int `json:"settle_ms"`
	// MaxNackRetries bounds repeated starts while converting; 0 is unbounded.
	MaxNackRetries int `json:"max_nack_retries"`
	// Sanity bounds for the boot measurement, tenths of °F.
	MinDeciF int32 `json:"min_deci_f"`
	MaxDeciF int32 `json:"max_deci_f"`
}

type Link struct {
	QueueSize  int      `json:"queue_size"`
	MaxPayload int      `json:"max_payload"`
	SelfTest   bool     `json:"self_test"`
	Greeting   []string `json:"greeting"`
}

type Timer struct {
	PeriodMS int `json:"period_ms"`
	ActiveMS int `json:"active_ms"`
}

type Sleep struct {
	// SystemFloor is the depth blocked for the life of the application.
	SystemFloor int `json:"system_floor"`
}

type Alarm struct {
	// ThresholdDeciF lights the indicator when a reading exceeds it.
	ThresholdDeciF int32 `json:"threshold_deci_f"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Period returns the timer period.
func (t Timer) Period() time.Duration { return time.Duration(t.PeriodMS) * time.Millisecond }

// Settle returns the sensor settle delay.
func (s Sensor) Settle() time.Duration { return time.Duration(s.SettleMS) * time.Millisecond }

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Sensor.Address == 0 {
		c.Sensor.Address = 0x40
	}
	if c.Sensor.Resolution == 0 {
		c.Sensor.Resolution = 0xBA
	}
	if c.Sensor.SettleMS == 0 {
		c.Sensor.SettleMS = 80
	}
	if c.Sensor.MinDeciF == 0 && c.Sensor.MaxDeciF == 0 {
		c.Sensor.MinDeciF, c.Sensor.MaxDeciF = 600, 900
	}
	if c.Link.QueueSize == 0 {
		c.Link.QueueSize = 64
	}
	if c.Link.MaxPayload == 0 {
		// One byte of every frame is its length.
		c.Link.MaxPayload = min(MaxPayload, c.Link.QueueSize-1)
	}
	if c.Link.Greeting == nil {
		c.Link.Greeting = []string{"\nHello World\n", "Course Project I2C\n"}
	}
	if c.Timer.PeriodMS == 0 {
		c.Timer.PeriodMS = 2700
	}
	if c.Timer.ActiveMS == 0 {
		c.Timer.ActiveMS = 150
	}
	if c.Sleep.SystemFloor == 0 {
		c.Sleep.SystemFloor = 3
	}
	if c.Alarm.ThresholdDeciF == 0 {
		c.Alarm.ThresholdDeciF = 800
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects values the runtime cannot honour.
func (c *Config) Validate() error {
	const op = "config.Validate"
	switch {
	case c.Sensor.Address > 0x7F:
		return errcode.New(errcode.InvalidParams, op, "sensor.address exceeds 7 bits")
	case c.Link.QueueSize < 2 || c.Link.QueueSize&(c.Link.QueueSize-1) != 0:
		return errcode.New(errcode.InvalidParams, op, "link.queue_size must be a power of two")
	case c.Link.MaxPayload < 1 || c.Link.MaxPayload > MaxPayload:
		return errcode.New(errcode.InvalidParams, op, "link.max_payload must be 1..80")
	case c.Link.MaxPayload+1 > c.Link.QueueSize:
		return errcode.New(errcode.InvalidParams, op, "link.max_payload does not fit the queue")
	case c.Timer.PeriodMS < 0 || c.Timer.ActiveMS < 0 || c.Timer.ActiveMS > c.Timer.PeriodMS:
		return errcode.New(errcode.InvalidParams, op, "timer.active_ms must be within period_ms")
	case c.Sleep.SystemFloor < 1 || c.Sleep.SystemFloor > 4:
		return errcode.New(errcode.InvalidParams, op, "sleep.system_floor must be 1..4")
	case c.Sensor.MaxNackRetries < 0:
		return errcode.New(errcode.InvalidParams, op, "sensor.max_nack_retries must be >= 0")
	}
	for _, g := range c.Link.Greeting {
		if len(g) == 0 || len(g) > c.Link.MaxPayload {
			return errcode.New(errcode.InvalidParams, op, "link.greeting line length out of range")
		}
	}
	return nil
}

// Decode parses raw JSON over the defaults. Unknown keys are rejected.
func Decode(raw []byte) (Config, error) {
	var c Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "decode", Err: err}
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load resolves the embedded config for device.
func Load(device string) (Config, error) {
	if device == "" {
		device = DefaultDevice
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: device, Err: ErrUnknownDevice}
	}
	return Decode(raw)
}

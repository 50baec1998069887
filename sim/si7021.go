package sim

import (
	"sync"

	"tempbeacon-go/x/mathx"
)

// Si7021 models the sensor's command set: no-hold temperature measurement,
// user register 1 read and write.
type Si7021 struct {
	mu sync.Mutex

	raw   uint16
	user1 byte

	// ConvertNacks is the number of read address phases NACKed after a
	// measure command while the conversion runs.
	convertNacks int

	cmd     byte
	haveCmd bool
	left    int // NACKs remaining for the current conversion
	out     [2]byte
	outN    int
	outI    int

	measures int
}

const (
	siMeasureNoHold = 0xF3
	siWriteUser1    = 0xE6
	siReadUser1     = 0xE7
	siUser1Reset    = 0x3A
)

// NewSi7021 returns a sensor reading deciF tenths of °F that NACKs
// convertNacks read attempts per measurement.
func NewSi7021(deciF int32, convertNacks int) *Si7021 {
	s := &Si7021{user1: siUser1Reset, convertNacks: convertNacks}
	s.raw = RawFromDeciF(deciF)
	return s
}

// SetDeciF sets the temperature the next measurement reports.
func (s *Si7021) SetDeciF(deciF int32) {
	s.mu.Lock()
	s.raw = RawFromDeciF(deciF)
	s.mu.Unlock()
}

// SetRaw sets the raw code the next measurement reports.
func (s *Si7021) SetRaw(raw uint16) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// User1 returns user register 1.
func (s *Si7021) User1() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user1
}

// Measures returns the number of completed measurement reads.
func (s *Si7021) Measures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measures
}

// Reset restores power-on register values.
func (s *Si7021) Reset() {
	s.mu.Lock()
	s.user1 = siUser1Reset
	s.haveCmd, s.left, s.outN = false, 0, 0
	s.mu.Unlock()
}

func (s *Si7021) Address(read bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !read {
		s.haveCmd = false
		return true
	}
	if !s.haveCmd {
		return false
	}
	switch s.cmd {
	case siMeasureNoHold:
		if s.left > 0 {
			s.left--
			return false
		}
		s.out, s.outN = [2]byte{byte(s.raw >> 8), byte(s.raw)}, 2
		s.measures++
	case siReadUser1:
		s.out[0], s.outN = s.user1, 1
	default:
		return false
	}
	s.outI = 0
	return true
}

func (s *Si7021) Write(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveCmd {
		s.cmd, s.haveCmd = b, true
		if b == siMeasureNoHold {
			s.left = s.convertNacks
		}
		return b == siMeasureNoHold || b == siReadUser1 || b == siWriteUser1
	}
	if s.cmd == siWriteUser1 {
		s.user1 = b
		return true
	}
	return false
}

func (s *Si7021) Read() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outI >= s.outN {
		return 0xFF
	}
	b := s.out[s.outI]
	s.outI++
	return b
}

func (s *Si7021) Stop() {}

// RawFromDeciF inverts the sensor's transfer function:
// raw = (T(°C) + 46.85) * 65536 / 175.72.
func RawFromDeciF(deciF int32) uint16 {
	// hundredths of °C scaled by 9: (F*10*10 - 3200) * 5
	centiC9 := (int64(deciF)*10 - 3200) * 5
	num := (centiC9 + 4685*9) * 65536
	den := int64(17572 * 9)
	return uint16(mathx.Clamp(mathx.RoundDiv(num, den), 0, 0xFFFF))
}

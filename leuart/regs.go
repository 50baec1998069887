package leuart

// Cmd bits written to the peripheral command register.
type Cmd uint32

const (
	CmdRXEn Cmd = 1 << iota
	CmdRXDis
	CmdTXEn
	CmdTXDis
	CmdRXBlockEn
	CmdRXBlockDis
	CmdClearTX
	CmdClearRX
)

// Flag bits shared by the interrupt flag and interrupt enable registers.
type Flag uint32

const (
	FlagTXC Flag = 1 << iota
	FlagTXBL
	FlagRXDataV
)

// Status bits.
type Status uint32

const (
	StatusRXEns Status = 1 << iota
	StatusTXEns
	StatusRXBlock
)

// Peripheral is the register surface of one low-energy serial port. Baud,
// frame format and pin routing are configured before the Engine sees it.
//
// TXBL is a level: it stays raised while the transmit buffer has room.
// TXC is raised when a frame has left the shift register with nothing
// behind it.
type Peripheral interface {
	Command(c Cmd)
	WriteTx(b byte)

	Flags() Flag
	ClearFlags(f Flag)
	Enabled() Flag
	EnableIRQ(f Flag)
	DisableIRQ(f Flag)

	Status() Status
}

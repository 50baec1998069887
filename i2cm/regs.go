package i2cm

// Cmd bits written to the peripheral command register. Several may be
// written at once; they take effect in bit order.
type Cmd uint32

const (
	CmdStart Cmd = 1 << iota
	CmdStop
	CmdAck
	CmdNack
	CmdCont
	CmdAbort
	CmdClearTx
	CmdClearPC
)

// Flag bits shared by the interrupt flag and interrupt enable registers.
type Flag uint32

const (
	FlagStart Flag = 1 << iota
	FlagRStart
	FlagAddr
	FlagTXC
	FlagTXBL
	FlagRXDataV
	FlagAck
	FlagNack
	FlagMStop
	FlagArbLost
	FlagBusErr
)

// Peripheral is the register surface of one two-wire master peripheral.
// Pin routing and clocking are configured before the Engine sees it.
type Peripheral interface {
	// Command writes the command register.
	Command(c Cmd)
	// WriteTx loads the transmit data register.
	WriteTx(b byte)
	// ReadRx reads the receive data register, clearing FlagRXDataV.
	ReadRx() byte

	// Flags reads the interrupt flag register.
	Flags() Flag
	// ClearFlags clears the given interrupt flags.
	ClearFlags(f Flag)
	// Enabled reads the interrupt enable register.
	Enabled() Flag
	// SetEnabled writes the interrupt enable register.
	SetEnabled(f Flag)

	// SetAutoAck turns automatic acknowledgement of received bytes on or off.
	SetAutoAck(on bool)
	// Busy reports whether the peripheral is not in its idle bus state.
	Busy() bool
}

package i2cm

// State is the phase of the in-flight transaction.
type State uint32

const (
	InitSendAddr State = iota
	SendCommand
	SendRptStartAddr
	ReadMSByte
	ReadLS
	SendData
	StopEnd
)

var stateNames = [...]string{
	"init_send_addr",
	"send_command",
	"send_rpt_start_addr",
	"read_ms_byte",
	"read_ls",
	"send_data",
	"stop_end",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Direction is the value of the R/W bit following the slave address.
type Direction uint8

const (
	Write Direction = 0
	Read  Direction = 1
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

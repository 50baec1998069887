package leuart

// State is the phase of the in-flight transmission.
type State uint32

const (
	Init State = iota
	SendData
	StopClose
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case SendData:
		return "send_data"
	case StopClose:
		return "stop_close"
	}
	return "unknown"
}

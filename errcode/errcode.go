package errcode

// Code is a stable error identifier shared by the engines, the queue and the
// service layer. It is a string newtype, comparable, allocation-free, and
// implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Caller misuse: returned to the caller, never halts.
	Busy          Code = "busy"
	Overrun       Code = "overrun"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"

	// Unrecoverable: reported to a fault Handler.
	Protocol  Code = "protocol_violation"
	Exhausted Code = "resource_exhausted"
	Timeout   Code = "timeout"

	Error Code = "error" // generic fallback
)

// E carries a Code plus the operation that raised it.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is match an *E against its bare Code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for op.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Fatal reports whether c belongs to the unrecoverable categories.
func Fatal(c Code) bool {
	switch c {
	case Protocol, Exhausted, Timeout:
		return true
	}
	return false
}

// Handler receives unrecoverable faults. It may run in interrupt context and
// must not block.
type Handler func(*E)

// Halt is the default Handler: it stops the program.
func Halt(e *E) { panic(e) }

// Or returns h, or Halt when h is nil.
func Or(h Handler) Handler {
	if h == nil {
		return Halt
	}
	return h
}

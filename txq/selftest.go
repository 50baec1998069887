package txq

import (
	"bytes"

	"tempbeacon-go/errcode"
)

// SelfTest pushes and drains three frames of 50, 25 and 5 bytes through a
// scratch queue of the given capacity, wrapping the ring on the second push.
// It returns the first mismatch. The transmitter is never touched.
func SelfTest(capacity int) error {
	const op = "txq.SelfTest"
	q := New(idle{}, Options{Capacity: capacity})
	size := q.Cap()
	if size < 52 {
		return errcode.New(errcode.InvalidParams, op, "capacity too small for the test frames")
	}
	frames := [3][]byte{seq(50, 1), seq(25, 20), seq(5, 35)}
	fail := func(msg string) error { return errcode.New(errcode.Protocol, op, msg) }

	if q.FreeSpace() != size {
		return fail("new queue not empty")
	}
	if err := q.Push(frames[0]); err != nil {
		return err
	}
	if q.FreeSpace() != size-len(frames[0])-1 {
		return fail("free space after first push")
	}
	if !q.Pop(true) || !bytes.Equal(q.Captured(), frames[0]) {
		return fail("first frame mismatch")
	}
	if q.FreeSpace() != size {
		return fail("queue not empty after first pop")
	}

	if err := q.Push(frames[1]); err != nil {
		return err
	}
	if err := q.Push(frames[2]); err != nil {
		return err
	}
	if q.FreeSpace() != size-len(frames[1])-1-len(frames[2])-1 {
		return fail("free space after wrapped pushes")
	}
	for i := 1; i < 3; i++ {
		if !q.Pop(true) || !bytes.Equal(q.Captured(), frames[i]) {
			return fail("wrapped frame mismatch")
		}
	}
	if q.FreeSpace() != size || q.Pop(true) {
		return fail("queue not empty at end")
	}
	return nil
}

func seq(n int, first byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = first + byte(i)
	}
	return b
}

// idle is a transmitter that is never reached in diagnostic mode.
type idle struct{}

func (idle) Busy() bool { return false }
func (idle) TryStart([]byte) error {
	return errcode.New(errcode.Unsupported, "txq.SelfTest", "diagnostic queue has no transmitter")
}

//go:build !tinygo

package sim

import (
	"io"

	"tempbeacon-go/x/shmring"
)

const peerRing = 512

// ringPort buffers received bytes in a ring. Bytes arriving while it is
// full are lost, as on a UART with an overrun.
type ringPort struct {
	r *shmring.Ring
}

func newPort() rxPort { return &ringPort{r: shmring.New(peerRing)} }

func (p *ringPort) Receive(b byte) { p.r.Put(b) }
func (p *ringPort) Buffered() int  { return p.r.Available() }

func (p *ringPort) ReadByte() (byte, error) {
	b, ok := p.r.Get()
	if !ok {
		return 0, io.EOF
	}
	return b, nil
}

package sim

import (
	"context"
	"strings"
	"sync"
)

// peerDrainAt keeps the receive ring from overwriting unread bytes.
const peerDrainAt = 256

// rxPort is the receive side of the peer's serial port.
type rxPort interface {
	Receive(b byte)
	Buffered() int
	ReadByte() (byte, error)
}

// Peer is the far end of the radio link: a serial port that collects what
// the beacon transmits and splits it into lines.
type Peer struct {
	mu     sync.Mutex
	u      rxPort
	notify chan struct{}
	line   strings.Builder
	lines  []string
}

// NewPeer opens the peer's receive port.
func NewPeer() *Peer {
	p := &Peer{u: newPort(), notify: make(chan struct{}, 1)}
	p.Reset()
	return p
}

// Receive takes one byte off the wire.
func (p *Peer) Receive(b byte) {
	p.mu.Lock()
	p.u.Receive(b)
	if p.u.Buffered() >= peerDrainAt {
		p.drain()
	}
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Buffered returns the bytes received and not yet consumed.
func (p *Peer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.u.Buffered()
}

// drain moves buffered bytes into complete lines. Called with mu held.
func (p *Peer) drain() {
	for p.u.Buffered() > 0 {
		b, err := p.u.ReadByte()
		if err != nil {
			return
		}
		p.line.WriteByte(b)
		if b == '\n' {
			p.lines = append(p.lines, p.line.String())
			p.line.Reset()
		}
	}
}

// Lines returns and forgets the complete lines received so far. Each line
// keeps its trailing newline.
func (p *Peer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()
	out := p.lines
	p.lines = nil
	return out
}

// ReadLine waits for the next complete line.
func (p *Peer) ReadLine(ctx context.Context) (string, error) {
	for {
		p.mu.Lock()
		p.drain()
		if len(p.lines) > 0 {
			l := p.lines[0]
			p.lines = p.lines[1:]
			p.mu.Unlock()
			return l, nil
		}
		p.mu.Unlock()
		select {
		case <-p.notify:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Reset discards everything received.
func (p *Peer) Reset() {
	p.mu.Lock()
	p.drain()
	p.line.Reset()
	p.lines = nil
	p.mu.Unlock()
}

package testutil

import (
	"net"
	"sync"
	"time"
)

// PipeAddr is the address of one end of an in-memory datagram pipe.
type PipeAddr string

// Network implements net.Addr.
func (a PipeAddr) Network() string { return "pipe" }

// String implements net.Addr.
func (a PipeAddr) String() string { return string(a) }

type pipePacket struct {
	data []byte
	from net.Addr
}

// PipeConn is one end of an in-memory, lossless, ordered datagram pipe
// implementing net.PacketConn. Wrap it in a FaultyConn to inject faults.
type PipeConn struct {
	addr net.Addr
	in   chan pipePacket
	peer *PipeConn

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPipe returns two connected pipe ends named a and b.
func NewPipe(a, b string) (*PipeConn, *PipeConn) {
	ca := &PipeConn{
		addr:   PipeAddr(a),
		in:     make(chan pipePacket, 128),
		closed: make(chan struct{}),
	}
	cb := &PipeConn{
		addr:   PipeAddr(b),
		in:     make(chan pipePacket, 128),
		closed: make(chan struct{}),
	}
	ca.peer = cb
	cb.peer = ca
	return ca, cb
}

// ReadFrom implements net.PacketConn.
func (c *PipeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case pkt := <-c.in:
		n := copy(p, pkt.data)
		return n, pkt.from, nil
	}
}

// WriteTo implements net.PacketConn. The destination address is ignored;
// everything goes to the other pipe end. Writes to a closed peer vanish,
// matching datagram semantics.
func (c *PipeConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	data := make([]byte, len(p))
	copy(data, p)

	select {
	case c.peer.in <- pipePacket{data: data, from: c.addr}:
	case <-c.peer.closed:
	default:
		// Peer inbox full: the datagram is lost.
	}
	return len(p), nil
}

// Close implements net.PacketConn.
func (c *PipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// LocalAddr implements net.PacketConn.
func (c *PipeConn) LocalAddr() net.Addr { return c.addr }

// SetDeadline implements net.PacketConn; deadlines are not supported.
func (c *PipeConn) SetDeadline(time.Time) error { return nil }

// SetReadDeadline implements net.PacketConn; deadlines are not supported.
func (c *PipeConn) SetReadDeadline(time.Time) error { return nil }

// SetWriteDeadline implements net.PacketConn; deadlines are not supported.
func (c *PipeConn) SetWriteDeadline(time.Time) error { return nil }

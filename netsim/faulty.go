package netsim

import (
	"math/rand"
	"net"
	"sync"
)

// Faults configures the per-write fault probabilities of a FaultyConn. All
// rates are in [0, 1] and evaluated independently, drop first.
type Faults struct {
	// DropRate silently discards the datagram.
	DropRate float64
	// DupRate writes the datagram twice.
	DupRate float64
	// CorruptRate flips one byte of the datagram before writing.
	CorruptRate float64
	// HoldRate withholds the datagram and releases it after the next
	// write, producing reordering.
	HoldRate float64
}

type heldPacket struct {
	data []byte
	addr net.Addr
}

// FaultyConn wraps a net.PacketConn and injects faults on the write path.
// Wrapping both endpoints of a pipe covers both directions. A deterministic
// seed makes test runs reproducible.
type FaultyConn struct {
	net.PacketConn

	mu     sync.Mutex
	rng    *rand.Rand
	faults Faults
	held   *heldPacket
}

// NewFaultyConn wraps conn with the given fault profile and seed.
func NewFaultyConn(conn net.PacketConn, faults Faults, seed int64) *FaultyConn {
	return &FaultyConn{
		PacketConn: conn,
		rng:        rand.New(rand.NewSource(seed)),
		faults:     faults,
	}
}

// WriteTo implements net.PacketConn with fault injection.
func (c *FaultyConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Release a previously held datagram after this one, reordering the two.
	released := c.held
	c.held = nil

	n := len(p)
	switch {
	case c.rng.Float64() < c.faults.DropRate:
		// Lost on the wire.

	case c.rng.Float64() < c.faults.HoldRate && released == nil:
		data := make([]byte, len(p))
		copy(data, p)
		c.held = &heldPacket{data: data, addr: addr}

	case c.rng.Float64() < c.faults.CorruptRate && len(p) > 0:
		data := make([]byte, len(p))
		copy(data, p)
		data[c.rng.Intn(len(data))] ^= 0xff
		if _, err := c.PacketConn.WriteTo(data, addr); err != nil {
			return 0, err
		}

	case c.rng.Float64() < c.faults.DupRate:
		if _, err := c.PacketConn.WriteTo(p, addr); err != nil {
			return 0, err
		}
		if _, err := c.PacketConn.WriteTo(p, addr); err != nil {
			return 0, err
		}

	default:
		if _, err := c.PacketConn.WriteTo(p, addr); err != nil {
			return 0, err
		}
	}

	if released != nil {
		if _, err := c.PacketConn.WriteTo(released.data, released.addr); err != nil {
			return 0, err
		}
	}
	return n, nil
}

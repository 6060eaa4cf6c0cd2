package arq

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/flashbots/aucnet/metrics"
)

// AcceptFunc is invoked once for the first valid segment received from a
// previously unseen source address, before that segment is dispatched. It
// must not block; spawn a goroutine for any per-peer work.
type AcceptFunc func(ch *Channel, addr net.Addr)

// Demux owns the shared packet socket and routes inbound segments to
// per-peer channels by exact source address. Malformed and corrupt segments
// are dropped silently, indistinguishable from network loss to the sender.
type Demux struct {
	conn   net.PacketConn
	cfg    *Config
	log    *slog.Logger
	accept AcceptFunc

	mu       sync.Mutex
	channels map[string]*Channel

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDemux wraps conn. If accept is nil, segments from unknown sources are
// dropped; use Open to pre-register known peers (client side).
func NewDemux(conn net.PacketConn, cfg *Config, log *slog.Logger, accept AcceptFunc) *Demux {
	if log == nil {
		log = slog.Default()
	}
	return &Demux{
		conn:     conn,
		cfg:      cfg.withDefaults(),
		log:      log,
		accept:   accept,
		channels: make(map[string]*Channel),
		closed:   make(chan struct{}),
	}
}

// LocalAddr returns the underlying socket's local address.
func (d *Demux) LocalAddr() net.Addr { return d.conn.LocalAddr() }

// Open returns the channel for addr, creating it if needed. Used by clients
// to establish the channel to the server before any segment has arrived.
func (d *Demux) Open(addr net.Addr) *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch, ok := d.channels[addr.String()]; ok {
		return ch
	}
	ch := NewChannel(d.conn, addr, d.cfg, d.log)
	d.channels[addr.String()] = ch
	return ch
}

// Remove closes and forgets the channel for addr. A later segment from the
// same address is treated as a new peer.
func (d *Demux) Remove(addr net.Addr) {
	d.mu.Lock()
	ch, ok := d.channels[addr.String()]
	delete(d.channels, addr.String())
	d.mu.Unlock()

	if ok {
		ch.Close()
	}
}

// Close stops the read loop, closes all channels and the underlying socket.
func (d *Demux) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
		d.conn.Close()

		d.mu.Lock()
		for _, ch := range d.channels {
			ch.Close()
		}
		d.channels = make(map[string]*Channel)
		d.mu.Unlock()
	})
}

// Run reads segments from the socket until Close is called or the socket
// fails. It returns nil after Close.
func (d *Demux) Run() error {
	buf := make([]byte, maxSegmentSize)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-d.closed:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		seg, err := DecodeSegment(buf[:n])
		if err != nil {
			metrics.SegmentsCorrupted.Inc()
			d.log.Debug("dropping bad segment", "addr", addr, "err", err)
			continue
		}

		d.route(seg, addr)
	}
}

func (d *Demux) route(seg *Segment, addr net.Addr) {
	d.mu.Lock()
	ch, known := d.channels[addr.String()]
	if !known && d.accept != nil {
		ch = NewChannel(d.conn, addr, d.cfg, d.log)
		d.channels[addr.String()] = ch
	}
	d.mu.Unlock()

	if ch == nil {
		d.log.Debug("dropping segment from unknown source", "addr", addr)
		return
	}
	if !known && d.accept != nil {
		d.accept(ch, addr)
	}
	ch.dispatch(seg)
}

package arq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flashbots/aucnet/metrics"
)

var (
	// ErrPeerUnresponsive indicates the retry budget was exhausted without
	// an acknowledgment. Callers treat the peer as withdrawn.
	ErrPeerUnresponsive = errors.New("arq: peer unresponsive")

	// ErrChannelClosed indicates the channel was closed while an operation
	// was in progress.
	ErrChannelClosed = errors.New("arq: channel closed")
)

// Channel provides exactly-once, in-order delivery of opaque payloads to a
// single remote peer over a shared unreliable packet socket.
//
// A channel is fed inbound segments by a Demux. Send and Receive may be used
// from different goroutines, but each must have at most one caller at a time.
type Channel struct {
	conn   net.PacketConn
	remote net.Addr
	cfg    *Config
	log    *slog.Logger

	acks  chan SeqBit
	inbox chan []byte

	sendMu  sync.Mutex
	sendSeq SeqBit

	recvMu  sync.Mutex
	recvSeq SeqBit // next expected DATA bit; the flipped value is the last delivered one

	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel creates a channel to remote writing through conn. Inbound
// segments must be routed to the channel via dispatch (normally by a Demux).
func NewChannel(conn net.PacketConn, remote net.Addr, cfg *Config, log *slog.Logger) *Channel {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		conn:   conn,
		remote: remote,
		cfg:    cfg,
		log:    log.With("peer", remote.String()),
		acks:   make(chan SeqBit, 1),
		inbox:  make(chan []byte, cfg.InboxSize),
		closed: make(chan struct{}),
	}
}

// Remote returns the peer address this channel is bound to.
func (c *Channel) Remote() net.Addr { return c.remote }

// Close releases the channel. In-flight Send and Receive calls return
// ErrChannelClosed. The underlying socket is not closed.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Send transmits payload and blocks until the peer acknowledges it or the
// retry budget is exhausted, in which case ErrPeerUnresponsive is returned
// and the payload must be considered undelivered.
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	seg := &Segment{Type: SegData, Seq: c.sendSeq, Payload: payload}
	buf, err := seg.Encode()
	if err != nil {
		return err
	}

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.SegmentsRetransmitted.Inc()
			c.log.Debug("retransmitting segment", "seq", seg.Seq, "attempt", attempt)
		}
		if _, err := c.conn.WriteTo(buf, c.remote); err != nil {
			return fmt.Errorf("writing segment: %w", err)
		}
		metrics.SegmentsSent.Inc()

		acked, err := c.awaitAck(ctx, seg.Seq)
		if err != nil {
			return err
		}
		if acked {
			c.sendSeq = c.sendSeq.Flip()
			return nil
		}
	}

	c.log.Warn("retry budget exhausted", "seq", seg.Seq, "retries", c.cfg.MaxRetries)
	return ErrPeerUnresponsive
}

// awaitAck waits one retransmission interval for an ACK carrying want.
// ACKs for the other bit are stale and ignored.
func (c *Channel) awaitAck(ctx context.Context, want SeqBit) (bool, error) {
	timer := time.NewTimer(c.cfg.RetransmitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-c.closed:
			return false, ErrChannelClosed
		case ack := <-c.acks:
			if ack != want {
				c.log.Debug("ignoring stale ack", "got", ack, "want", want)
				continue
			}
			return true, nil
		case <-timer.C:
			return false, nil
		}
	}
}

// Receive returns the next in-order payload delivered by the peer.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrChannelClosed
	case payload := <-c.inbox:
		return payload, nil
	}
}

// dispatch handles one inbound segment from the demultiplexer.
//
// A DATA segment is accepted as new only if its sequence bit matches the
// expected one; otherwise it is a duplicate of the previously delivered
// segment and is re-acknowledged without being delivered again. Accepting a
// segment means enqueueing it into the in-order inbox; acknowledgment is
// withheld while the inbox is full so the peer's retransmission covers the
// drop.
func (c *Channel) dispatch(seg *Segment) {
	switch seg.Type {
	case SegAck:
		select {
		case c.acks <- seg.Seq:
		default:
			// Send is not draining; a dropped ACK behaves like loss.
		}

	case SegData:
		c.recvMu.Lock()
		defer c.recvMu.Unlock()

		if seg.Seq != c.recvSeq {
			metrics.DuplicatesSuppressed.Inc()
			c.log.Debug("re-acking duplicate segment", "seq", seg.Seq)
			c.writeAck(seg.Seq)
			return
		}

		select {
		case c.inbox <- seg.Payload:
			c.writeAck(seg.Seq)
			c.recvSeq = c.recvSeq.Flip()
		default:
			c.log.Debug("inbox full, dropping segment", "seq", seg.Seq)
		}
	}
}

func (c *Channel) writeAck(seq SeqBit) {
	ack := &Segment{Type: SegAck, Seq: seq}
	buf, err := ack.Encode()
	if err != nil {
		return
	}
	if _, err := c.conn.WriteTo(buf, c.remote); err != nil {
		c.log.Debug("writing ack failed", "seq", seq, "err", err)
	}
}

package arq

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn captures writes so tests can observe outgoing segments and feed
// acknowledgments back through dispatch. Channels never read from the socket
// themselves, so ReadFrom is unreachable.
type fakeConn struct {
	writes chan *Segment
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan *Segment, 64)}
}

func (f *fakeConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	seg, err := DecodeSegment(p)
	if err != nil {
		return 0, err
	}
	f.writes <- seg
	return len(p), nil
}

func (f *fakeConn) ReadFrom([]byte) (int, net.Addr, error) { return 0, nil, net.ErrClosed }
func (f *fakeConn) Close() error                           { return nil }
func (f *fakeConn) LocalAddr() net.Addr                    { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1} }
func (f *fakeConn) SetDeadline(time.Time) error            { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error        { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error       { return nil }

func (f *fakeConn) awaitWrite(t *testing.T) *Segment {
	t.Helper()
	select {
	case seg := <-f.writes:
		return seg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a segment write")
		return nil
	}
}

var testRemote = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}

func testChannel(conn net.PacketConn) *Channel {
	return NewChannel(conn, testRemote, &Config{
		RetransmitTimeout: 50 * time.Millisecond,
		MaxRetries:        3,
	}, nil)
}

func TestChannel_SendAcknowledged(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	errc := make(chan error, 1)
	go func() { errc <- ch.Send(context.Background(), []byte("going once")) }()

	seg := conn.awaitWrite(t)
	require.Equal(t, SegData, seg.Type)
	assert.Equal(t, SeqBit(0), seg.Seq)
	assert.Equal(t, []byte("going once"), seg.Payload)

	ch.dispatch(&Segment{Type: SegAck, Seq: seg.Seq})
	require.NoError(t, <-errc)

	// The next payload carries the flipped bit.
	go func() { errc <- ch.Send(context.Background(), []byte("going twice")) }()
	seg = conn.awaitWrite(t)
	assert.Equal(t, SeqBit(1), seg.Seq)
	ch.dispatch(&Segment{Type: SegAck, Seq: seg.Seq})
	require.NoError(t, <-errc)
}

func TestChannel_StaleAckIgnored(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	errc := make(chan error, 1)
	go func() { errc <- ch.Send(context.Background(), []byte("payload")) }()

	seg := conn.awaitWrite(t)
	require.Equal(t, SeqBit(0), seg.Seq)

	// An acknowledgment for the other bit must not complete the send.
	ch.dispatch(&Segment{Type: SegAck, Seq: 1})
	select {
	case err := <-errc:
		t.Fatalf("send completed on a stale ack: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	ch.dispatch(&Segment{Type: SegAck, Seq: 0})
	require.NoError(t, <-errc)
}

func TestChannel_RetransmitsUntilAcked(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	errc := make(chan error, 1)
	go func() { errc <- ch.Send(context.Background(), []byte("payload")) }()

	// Let the first transmission time out, then acknowledge the retry.
	first := conn.awaitWrite(t)
	second := conn.awaitWrite(t)
	assert.Equal(t, first.Seq, second.Seq)
	assert.Equal(t, first.Payload, second.Payload)

	ch.dispatch(&Segment{Type: SegAck, Seq: second.Seq})
	require.NoError(t, <-errc)
}

func TestChannel_PeerUnresponsive(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, testRemote, &Config{
		RetransmitTimeout: 10 * time.Millisecond,
		MaxRetries:        2,
	}, nil)

	err := ch.Send(context.Background(), []byte("anyone there"))
	assert.ErrorIs(t, err, ErrPeerUnresponsive)

	// Initial transmission plus two retries.
	assert.Len(t, conn.writes, 3)
}

func TestChannel_SendContextCanceled(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- ch.Send(ctx, []byte("payload")) }()

	conn.awaitWrite(t)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestChannel_DeliverAndAck(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	ch.dispatch(&Segment{Type: SegData, Seq: 0, Payload: []byte("item details")})

	ack := conn.awaitWrite(t)
	assert.Equal(t, SegAck, ack.Type)
	assert.Equal(t, SeqBit(0), ack.Seq)

	payload, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("item details"), payload)
}

func TestChannel_DuplicateReackedNotRedelivered(t *testing.T) {
	conn := newFakeConn()
	ch := testChannel(conn)

	ch.dispatch(&Segment{Type: SegData, Seq: 0, Payload: []byte("first")})
	conn.awaitWrite(t)

	// The peer missed the ack and retransmits: re-ack, do not deliver twice.
	ch.dispatch(&Segment{Type: SegData, Seq: 0, Payload: []byte("first")})
	dup := conn.awaitWrite(t)
	assert.Equal(t, SegAck, dup.Type)
	assert.Equal(t, SeqBit(0), dup.Seq)

	ch.dispatch(&Segment{Type: SegData, Seq: 1, Payload: []byte("second")})
	conn.awaitWrite(t)

	payload, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), payload)

	payload, err = ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)

	assert.Empty(t, ch.inbox)
}

func TestChannel_InboxFullDropsUnacked(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, testRemote, &Config{
		RetransmitTimeout: 10 * time.Millisecond,
		MaxRetries:        1,
		InboxSize:         1,
	}, nil)

	ch.dispatch(&Segment{Type: SegData, Seq: 0, Payload: []byte("kept")})
	conn.awaitWrite(t)

	// Inbox is full: the fresh segment is dropped without an ack so the
	// peer's retransmission covers it.
	ch.dispatch(&Segment{Type: SegData, Seq: 1, Payload: []byte("dropped")})
	select {
	case seg := <-conn.writes:
		t.Fatalf("unexpected %s segment while inbox full", seg.Type)
	case <-time.After(20 * time.Millisecond):
	}

	payload, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), payload)

	// With room again the retransmission is accepted.
	ch.dispatch(&Segment{Type: SegData, Seq: 1, Payload: []byte("dropped")})
	conn.awaitWrite(t)
	payload, err = ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("dropped"), payload)
}

func TestChannel_CloseUnblocksReceive(t *testing.T) {
	ch := testChannel(newFakeConn())

	errc := make(chan error, 1)
	go func() {
		_, err := ch.Receive(context.Background())
		errc <- err
	}()

	ch.Close()
	assert.ErrorIs(t, <-errc, ErrChannelClosed)
}

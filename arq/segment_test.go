package arq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_RoundTrip(t *testing.T) {
	seg := &Segment{Type: SegData, Seq: 1, Payload: []byte("hello auction")}

	buf, err := seg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSegment(buf)
	require.NoError(t, err)
	assert.Equal(t, SegData, decoded.Type)
	assert.Equal(t, SeqBit(1), decoded.Seq)
	assert.Equal(t, []byte("hello auction"), decoded.Payload)
}

func TestSegment_AckCarriesNoPayload(t *testing.T) {
	seg := &Segment{Type: SegAck, Seq: 0}

	buf, err := seg.Encode()
	require.NoError(t, err)
	assert.Len(t, buf, headerSize+checksumSize)

	decoded, err := DecodeSegment(buf)
	require.NoError(t, err)
	assert.Equal(t, SegAck, decoded.Type)
	assert.Empty(t, decoded.Payload)
}

func TestSegment_PayloadTooLarge(t *testing.T) {
	seg := &Segment{Type: SegData, Payload: make([]byte, MaxPayloadSize+1)}

	_, err := seg.Encode()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSegment_MaxPayloadFits(t *testing.T) {
	seg := &Segment{Type: SegData, Payload: bytes.Repeat([]byte{0xab}, MaxPayloadSize)}

	buf, err := seg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSegment(buf)
	require.NoError(t, err)
	assert.Len(t, decoded.Payload, MaxPayloadSize)
}

func TestDecodeSegment_CorruptChecksum(t *testing.T) {
	seg := &Segment{Type: SegData, Seq: 0, Payload: []byte("bid 150")}
	buf, err := seg.Encode()
	require.NoError(t, err)

	// Flip one payload byte; the checksum no longer matches.
	buf[headerSize] ^= 0xff

	_, err = DecodeSegment(buf)
	assert.ErrorIs(t, err, ErrSegmentCorrupt)
}

func TestDecodeSegment_Truncated(t *testing.T) {
	seg := &Segment{Type: SegData, Seq: 0, Payload: []byte("bid 150")}
	buf, err := seg.Encode()
	require.NoError(t, err)

	_, err = DecodeSegment(buf[:len(buf)-3])
	assert.ErrorIs(t, err, ErrSegmentMalformed)

	_, err = DecodeSegment(buf[:3])
	assert.ErrorIs(t, err, ErrSegmentMalformed)
}

func TestDecodeSegment_UnknownType(t *testing.T) {
	seg := &Segment{Type: SegData, Seq: 0, Payload: nil}
	buf, err := seg.Encode()
	require.NoError(t, err)

	// An unknown type byte fails parsing even before the checksum check
	// would notice, so recompute a valid checksum for it.
	raw := &Segment{Type: SegmentType(9), Seq: 0}
	bad, err := raw.Encode()
	require.NoError(t, err)

	_, err = DecodeSegment(bad)
	assert.ErrorIs(t, err, ErrSegmentMalformed)

	_, err = DecodeSegment(buf)
	assert.NoError(t, err)
}

func TestSegment_DecodedPayloadIsACopy(t *testing.T) {
	seg := &Segment{Type: SegData, Seq: 0, Payload: []byte("original")}
	buf, err := seg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSegment(buf)
	require.NoError(t, err)

	buf[headerSize] = 'X'
	assert.Equal(t, []byte("original"), decoded.Payload)
}

func TestSeqBit_Flip(t *testing.T) {
	assert.Equal(t, SeqBit(1), SeqBit(0).Flip())
	assert.Equal(t, SeqBit(0), SeqBit(1).Flip())
}

package arq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// SegmentType identifies the role of a segment on the wire.
type SegmentType uint8

const (
	// SegData carries one application payload.
	SegData SegmentType = 1
	// SegAck acknowledges the DATA segment carrying the same sequence bit.
	SegAck SegmentType = 2
)

// String returns a short name for logging.
func (t SegmentType) String() string {
	switch t {
	case SegData:
		return "DATA"
	case SegAck:
		return "ACK"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// SeqBit is the alternating stop-and-wait sequence bit. It is kept as a
// dedicated two-valued type rather than a counter so it cannot silently
// widen and wrap.
type SeqBit uint8

// Flip returns the other sequence bit.
func (b SeqBit) Flip() SeqBit { return b ^ 1 }

const (
	headerSize   = 4
	checksumSize = 4

	// MaxPayloadSize bounds one segment's payload so an encoded segment
	// fits comfortably in a single UDP datagram.
	MaxPayloadSize = 1400

	maxSegmentSize = headerSize + MaxPayloadSize + checksumSize
)

var (
	// ErrSegmentMalformed indicates a segment that cannot be parsed:
	// truncated, length mismatch, or unknown type.
	ErrSegmentMalformed = errors.New("arq: malformed segment")

	// ErrSegmentCorrupt indicates a parseable segment whose checksum does
	// not match its contents.
	ErrSegmentCorrupt = errors.New("arq: segment checksum mismatch")

	// ErrPayloadTooLarge indicates a payload exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("arq: payload exceeds segment capacity")
)

// Segment is the unit exchanged over the unreliable transport.
//
// Wire layout: [type:1][seq:1][length:2 BE][payload:<=MaxPayloadSize][crc32:4 BE].
// The CRC-32 (IEEE) covers the header and payload.
type Segment struct {
	Type    SegmentType
	Seq     SeqBit
	Payload []byte
}

// Encode serializes the segment into wire format.
func (s *Segment) Encode() ([]byte, error) {
	if len(s.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, headerSize+len(s.Payload)+checksumSize)
	buf[0] = byte(s.Type)
	buf[1] = byte(s.Seq)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(s.Payload)))
	copy(buf[headerSize:], s.Payload)

	sum := crc32.ChecksumIEEE(buf[:headerSize+len(s.Payload)])
	binary.BigEndian.PutUint32(buf[headerSize+len(s.Payload):], sum)
	return buf, nil
}

// DecodeSegment parses a wire-format segment. The payload is copied, so the
// input buffer may be reused by the caller.
func DecodeSegment(buf []byte) (*Segment, error) {
	if len(buf) < headerSize+checksumSize {
		return nil, ErrSegmentMalformed
	}

	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf) != headerSize+length+checksumSize {
		return nil, ErrSegmentMalformed
	}

	sum := binary.BigEndian.Uint32(buf[headerSize+length:])
	if crc32.ChecksumIEEE(buf[:headerSize+length]) != sum {
		return nil, ErrSegmentCorrupt
	}

	typ := SegmentType(buf[0])
	if typ != SegData && typ != SegAck {
		return nil, ErrSegmentMalformed
	}

	seq := SeqBit(buf[1])
	if seq > 1 {
		return nil, ErrSegmentMalformed
	}

	payload := make([]byte, length)
	copy(payload, buf[headerSize:headerSize+length])

	return &Segment{Type: typ, Seq: seq, Payload: payload}, nil
}

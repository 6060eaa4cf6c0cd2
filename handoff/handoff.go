package handoff

import (
	"context"
	"fmt"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/auction"
)

const (
	// MaxChunkSize bounds the raw bytes per transfer chunk. Chunk data is
	// base64-expanded by the JSON envelope, so this stays well under the
	// segment payload capacity.
	MaxChunkSize = 900

	// MaxTransferSize bounds one payload. The start marker's announced size
	// is validated against it before any buffer is allocated.
	MaxTransferSize = 16 << 20
)

// Send streams payload through ch: a start marker carrying the total size,
// the ordered chunks, then a fin marker. It returns arq.ErrPeerUnresponsive
// if any step exhausts the channel's retry budget.
func Send(ctx context.Context, ch *arq.Channel, payload []byte) error {
	if len(payload) > MaxTransferSize {
		return fmt.Errorf("payload of %d bytes exceeds transfer limit %d", len(payload), MaxTransferSize)
	}

	start, err := auction.EncodeMessage(auction.KindTransferStart, &auction.TransferStart{TotalSize: len(payload)})
	if err != nil {
		return err
	}
	if err := ch.Send(ctx, start); err != nil {
		return fmt.Errorf("sending transfer start: %w", err)
	}

	for i, off := 0, 0; off < len(payload); i++ {
		end := off + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}

		msg, err := auction.EncodeMessage(auction.KindTransferChunk, &auction.TransferChunk{
			Index: i,
			Data:  payload[off:end],
		})
		if err != nil {
			return err
		}
		if err := ch.Send(ctx, msg); err != nil {
			return fmt.Errorf("sending chunk %d: %w", i, err)
		}
		off = end
	}

	fin, err := auction.EncodeMessage(auction.KindTransferFin, &auction.TransferFin{})
	if err != nil {
		return err
	}
	if err := ch.Send(ctx, fin); err != nil {
		return fmt.Errorf("sending transfer fin: %w", err)
	}
	return nil
}

// Receive reassembles one payload from ch. Chunks arrive in send order under
// stop-and-wait; a gap in the chunk indexes is a protocol violation.
func Receive(ctx context.Context, ch *arq.Channel) ([]byte, error) {
	raw, err := ch.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("receiving transfer start: %w", err)
	}
	env, err := auction.DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	start, err := auction.DecodeBody[auction.TransferStart](env, auction.KindTransferStart)
	if err != nil {
		return nil, err
	}
	if start.TotalSize < 0 || start.TotalSize > MaxTransferSize {
		// The announced size drives the buffer allocation; never trust it
		// beyond the transfer limit.
		return nil, fmt.Errorf("invalid transfer size %d", start.TotalSize)
	}

	payload := make([]byte, 0, start.TotalSize)
	next := 0
	for {
		raw, err := ch.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("receiving chunk %d: %w", next, err)
		}
		env, err := auction.DecodeEnvelope(raw)
		if err != nil {
			return nil, err
		}

		switch env.Kind {
		case auction.KindTransferChunk:
			chunk, err := auction.DecodeBody[auction.TransferChunk](env, auction.KindTransferChunk)
			if err != nil {
				return nil, err
			}
			if chunk.Index != next {
				return nil, fmt.Errorf("chunk out of order: got %d, want %d", chunk.Index, next)
			}
			payload = append(payload, chunk.Data...)
			next++

		case auction.KindTransferFin:
			if len(payload) != start.TotalSize {
				return nil, fmt.Errorf("incomplete transfer: got %d bytes, want %d", len(payload), start.TotalSize)
			}
			return payload, nil

		default:
			return nil, fmt.Errorf("unexpected message kind %q during transfer", env.Kind)
		}
	}
}

// Relay receives one payload from src and forwards it to dst, returning the
// payload so the caller can record it.
func Relay(ctx context.Context, src, dst *arq.Channel) ([]byte, error) {
	payload, err := Receive(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := Send(ctx, dst, payload); err != nil {
		return payload, err
	}
	return payload, nil
}

package auction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flashbots/aucnet/arq"
)

// MessageKind discriminates application payloads carried over reliable
// channels. Every message is one reliably-transported payload.
type MessageKind string

const (
	KindJoin             MessageKind = "join"
	KindRoleAssigned     MessageKind = "role_assigned"
	KindRejected         MessageKind = "rejected"
	KindItemAnnouncement MessageKind = "item_announcement"
	KindItemReceipt      MessageKind = "item_receipt"
	KindBid              MessageKind = "bid"
	KindBidResponse      MessageKind = "bid_response"
	KindResult           MessageKind = "result"
	KindTransferStart    MessageKind = "transfer_start"
	KindTransferChunk    MessageKind = "transfer_chunk"
	KindTransferFin      MessageKind = "transfer_fin"
)

// RejectReason explains a rejected registration or bid.
type RejectReason string

const (
	ReasonInvalidBid    RejectReason = "invalid_bid"
	ReasonAuctionClosed RejectReason = "auction_closed"
)

// Envelope wraps one typed message body for transport.
type Envelope struct {
	Kind MessageKind     `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Join is the first payload a peer sends after contacting the server.
type Join struct {
	ClientName string `json:"client_name,omitempty"`
}

// RoleAssigned informs a peer of its role for this auction run.
type RoleAssigned struct {
	Role      Role   `json:"role"`
	AuctionID string `json:"auction_id"`
}

// Rejection refuses a late registration attempt.
type Rejection struct {
	Reason RejectReason `json:"reason"`
}

// ItemAnnouncement is the seller's auction request.
type ItemAnnouncement struct {
	Item Item `json:"item"`
}

// ItemReceipt confirms or refuses an item announcement.
type ItemReceipt struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// BidSubmission is one bid attempt. The bidder identity is implicit in the
// source peer.
type BidSubmission struct {
	Amount uint64 `json:"amount"`
}

// BidResponse answers one bid attempt.
type BidResponse struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// ResultBroadcast announces the auction outcome to one peer. Won is
// personalized per recipient; the remaining fields are identical for all.
type ResultBroadcast struct {
	Sold          bool   `json:"sold"`
	Won           bool   `json:"won"`
	ItemName      string `json:"item_name"`
	ClearingPrice uint64 `json:"clearing_price,omitempty"`
	Winner        string `json:"winner,omitempty"`
}

// TransferStart opens a chunked payload transfer.
type TransferStart struct {
	TotalSize int `json:"total_size"`
}

// TransferChunk carries one ordered slice of the payload.
type TransferChunk struct {
	Index int    `json:"index"`
	Data  []byte `json:"data"`
}

// TransferFin marks the payload complete so the receiver can finish
// reassembly.
type TransferFin struct{}

// EncodeMessage serializes a typed body into an envelope payload.
func EncodeMessage[T any](kind MessageKind, body *T) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{Kind: kind, Body: raw})
}

// DecodeEnvelope parses an envelope payload without interpreting the body.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("decoding envelope: missing kind")
	}
	return &env, nil
}

// SendMessage encodes a typed body and delivers it over the channel as one
// reliably-transported payload.
func SendMessage[T any](ctx context.Context, ch *arq.Channel, kind MessageKind, body *T) error {
	payload, err := EncodeMessage(kind, body)
	if err != nil {
		return err
	}
	return ch.Send(ctx, payload)
}

// ReceiveEnvelope receives the next payload from the channel and parses its
// envelope.
func ReceiveEnvelope(ctx context.Context, ch *arq.Channel) (*Envelope, error) {
	payload, err := ch.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(payload)
}

// DecodeBody parses an envelope's body as T after checking the kind.
func DecodeBody[T any](env *Envelope, want MessageKind) (*T, error) {
	if env.Kind != want {
		return nil, fmt.Errorf("unexpected message kind %q, want %q", env.Kind, want)
	}
	var body T
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding %s body: %w", want, err)
	}
	return &body, nil
}

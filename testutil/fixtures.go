package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/auction"
)

// FastARQConfig returns channel parameters tight enough for tests that
// exercise retransmission without slowing the suite down.
func FastARQConfig() *arq.Config {
	return &arq.Config{
		RetransmitTimeout: 50 * time.Millisecond,
		MaxRetries:        5,
		InboxSize:         16,
	}
}

// ItemOption customizes a test item.
type ItemOption func(*auction.Item)

// WithType sets the auction type.
func WithType(t auction.Type) ItemOption {
	return func(i *auction.Item) { i.Type = t }
}

// WithReserve sets the reserve price.
func WithReserve(reserve uint64) ItemOption {
	return func(i *auction.Item) { i.ReservePrice = reserve }
}

// WithBiddingDuration sets the bidding window length.
func WithBiddingDuration(d time.Duration) ItemOption {
	return func(i *auction.Item) { i.BiddingDuration = d }
}

// WithExpectedBidders sets the seller's early-close bidder count.
func WithExpectedBidders(n int) ItemOption {
	return func(i *auction.Item) { i.ExpectedBidders = n }
}

// NewTestItem returns a valid first-price item with a long bidding window,
// customizable through options.
func NewTestItem(opts ...ItemOption) *auction.Item {
	item := &auction.Item{
		Name:            "test-item",
		ReservePrice:    50,
		Type:            auction.FirstPrice,
		BiddingDuration: time.Minute,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

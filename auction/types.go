package auction

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidBid indicates a bid that failed validation. It is returned
	// to the submitting buyer only and leaves the auction state unchanged.
	ErrInvalidBid = errors.New("auction: invalid bid")

	// ErrAuctionClosed indicates a registration or bid attempt after the
	// relevant state transition.
	ErrAuctionClosed = errors.New("auction: closed")

	// ErrWrongState indicates an operation attempted outside the state
	// that allows it, such as a second item submission.
	ErrWrongState = errors.New("auction: operation not valid in current state")

	// ErrInvalidItem indicates an announcement that failed validation. The
	// seller may correct and resubmit it.
	ErrInvalidItem = errors.New("auction: invalid item")
)

// Role identifies a peer's part in the auction.
type Role string

const (
	RoleUnassigned Role = "unassigned"
	RoleSeller     Role = "seller"
	RoleBuyer      Role = "buyer"
)

// Type selects the pricing rule applied when bidding closes.
type Type string

const (
	// FirstPrice: the winner pays their own bid amount. Bidding is open
	// outcry, so each bid must exceed the current best.
	FirstPrice Type = "first-price"

	// SecondPrice: the winner pays the second-highest live bid amount, or
	// their own amount if theirs is the only live bid. Bidding is sealed,
	// so bids are validated against the reserve only.
	SecondPrice Type = "second-price"
)

// Valid returns true if the auction type is recognized.
func (t Type) Valid() bool {
	switch t {
	case FirstPrice, SecondPrice:
		return true
	}
	return false
}

// Item is the seller's auction announcement. It is immutable once the
// bidding window opens.
type Item struct {
	Name            string        `json:"name"`
	ReservePrice    uint64        `json:"reserve_price"`
	Type            Type          `json:"auction_type"`
	BiddingDuration time.Duration `json:"bidding_duration,string"`

	// ExpectedBidders, when positive, lets the seller close bidding early
	// once this many live bids exist. The duration timer still applies.
	ExpectedBidders int `json:"expected_bidders,omitempty"`
}

// Validate checks the announcement before the bidding window may open.
func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: empty item name", ErrInvalidItem)
	}
	if !i.Type.Valid() {
		return fmt.Errorf("%w: unknown auction type %q", ErrInvalidItem, i.Type)
	}
	if i.BiddingDuration <= 0 {
		return fmt.Errorf("%w: non-positive bidding duration", ErrInvalidItem)
	}
	if i.ExpectedBidders < 0 {
		return fmt.Errorf("%w: negative expected bidder count", ErrInvalidItem)
	}
	return nil
}

// Bid is one buyer's live bid. A later valid bid from the same buyer
// supersedes it; bids are never mutated in place.
type Bid struct {
	Bidder  string `json:"bidder"`
	Amount  uint64 `json:"amount"`
	Arrival int    `json:"arrival"`
}

// Result is the immutable outcome of one auction.
type Result struct {
	Sold          bool   `json:"sold"`
	Winner        string `json:"winner,omitempty"`
	ClearingPrice uint64 `json:"clearing_price,omitempty"`
	Item          Item   `json:"item"`
	LiveBids      int    `json:"live_bids"`
}

// State enumerates the coordinator's lifecycle.
type State int

const (
	StateAwaitingItem State = iota
	StateBiddingOpen
	StateBiddingClosed
	StateResultAnnounced
	StateDone
)

// String returns the state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case StateAwaitingItem:
		return "awaiting-item"
	case StateBiddingOpen:
		return "bidding-open"
	case StateBiddingClosed:
		return "bidding-closed"
	case StateResultAnnounced:
		return "result-announced"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

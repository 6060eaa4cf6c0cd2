package auction

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flashbots/aucnet/metrics"
)

// Coordinator runs one auction's state machine:
//
//	AwaitingItem -> BiddingOpen -> BiddingClosed -> ResultAnnounced -> Done
//
// It exclusively owns the item, the live bid set and the result. All bid
// acceptance decisions are serialized under one mutex regardless of which
// peer's flow produced them.
type Coordinator struct {
	log *slog.Logger

	mu       sync.Mutex
	state    State
	item     *Item
	bids     map[string]*Bid
	arrivals int
	result   *Result
	timer    *time.Timer

	done chan struct{}
}

// NewCoordinator creates a coordinator in AwaitingItem.
func NewCoordinator(log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	metrics.AuctionState.Set(float64(StateAwaitingItem))
	return &Coordinator{
		log:  log,
		bids: make(map[string]*Bid),
		done: make(chan struct{}),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Item returns a copy of the announced item, or nil before submission.
func (c *Coordinator) Item() *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item == nil {
		return nil
	}
	item := *c.item
	return &item
}

// BidCount returns the number of live bids.
func (c *Coordinator) BidCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bids)
}

// SubmitItem accepts the seller's announcement, opens the bidding window and
// arms the bidding-duration timer. Only valid in AwaitingItem.
func (c *Coordinator) SubmitItem(item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingItem {
		return fmt.Errorf("%w: item already submitted", ErrWrongState)
	}

	copied := *item
	c.item = &copied
	c.setStateLocked(StateBiddingOpen)
	c.timer = time.AfterFunc(item.BiddingDuration, c.Close)

	c.log.Info("bidding open",
		"item", item.Name,
		"type", item.Type,
		"reserve", item.ReservePrice,
		"duration", item.BiddingDuration)
	return nil
}

// PlaceBid validates and records one bid attempt from bidder. A rejected bid
// does not end the auction; a buyer's later valid bid supersedes its earlier
// one as that buyer's single live bid.
func (c *Coordinator) PlaceBid(bidder string, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateBiddingOpen {
		metrics.BidsRejected.WithLabelValues(string(ReasonAuctionClosed)).Inc()
		return ErrAuctionClosed
	}

	if amount <= c.item.ReservePrice {
		metrics.BidsRejected.WithLabelValues(string(ReasonInvalidBid)).Inc()
		return fmt.Errorf("%w: %d does not exceed reserve %d", ErrInvalidBid, amount, c.item.ReservePrice)
	}

	// First-price bidding is open outcry: a bid must beat the standing
	// best. Second-price bidding is sealed, so no such comparison applies.
	if c.item.Type == FirstPrice {
		if best := c.bestLocked(); best != nil && amount <= best.Amount {
			metrics.BidsRejected.WithLabelValues(string(ReasonInvalidBid)).Inc()
			return fmt.Errorf("%w: %d does not exceed current best %d", ErrInvalidBid, amount, best.Amount)
		}
	}

	c.arrivals++
	c.bids[bidder] = &Bid{Bidder: bidder, Amount: amount, Arrival: c.arrivals}
	metrics.BidsAccepted.Inc()
	c.log.Info("bid accepted", "bidder", bidder, "amount", amount)
	return nil
}

// Withdraw drops a bidder's live bid, used when a peer becomes unresponsive
// during the bidding window. A no-op outside BiddingOpen.
func (c *Coordinator) Withdraw(bidder string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateBiddingOpen {
		return
	}
	if _, ok := c.bids[bidder]; ok {
		delete(c.bids, bidder)
		c.log.Info("bid withdrawn", "bidder", bidder)
	}
}

// Close ends the bidding window and computes the result. The duration timer
// and an explicit seller-initiated close both land here; whichever fires
// first wins and later calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateBiddingOpen {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}

	c.setStateLocked(StateBiddingClosed)
	c.result = c.computeLocked()
	c.setStateLocked(StateResultAnnounced)

	if c.result.Sold {
		c.log.Info("bidding closed",
			"winner", c.result.Winner,
			"clearing_price", c.result.ClearingPrice,
			"live_bids", c.result.LiveBids)
	} else {
		c.log.Info("bidding closed, no valid bids")
	}
	close(c.done)
}

// Done returns a channel closed once the result has been computed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Result returns the immutable outcome, or nil before the window closes.
func (c *Coordinator) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Finish marks the terminal state once result broadcasts have completed or
// exhausted their retry budgets.
func (c *Coordinator) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResultAnnounced {
		return
	}
	c.setStateLocked(StateDone)
	c.log.Info("auction done")
}

func (c *Coordinator) setStateLocked(s State) {
	c.state = s
	metrics.AuctionState.Set(float64(s))
}

// bestLocked returns the winning live bid: highest amount, ties broken by
// earliest arrival.
func (c *Coordinator) bestLocked() *Bid {
	var best *Bid
	for _, b := range c.bids {
		if best == nil ||
			b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.Arrival < best.Arrival) {
			best = b
		}
	}
	return best
}

func (c *Coordinator) computeLocked() *Result {
	winner := c.bestLocked()
	if winner == nil {
		return &Result{Sold: false, Item: *c.item}
	}

	price := winner.Amount
	if c.item.Type == SecondPrice {
		var second uint64
		found := false
		for _, b := range c.bids {
			if b == winner {
				continue
			}
			if !found || b.Amount > second {
				second = b.Amount
				found = true
			}
		}
		// With a single live bid the winner pays their own amount.
		if found {
			price = second
		}
	}

	return &Result{
		Sold:          true,
		Winner:        winner.Bidder,
		ClearingPrice: price,
		Item:          *c.item,
		LiveBids:      len(c.bids),
	}
}

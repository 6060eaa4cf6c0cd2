package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/auction"
	"github.com/flashbots/aucnet/handoff"
)

// lateBidGrace bounds the drain for bids that were already queued when the
// bidding window closed, so they still get an auction-closed rejection.
const lateBidGrace = 50 * time.Millisecond

// runRejectSession answers a peer that contacted the server after the
// bidding window closed, then drops it.
func (s *Server) runRejectSession(ch *arq.Channel, addr net.Addr) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	defer s.demux.Remove(addr)

	if _, err := auction.ReceiveEnvelope(ctx, ch); err != nil {
		return
	}
	rej := &auction.Rejection{Reason: auction.ReasonAuctionClosed}
	if err := auction.SendMessage(ctx, ch, auction.KindRejected, rej); err != nil {
		s.log.Debug("late peer unreachable", "addr", addr.String())
	}
}

// awaitJoin consumes payloads until the peer's join message arrives.
func (s *Server) awaitJoin(ctx context.Context, p *auction.Peer) error {
	for {
		env, err := auction.ReceiveEnvelope(ctx, p.Channel)
		if err != nil {
			return err
		}
		if env.Kind == auction.KindJoin {
			return nil
		}
		s.log.Warn("expected join", "addr", p.Addr.String(), "kind", env.Kind)
	}
}

// runSellerSession drives the seller's whole lifecycle: role assignment,
// item submission, result notification and, when the item sold, receiving
// the item-detail payload for handoff to the winner.
func (s *Server) runSellerSession(p *auction.Peer) {
	ctx := s.ctx
	log := s.log.With("addr", p.Addr.String(), "role", p.Role)

	if err := s.awaitJoin(ctx, p); err != nil {
		s.sellerGone(p, log, err)
		return
	}

	assigned := &auction.RoleAssigned{Role: p.Role, AuctionID: s.auctionID}
	if err := auction.SendMessage(ctx, p.Channel, auction.KindRoleAssigned, assigned); err != nil {
		s.sellerGone(p, log, err)
		return
	}

	// The seller may resubmit after an invalid announcement; only a
	// transport-level failure ends the exchange.
	for {
		env, err := auction.ReceiveEnvelope(ctx, p.Channel)
		if err != nil {
			s.sellerGone(p, log, err)
			return
		}

		ann, err := auction.DecodeBody[auction.ItemAnnouncement](env, auction.KindItemAnnouncement)
		if err != nil {
			receipt := &auction.ItemReceipt{Error: "expected item announcement"}
			if err := auction.SendMessage(ctx, p.Channel, auction.KindItemReceipt, receipt); err != nil {
				s.sellerGone(p, log, err)
				return
			}
			continue
		}

		if err := s.coord.SubmitItem(&ann.Item); err != nil {
			receipt := &auction.ItemReceipt{Error: err.Error()}
			if err := auction.SendMessage(ctx, p.Channel, auction.KindItemReceipt, receipt); err != nil {
				s.sellerGone(p, log, err)
				return
			}
			continue
		}

		if err := auction.SendMessage(ctx, p.Channel, auction.KindItemReceipt, &auction.ItemReceipt{Accepted: true}); err != nil {
			s.sellerGone(p, log, err)
			return
		}
		break
	}

	select {
	case <-s.coord.Done():
	case <-ctx.Done():
		return
	}
	res := s.coord.Result()

	broadcast := &auction.ResultBroadcast{
		Sold:          res.Sold,
		ItemName:      res.Item.Name,
		ClearingPrice: res.ClearingPrice,
		Winner:        res.Winner,
	}
	if err := auction.SendMessage(ctx, p.Channel, auction.KindResult, broadcast); err != nil {
		s.sellerGone(p, log, err)
		return
	}

	if !res.Sold {
		return
	}

	payload, err := handoff.Receive(ctx, p.Channel)
	if err != nil {
		log.Warn("receiving item payload from seller failed", "err", err)
		s.sellerGone(p, log, err)
		return
	}
	s.payloadOnce.Do(func() {
		s.itemPayload <- payload
		close(s.itemPayload)
	})
	log.Info("item payload received from seller", "bytes", len(payload))
}

// sellerGone handles a failed seller exchange. Before any item was
// submitted this is fatal to the auction; afterwards the seller is merely
// withdrawn and the winner's session is released without a payload.
func (s *Server) sellerGone(p *auction.Peer, log *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Warn("seller exchange failed", "err", err)
	s.removePeer(p)
	s.payloadOnce.Do(func() { close(s.itemPayload) })

	if s.coord.State() == auction.StateAwaitingItem {
		s.fatal(ErrSellerUnresponsive)
	}
}

// runBuyerSession drives one buyer: role assignment, the bid loop, the
// result broadcast and, for the winner, the payload handoff.
func (s *Server) runBuyerSession(p *auction.Peer) {
	ctx := s.ctx
	log := s.log.With("addr", p.Addr.String(), "role", p.Role)
	addr := p.Addr.String()

	if err := s.awaitJoin(ctx, p); err != nil {
		s.buyerGone(p, log, err)
		return
	}

	assigned := &auction.RoleAssigned{Role: p.Role, AuctionID: s.auctionID}
	if err := auction.SendMessage(ctx, p.Channel, auction.KindRoleAssigned, assigned); err != nil {
		s.buyerGone(p, log, err)
		return
	}

	if !s.bidLoop(ctx, p, log) {
		return
	}

	select {
	case <-s.coord.Done():
	case <-ctx.Done():
		return
	}
	res := s.coord.Result()
	won := res.Sold && res.Winner == addr

	broadcast := &auction.ResultBroadcast{
		Sold:          res.Sold,
		Won:           won,
		ItemName:      res.Item.Name,
		ClearingPrice: res.ClearingPrice,
		Winner:        res.Winner,
	}
	if err := auction.SendMessage(ctx, p.Channel, auction.KindResult, broadcast); err != nil {
		// Unreachable during broadcast is logged, never fatal.
		log.Warn("result broadcast failed", "err", err)
		s.removePeer(p)
		return
	}

	if !won {
		return
	}

	var payload []byte
	var ok bool
	select {
	case payload, ok = <-s.itemPayload:
	case <-ctx.Done():
		return
	}
	if !ok {
		log.Warn("no item payload available for winner")
		return
	}
	if err := handoff.Send(ctx, p.Channel, payload); err != nil {
		log.Warn("handoff to winner failed", "err", err)
		s.removePeer(p)
		return
	}
	log.Info("item payload delivered to winner", "bytes", len(payload))
}

// bidLoop answers bid submissions until the bidding window closes. It
// returns false when the buyer withdrew and the session should end.
func (s *Server) bidLoop(ctx context.Context, p *auction.Peer, log *slog.Logger) bool {
	bidCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.coord.Done():
			cancel()
		case <-bidCtx.Done():
		}
	}()

	for {
		env, err := auction.ReceiveEnvelope(bidCtx, p.Channel)
		if err != nil {
			if bidCtx.Err() != nil && ctx.Err() == nil && !errors.Is(err, arq.ErrChannelClosed) {
				// Bidding closed while waiting; answer any bids that
				// were already queued, then move on to the broadcast.
				s.drainLateBids(ctx, p)
				return true
			}
			s.buyerGone(p, log, err)
			return false
		}

		closed, ok := s.answerBid(ctx, p, log, env)
		if !ok {
			return false
		}
		if closed {
			return true
		}
	}
}

// answerBid validates one inbound message during the bidding window and
// responds. It reports whether the auction closed and whether the peer is
// still reachable.
func (s *Server) answerBid(ctx context.Context, p *auction.Peer, log *slog.Logger, env *auction.Envelope) (closed, ok bool) {
	bid, err := auction.DecodeBody[auction.BidSubmission](env, auction.KindBid)
	if err != nil {
		log.Warn("unexpected message during bidding", "kind", env.Kind)
		return false, true
	}

	placeErr := s.coord.PlaceBid(p.Addr.String(), bid.Amount)
	resp := &auction.BidResponse{Accepted: placeErr == nil}
	switch {
	case errors.Is(placeErr, auction.ErrAuctionClosed):
		resp.Reason = auction.ReasonAuctionClosed
	case errors.Is(placeErr, auction.ErrInvalidBid):
		resp.Reason = auction.ReasonInvalidBid
	}

	if err := auction.SendMessage(ctx, p.Channel, auction.KindBidResponse, resp); err != nil {
		s.buyerGone(p, log, err)
		return false, false
	}

	if errors.Is(placeErr, auction.ErrAuctionClosed) {
		return true, true
	}

	if placeErr == nil {
		if quota := s.bidderQuota(); quota > 0 && s.coord.BidCount() >= quota {
			log.Info("all expected bidders have bid, closing early")
			s.coord.Close()
		}
	}
	return false, true
}

// bidderQuota is the early-close threshold: the seller's announced count
// when present, else the server-configured one. Zero disables early close.
func (s *Server) bidderQuota() int {
	if item := s.coord.Item(); item != nil && item.ExpectedBidders > 0 {
		return item.ExpectedBidders
	}
	return s.cfg.ExpectedBidders
}

// drainLateBids rejects bids that raced the close of the bidding window.
func (s *Server) drainLateBids(ctx context.Context, p *auction.Peer) {
	drainCtx, cancel := context.WithTimeout(ctx, lateBidGrace)
	defer cancel()

	for {
		env, err := auction.ReceiveEnvelope(drainCtx, p.Channel)
		if err != nil {
			return
		}
		if env.Kind != auction.KindBid {
			continue
		}
		resp := &auction.BidResponse{Reason: auction.ReasonAuctionClosed}
		if err := auction.SendMessage(ctx, p.Channel, auction.KindBidResponse, resp); err != nil {
			return
		}
	}
}

// buyerGone withdraws an unresponsive buyer along with its live bid.
func (s *Server) buyerGone(p *auction.Peer, log *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Warn("buyer withdrawn", "err", err)
	s.coord.Withdraw(p.Addr.String())
	s.removePeer(p)
}

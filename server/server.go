package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/auction"
	"github.com/flashbots/aucnet/history"
)

// ErrSellerUnresponsive is the fatal condition for a seller that exhausted
// its retry budget before an item was ever submitted.
var ErrSellerUnresponsive = errors.New("server: seller unresponsive before item submission")

// Config parameterizes one auctioneer run.
type Config struct {
	// ListenAddr is the UDP address to bind; ignored when Conn is set.
	ListenAddr string

	// Conn optionally supplies a pre-bound packet socket (tests).
	Conn net.PacketConn

	// ARQ tunes the reliable channels; nil uses arq.DefaultConfig.
	ARQ *arq.Config

	// ExpectedBidders, when positive, closes bidding early once this many
	// live bids have been collected. The bidding-duration timer remains
	// the primary close trigger.
	ExpectedBidders int

	// History optionally records the completed auction.
	History history.Store

	Log *slog.Logger
}

// Server hosts exactly one auction for its lifetime.
type Server struct {
	cfg       *Config
	log       *slog.Logger
	auctionID string
	startedAt time.Time

	demux     *arq.Demux
	registrar *auction.Registrar
	coord     *auction.Coordinator

	ctx context.Context

	// itemPayload hands the seller's item-detail blob to the winner's
	// session. Closed without a value when the payload cannot be obtained.
	itemPayload chan []byte
	payloadOnce sync.Once

	mu       sync.Mutex
	sessions map[string]chan struct{}

	fatalc chan error
	donec  chan struct{}
}

// New binds the socket and prepares the server. A bind failure is fatal to
// the process and returned here.
func New(cfg *Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	conn := cfg.Conn
	if conn == nil {
		var err error
		conn, err = net.ListenPacket("udp", cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", cfg.ListenAddr, err)
		}
	}

	s := &Server{
		cfg:         cfg,
		log:         log,
		auctionID:   uuid.NewString(),
		startedAt:   time.Now(),
		registrar:   auction.NewRegistrar(log),
		coord:       auction.NewCoordinator(log),
		itemPayload: make(chan []byte, 1),
		sessions:    make(map[string]chan struct{}),
		fatalc:      make(chan error, 1),
		donec:       make(chan struct{}),
	}
	s.demux = arq.NewDemux(conn, cfg.ARQ, log, s.accept)

	log.Info("auctioneer ready", "auction_id", s.auctionID, "addr", conn.LocalAddr().String())
	return s, nil
}

// Addr returns the bound socket address.
func (s *Server) Addr() net.Addr { return s.demux.LocalAddr() }

// AuctionID returns this run's identifier.
func (s *Server) AuctionID() string { return s.auctionID }

// Run serves the auction until normal completion, a fatal condition, or
// context cancellation. Normal completion means the Done state was reached:
// the handoff finished or the no-winner path was taken.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	go func() {
		if err := s.demux.Run(); err != nil {
			s.fatal(fmt.Errorf("socket failed: %w", err))
		}
	}()
	go s.monitor(ctx)

	defer s.demux.Close()

	select {
	case err := <-s.fatalc:
		return err
	case <-s.donec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// accept runs on the demux read loop for each previously unseen source
// address. It must not block.
func (s *Server) accept(ch *arq.Channel, addr net.Addr) {
	peer, err := s.registrar.Register(addr, ch)
	if err != nil {
		go s.runRejectSession(ch, addr)
		return
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.sessions[addr.String()] = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if peer.Role == auction.RoleSeller {
			s.runSellerSession(peer)
		} else {
			s.runBuyerSession(peer)
		}
	}()
}

// allSessions snapshots the done channels of every registered session.
// Registration is closed before monitor calls this, so the snapshot is
// complete.
func (s *Server) allSessions() []chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make([]chan struct{}, 0, len(s.sessions))
	for _, ch := range s.sessions {
		done = append(done, ch)
	}
	return done
}

// monitor drives the post-bidding lifecycle: after the result is computed it
// stops registrations, waits for every session to wrap up its broadcast (the
// winner's handoff included) so that losing buyers keep their retry budget,
// then marks the auction done and records history.
func (s *Server) monitor(ctx context.Context) {
	select {
	case <-s.coord.Done():
	case <-ctx.Done():
		return
	}

	s.registrar.CloseRegistration()
	res := s.coord.Result()

	for _, done := range s.allSessions() {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}

	s.coord.Finish()
	s.recordHistory(res)
	close(s.donec)
}

func (s *Server) recordHistory(res *auction.Result) {
	if s.cfg.History == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := &history.Record{
		AuctionID:     s.auctionID,
		ItemName:      res.Item.Name,
		AuctionType:   res.Item.Type,
		Sold:          res.Sold,
		Winner:        res.Winner,
		ClearingPrice: res.ClearingPrice,
		LiveBids:      res.LiveBids,
		StartedAt:     s.startedAt,
		EndedAt:       time.Now(),
	}
	if err := s.cfg.History.SaveAuction(ctx, rec); err != nil {
		s.log.Error("recording auction history failed", "err", err)
	}
}

func (s *Server) fatal(err error) {
	select {
	case s.fatalc <- err:
	default:
	}
}

// removePeer withdraws a peer: its channel is closed and a later datagram
// from the same address is treated as a new registration attempt.
func (s *Server) removePeer(p *auction.Peer) {
	s.registrar.Remove(p.Addr)
	s.demux.Remove(p.Addr)
}

// Status is the admin surface snapshot.
type Status struct {
	AuctionID string        `json:"auction_id"`
	State     string        `json:"state"`
	Item      *auction.Item `json:"item,omitempty"`
	Peers     int           `json:"peers"`
	LiveBids  int           `json:"live_bids"`
}

// CurrentStatus reports the server's state for the admin API.
func (s *Server) CurrentStatus() Status {
	return Status{
		AuctionID: s.auctionID,
		State:     s.coord.State().String(),
		Item:      s.coord.Item(),
		Peers:     s.registrar.PeerCount(),
		LiveBids:  s.coord.BidCount(),
	}
}

// Result returns the auction outcome, or nil while bidding is open.
func (s *Server) Result() *auction.Result {
	return s.coord.Result()
}

package auction

import (
	"log/slog"
	"net"
	"sync"

	"github.com/flashbots/aucnet/arq"
)

// Peer is one registered network endpoint and its reliable channel.
type Peer struct {
	Addr    net.Addr
	Role    Role
	Channel *arq.Channel
}

// Registrar assigns roles to connecting peers: the first peer for this
// server lifetime becomes the seller, every later one a buyer. The seller
// slot is single-assignment and is reset only by constructing a fresh
// registrar for a new server run.
type Registrar struct {
	log *slog.Logger

	mu     sync.Mutex
	seller *Peer
	peers  map[string]*Peer
	closed bool
}

// NewRegistrar creates an empty registrar.
func NewRegistrar(log *slog.Logger) *Registrar {
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{
		log:   log,
		peers: make(map[string]*Peer),
	}
}

// Register records a new peer and assigns its role. After the bidding window
// closes, registration attempts fail with ErrAuctionClosed.
func (r *Registrar) Register(addr net.Addr, ch *arq.Channel) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrAuctionClosed
	}

	p := &Peer{Addr: addr, Role: RoleBuyer, Channel: ch}
	if r.seller == nil {
		p.Role = RoleSeller
		r.seller = p
	}
	r.peers[addr.String()] = p

	r.log.Info("peer registered", "addr", addr.String(), "role", p.Role)
	return p, nil
}

// CloseRegistration rejects all future registrations.
func (r *Registrar) CloseRegistration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Remove forgets a peer that withdrew or became unresponsive.
func (r *Registrar) Remove(addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, addr.String())
}

// Lookup returns the peer registered for addr.
func (r *Registrar) Lookup(addr string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[addr]
	return p, ok
}

// Seller returns the seller peer, or nil if none has connected yet.
func (r *Registrar) Seller() *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seller
}

// Buyers returns a snapshot of all registered buyers.
func (r *Registrar) Buyers() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	buyers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Role == RoleBuyer {
			buyers = append(buyers, p)
		}
	}
	return buyers
}

// PeerCount returns the number of currently registered peers.
func (r *Registrar) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

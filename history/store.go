package history

import (
	"context"
	"sync"
	"time"

	"github.com/flashbots/aucnet/auction"
)

// Record is one completed auction outcome.
type Record struct {
	AuctionID     string       `json:"auction_id"`
	ItemName      string       `json:"item_name"`
	AuctionType   auction.Type `json:"auction_type"`
	Sold          bool         `json:"sold"`
	Winner        string       `json:"winner,omitempty"`
	ClearingPrice uint64       `json:"clearing_price,omitempty"`
	LiveBids      int          `json:"live_bids"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
}

// Store persists auction outcomes.
type Store interface {
	SaveAuction(ctx context.Context, rec *Record) error
	RecentAuctions(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// MemoryStore keeps records in memory, newest first. Used in tests and as a
// reference Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	records []*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveAuction implements Store.
func (s *MemoryStore) SaveAuction(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.records = append([]*Record{&copied}, s.records...)
	return nil
}

// RecentAuctions implements Store.
func (s *MemoryStore) RecentAuctions(_ context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*Record, limit)
	copy(out, s.records[:limit])
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

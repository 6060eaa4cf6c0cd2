package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flashbots/aucnet/auction"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects using a lib/pq DSN, verifies connectivity and
// applies the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		auction_id VARCHAR(64) PRIMARY KEY,
		item_name VARCHAR(256) NOT NULL,
		auction_type VARCHAR(32) NOT NULL,
		sold BOOLEAN NOT NULL,
		winner VARCHAR(128),
		clearing_price BIGINT,
		live_bids INT NOT NULL,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		ended_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_ended ON auctions(ended_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveAuction implements Store.
func (s *PostgresStore) SaveAuction(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auctions
			(auction_id, item_name, auction_type, sold, winner, clearing_price, live_bids, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (auction_id) DO NOTHING`,
		rec.AuctionID, rec.ItemName, string(rec.AuctionType), rec.Sold,
		rec.Winner, int64(rec.ClearingPrice), rec.LiveBids, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("inserting auction record: %w", err)
	}
	return nil
}

// RecentAuctions implements Store.
func (s *PostgresStore) RecentAuctions(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT auction_id, item_name, auction_type, sold,
		       COALESCE(winner, ''), COALESCE(clearing_price, 0), live_bids, started_at, ended_at
		FROM auctions ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying auctions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec   Record
			typ   string
			price int64
		)
		if err := rows.Scan(&rec.AuctionID, &rec.ItemName, &typ, &rec.Sold,
			&rec.Winner, &price, &rec.LiveBids, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning auction record: %w", err)
		}
		rec.AuctionType = auction.Type(typ)
		rec.ClearingPrice = uint64(price)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

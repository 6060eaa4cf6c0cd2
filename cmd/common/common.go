// Package common provides shared utilities for the auction CLI commands.
//
// This package contains helper functions used by the auc-server and
// auc-client binaries to reduce code duplication:
//
//   - Structured logger construction from a level flag
//   - Reliable-channel configuration from timeout and retry flags
//   - History store construction from a postgres DSN
package common

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/history"
)

// NewLogger builds a text slog logger at the named level.
func NewLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// ARQConfig builds a channel configuration from the CLI flags. Zero values
// fall back to the defaults.
func ARQConfig(timeout time.Duration, maxRetries int) *arq.Config {
	return &arq.Config{
		RetransmitTimeout: timeout,
		MaxRetries:        maxRetries,
	}
}

// NewHistoryStore returns a postgres-backed store when dsn is set, and an
// in-memory store otherwise.
func NewHistoryStore(dsn string) (history.Store, error) {
	if dsn == "" {
		return history.NewMemoryStore(), nil
	}
	store, err := history.NewPostgresStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting history store: %w", err)
	}
	return store, nil
}

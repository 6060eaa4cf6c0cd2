package arq

import "time"

// Config provides tuning parameters for reliable channels.
type Config struct {
	// RetransmitTimeout is the fixed delay before an unacknowledged DATA
	// segment is retransmitted. It is deliberately not estimated from
	// round-trip samples: with a single segment in flight, a fixed timer
	// keeps the protocol simple.
	RetransmitTimeout time.Duration `json:"retransmit_timeout,string"`

	// MaxRetries is the number of retransmissions attempted after the
	// initial send before the peer is declared unresponsive.
	MaxRetries int `json:"max_retries"`

	// InboxSize is the per-channel buffer of delivered-but-unconsumed
	// payloads. When full, fresh DATA segments are dropped unacknowledged
	// and the peer's retransmission covers them.
	InboxSize int `json:"inbox_size"`
}

// DefaultConfig returns the production channel parameters.
func DefaultConfig() *Config {
	return &Config{
		RetransmitTimeout: 2 * time.Second,
		MaxRetries:        5,
		InboxSize:         16,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.RetransmitTimeout <= 0 {
		out.RetransmitTimeout = def.RetransmitTimeout
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.InboxSize <= 0 {
		out.InboxSize = def.InboxSize
	}
	return &out
}

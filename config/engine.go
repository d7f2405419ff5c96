package config

import "fmt"

// AuctionConfig defines bidding window and travel penalty settings.
type AuctionConfig struct {
	// WindowSeconds is the lifetime of a bidding window.
	WindowSeconds int `json:"window_seconds"`
	// PenaltyMinutes replaces travel times that cannot be computed.
	PenaltyMinutes float64 `json:"penalty_minutes"`
}

// SetDefaults applies sane defaults.
func (c *AuctionConfig) SetDefaults() {
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
	if c.PenaltyMinutes == 0 {
		c.PenaltyMinutes = 999
	}
}

// Validate checks mandatory fields.
func (c AuctionConfig) Validate() error {
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	if c.PenaltyMinutes <= 0 {
		return fmt.Errorf("penalty_minutes must be positive")
	}
	return nil
}

// RoutingConfig defines solver concurrency settings.
type RoutingConfig struct {
	// PoolSize bounds the number of concurrent route solves. Zero means
	// one solve per CPU.
	PoolSize int `json:"pool_size"`
}

func (c *RoutingConfig) SetDefaults() {}

// Validate checks mandatory fields.
func (c RoutingConfig) Validate() error {
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative")
	}
	return nil
}

// Package metrics defines the observability events emitted by the auction
// and routing engines. Sinks (Prometheus, InfluxDB) live in infra/metrics.
package metrics

import (
	"time"

	"github.com/foodbridge/dispatch/core/model"
)

// AuctionEvent captures a lifecycle transition of one auction.
type AuctionEvent struct {
	AuctionID       string
	PickupRequestID string
	Status          model.AuctionStatus
	WinnerID        string
	Bids            int
	Time            time.Time
}

// BidEvent captures a submitted or updated bid.
type BidEvent struct {
	AuctionID   string
	VolunteerID string
	Accepted    bool
	Time        time.Time
}

// SolveEvent captures one route-solver invocation.
type SolveEvent struct {
	PickupRequestID string
	Vehicles        int
	DropOffs        int
	Routes          int
	Feasible        bool
	Duration        time.Duration
	Time            time.Time
}

// ApplyEvent captures the inventory mutations of one routing execution.
type ApplyEvent struct {
	PickupRequestID string
	Deliveries      int
	Time            time.Time
}

// OracleFallbackEvent records a degraded travel-time lookup that was
// answered with the penalty value instead of provider data.
type OracleFallbackEvent struct {
	Origins      int
	Destinations int
	Reason       string
	Time         time.Time
}

// Sink records engine events for observability purposes.
type Sink interface {
	RecordAuction(ev AuctionEvent) error
	RecordBid(ev BidEvent) error
	RecordSolve(ev SolveEvent) error
	RecordApply(ev ApplyEvent) error
	RecordOracleFallback(ev OracleFallbackEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAuction(AuctionEvent) error               { return nil }
func (NopSink) RecordBid(BidEvent) error                       { return nil }
func (NopSink) RecordSolve(SolveEvent) error                   { return nil }
func (NopSink) RecordApply(ApplyEvent) error                   { return nil }
func (NopSink) RecordOracleFallback(OracleFallbackEvent) error { return nil }

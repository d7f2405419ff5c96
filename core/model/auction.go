package model

import "time"

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	// AuctionActive accepts bids until the window expires.
	AuctionActive AuctionStatus = "active"
	// AuctionClosed ended without a winner. Terminal.
	AuctionClosed AuctionStatus = "closed"
	// AuctionCompleted ended with a winner recorded. Terminal.
	AuctionCompleted AuctionStatus = "completed"
)

// Terminal reports whether no further transition may leave the status.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionClosed || s == AuctionCompleted
}

// Auction is a time-boxed bidding round for one pickup request.
type Auction struct {
	ID              string
	PickupRequestID string
	Status          AuctionStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
	WinnerID        string // volunteer ID, empty until completed
}

// Expired reports whether the bidding window has passed at the given instant.
func (a Auction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Bid is a volunteer's response to an auction. At most one bid exists per
// (auction, volunteer) pair; resubmitting overwrites the earlier bid.
type Bid struct {
	AuctionID   string
	VolunteerID string
	Accepted    bool
	Location    *Coordinate // required when accepted
	// EstimatedMinutes and Score are computed when the auction is
	// processed and stay nil for declined or unscored bids.
	EstimatedMinutes *float64
	Score            *float64
	SubmittedAt      time.Time
}

// AuctionResult is the outcome of processing an auction. WinnerID is empty
// when the auction closed without usable bids.
type AuctionResult struct {
	AuctionID string
	WinnerID  string
	Bids      []Bid
}

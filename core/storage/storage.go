// Package storage defines the persistence interface consumed by the
// auction and routing engines. Implementations live in infra/store so
// core packages stay free of driver dependencies.
package storage

import (
	"context"
	"errors"

	"github.com/foodbridge/dispatch/core/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleTransition is returned when an auction status compare-and-set
// does not match the expected current status.
var ErrStaleTransition = errors.New("stale auction transition")

// Store is the persistence interface consumed by the engine. The core
// never embeds storage logic; it only calls the operations below.
type Store interface {
	// Volunteers
	CreateVolunteer(ctx context.Context, v model.Volunteer) error
	GetVolunteer(ctx context.Context, id string) (model.Volunteer, error)
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
	SetVolunteerLocation(ctx context.Context, id string, loc model.Coordinate) error

	// Points
	CreatePickupPoint(ctx context.Context, p model.PickupPoint) error
	GetPickupPoint(ctx context.Context, id string) (model.PickupPoint, error)
	CreateDropOffPoint(ctx context.Context, p model.DropOffPoint) error
	ListDropOffPoints(ctx context.Context) ([]model.DropOffPoint, error)
	CreateStoragePoint(ctx context.Context, p model.StoragePoint) error
	GetStoragePoint(ctx context.Context, id string) (model.StoragePoint, error)

	// Item catalog and inventories
	CreateItemVariant(ctx context.Context, v model.ItemVariant) error
	GetItemVariant(ctx context.Context, id string) (model.ItemVariant, error)
	SetItemsAtPickupPoint(ctx context.Context, pointID, variantID string, quantity int) error
	ListItemsAtPickupPoint(ctx context.Context, pointID string) ([]model.ItemQuantity, error)
	// AddCarItems adds delta to the volunteer's holding of the variant,
	// creating the record when absent and delta is positive.
	AddCarItems(ctx context.Context, volunteerID, variantID string, delta int) error
	ListCarItems(ctx context.Context, volunteerID string) ([]model.ItemQuantity, error)
	AddStorageItems(ctx context.Context, storageID, variantID string, delta int) error
	ListStorageItems(ctx context.Context, storageID string) ([]model.ItemQuantity, error)

	// Pickup requests
	CreatePickupRequest(ctx context.Context, r model.PickupRequest) error
	GetPickupRequest(ctx context.Context, id string) (model.PickupRequest, error)
	// DeletePickupRequest removes the request and cascades to its
	// auctions and their bids.
	DeletePickupRequest(ctx context.Context, id string) error

	// Auctions
	CreateAuction(ctx context.Context, a model.Auction) error
	GetAuction(ctx context.Context, id string) (model.Auction, error)
	// ActiveAuctionForRequest returns the active auction for the pickup
	// request, or ErrNotFound when none exists.
	ActiveAuctionForRequest(ctx context.Context, requestID string) (model.Auction, error)
	ListActiveAuctions(ctx context.Context) ([]model.Auction, error)
	// TransitionAuction moves the auction from the expected status to the
	// next one, recording the winner when transitioning to completed.
	// Returns ErrStaleTransition if the current status differs from the
	// expected one; this is the concurrency control for Process.
	TransitionAuction(ctx context.Context, id string, from, to model.AuctionStatus, winnerID string) error

	// Bids
	UpsertBid(ctx context.Context, b model.Bid) error
	ListBids(ctx context.Context, auctionID string) ([]model.Bid, error)
	SetBidScore(ctx context.Context, auctionID, volunteerID string, minutes, score float64) error

	// WithTx runs fn against a transactional view of the store: either
	// every mutation fn performed commits, or none do.
	WithTx(ctx context.Context, fn func(Store) error) error
}

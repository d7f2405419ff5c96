package model

import (
	"fmt"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// String renders the coordinate in the canonical "lat,lon" form.
func (c Coordinate) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lon)
}

// Volunteer is a driver participating in pickup auctions.
type Volunteer struct {
	ID       string
	Name     string
	Karma    int      // reputation score, never negative
	Capacity float64  // vehicle capacity in volume units
	Location *Coordinate
}

// Validate checks that the volunteer record is sound.
func (v Volunteer) Validate() error {
	if v.Karma < 0 {
		return fmt.Errorf("karma must not be negative")
	}
	if v.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	return nil
}

// PickupPoint is a location where donated items wait for collection.
type PickupPoint struct {
	ID       string
	Name     string
	Location string // free text, decimal or DMS, parsed by core/geo
}

// DropOffPoint is a destination items can be delivered to.
type DropOffPoint struct {
	ID       string
	Name     string
	Location string
}

// StoragePoint is a warehouse with bounded capacity.
type StoragePoint struct {
	ID        string
	Name      string
	MaxVolume float64
	Location  string
}

// ItemVariant describes one kind of item and the volume of a single unit.
type ItemVariant struct {
	ID         string
	Name       string
	UnitVolume float64
}

// ItemQuantity is a (variant, count) pair used for pickup-point stock,
// vehicle contents and storage contents alike.
type ItemQuantity struct {
	VariantID string
	Quantity  int
}

// PickupRequest asks for the stock at a pickup point to be collected.
// Requests are immutable once created.
type PickupRequest struct {
	ID            string
	PickupPointID string
	CreatedAt     time.Time
}

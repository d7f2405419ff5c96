// Package routing plans capacitated delivery routes for the volunteers of
// a pickup request and applies the resulting inventory movements.
package routing

import (
	"context"
	"errors"

	"github.com/foodbridge/dispatch/core/faults"
	"github.com/foodbridge/dispatch/core/geo"
	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/storage"
	"github.com/foodbridge/dispatch/core/travel"
)

// Builder assembles the solver input for a pickup request: travel-time
// matrices, the flat per-unit volume list and per-volunteer capacities.
type Builder struct {
	store  storage.Store
	oracle travel.Oracle
	log    logger.Logger
}

// NewBuilder creates a Builder. The oracle is expected to absorb lookup
// failures; the builder never aborts on degraded travel times.
func NewBuilder(st storage.Store, oracle travel.Oracle, log logger.Logger) *Builder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Builder{store: st, oracle: oracle, log: log}
}

// Build returns the routing input for the pickup request and the given
// volunteer pool, or nil when no volunteer has known coordinates or no
// drop-off point has a parseable location. Volunteers without coordinates
// are dropped silently.
func (b *Builder) Build(ctx context.Context, pickupRequestID string, volunteers []model.Volunteer) (*model.RoutingInput, error) {
	req, err := b.store.GetPickupRequest(ctx, pickupRequestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, faults.Errorf(faults.NotFound, "pickup request %s: %v", pickupRequestID, err)
		}
		return nil, err
	}

	located := make([]model.Volunteer, 0, len(volunteers))
	origins := make([]model.Coordinate, 0, len(volunteers))
	for _, v := range volunteers {
		if v.Location == nil {
			continue
		}
		located = append(located, v)
		origins = append(origins, *v.Location)
	}
	if len(located) == 0 {
		return nil, nil
	}

	points, err := b.store.ListDropOffPoints(ctx)
	if err != nil {
		return nil, err
	}
	dropIDs := make([]string, 0, len(points))
	dropCoords := make([]model.Coordinate, 0, len(points))
	for _, p := range points {
		c, err := geo.Parse(p.Location)
		if err != nil {
			b.log.Warnf("drop-off %s location %q skipped: %v", p.ID, p.Location, err)
			continue
		}
		dropIDs = append(dropIDs, p.ID)
		dropCoords = append(dropCoords, c)
	}
	if len(dropIDs) == 0 {
		return nil, nil
	}

	volumes, itemID, variants, err := b.itemUnits(ctx, req.PickupPointID)
	if err != nil {
		return nil, err
	}

	distance, err := b.oracle.Matrix(ctx, origins, dropCoords)
	if err != nil {
		return nil, err
	}
	drops, err := b.oracle.Matrix(ctx, dropCoords, dropCoords)
	if err != nil {
		return nil, err
	}

	caps := make([]float64, len(located))
	volIDs := make([]string, len(located))
	contents := make([][]float64, len(located))
	for i, v := range located {
		caps[i] = v.Capacity
		volIDs[i] = v.ID
		contents[i] = make([]float64, variants)
	}

	return &model.RoutingInput{
		DistanceMatrix: distance,
		DropsMatrix:    drops,
		ItemVolumes:    volumes,
		CarCapacities:  caps,
		VolunteerIDs:   volIDs,
		DropOffIDs:     dropIDs,
		CarContents:    contents,
		ItemID:         itemID,
	}, nil
}

// itemUnits expands the pickup point's stock into one entry per physical
// unit and returns the single variant identity attributed to the whole
// routing run. Multi-variant stock is routed under the first variant
// found; see the limitation note on RoutingInput.
func (b *Builder) itemUnits(ctx context.Context, pickupPointID string) ([]float64, string, int, error) {
	records, err := b.store.ListItemsAtPickupPoint(ctx, pickupPointID)
	if err != nil {
		return nil, "", 0, err
	}
	var volumes []float64
	itemID := ""
	seen := map[string]struct{}{}
	for _, rec := range records {
		variant, err := b.store.GetItemVariant(ctx, rec.VariantID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				b.log.Warnf("item variant %s at pickup point %s unknown, skipped", rec.VariantID, pickupPointID)
				continue
			}
			return nil, "", 0, err
		}
		if itemID == "" {
			itemID = variant.ID
		}
		seen[variant.ID] = struct{}{}
		for i := 0; i < rec.Quantity; i++ {
			volumes = append(volumes, variant.UnitVolume)
		}
	}
	return volumes, itemID, len(seen), nil
}

package routing

import (
	"context"

	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/storage"
)

// Applier commits the inventory effects of solved routes: deliveries at
// drop-offs and the load each volunteer keeps in the car. All updates of
// one execution commit in a single transaction.
type Applier struct {
	store storage.Store
	log   logger.Logger
}

// NewApplier creates an Applier against the given store.
func NewApplier(st storage.Store, log logger.Logger) *Applier {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Applier{store: st, log: log}
}

// Apply walks every route and records a delivery wherever the load drops
// between consecutive stops, then adds the final load to the volunteer's
// car contents. Deliveries are attributed to the input's single item
// variant.
func (a *Applier) Apply(ctx context.Context, in model.RoutingInput, routes []model.Route) (model.ApplyResult, error) {
	res := model.ApplyResult{RetainedLoads: map[string]int{}}
	dropSet := make(map[string]bool, len(in.DropOffIDs))
	for _, id := range in.DropOffIDs {
		dropSet[id] = true
	}

	err := a.store.WithTx(ctx, func(tx storage.Store) error {
		for _, route := range routes {
			if len(route.Stops) < 2 {
				continue
			}
			for i := 1; i < len(route.Stops)-1; i++ {
				stop := route.Stops[i]
				if !dropSet[stop.LocationID] {
					continue
				}
				dropped := route.Stops[i-1].Load - stop.Load
				if dropped > 0 {
					res.Deliveries = append(res.Deliveries, model.Delivery{
						VolunteerID: route.VolunteerID,
						DropOffID:   stop.LocationID,
						VariantID:   in.ItemID,
						Quantity:    dropped,
					})
				}
			}
			final := route.Stops[len(route.Stops)-1].Load
			if err := tx.AddCarItems(ctx, route.VolunteerID, in.ItemID, final); err != nil {
				return err
			}
			res.RetainedLoads[route.VolunteerID] = final
		}
		return nil
	})
	if err != nil {
		return model.ApplyResult{}, err
	}
	a.log.Infof("applied %d deliveries across %d routes", len(res.Deliveries), len(routes))
	return res, nil
}

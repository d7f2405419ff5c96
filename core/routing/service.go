package routing

import (
	"context"
	"errors"
	"time"

	"github.com/foodbridge/dispatch/core/faults"
	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/storage"
	"github.com/foodbridge/dispatch/core/travel"
)

// Result is the outcome of one routing execution.
type Result struct {
	PickupRequestID string
	Routes          []model.Route
	Applied         model.ApplyResult
}

// Service orchestrates the routing flow: build the input, solve on the
// pool, apply the inventory effects.
type Service struct {
	store   storage.Store
	builder *Builder
	pool    *SolvePool
	applier *Applier
	log     logger.Logger
	sink    metrics.Sink
}

// NewService wires the routing pipeline. poolSize bounds concurrent
// solves; zero uses the CPU count.
func NewService(st storage.Store, oracle travel.Oracle, log logger.Logger, sink metrics.Sink, poolSize int) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Service{
		store:   st,
		builder: NewBuilder(st, oracle, log),
		pool:    NewSolvePool(NewSolver(log), poolSize),
		applier: NewApplier(st, log),
		log:     log,
		sink:    sink,
	}
}

// Execute runs the full routing flow for a pickup request using every
// volunteer with known coordinates. An infeasible solve yields a Result
// with no routes and nothing applied.
func (s *Service) Execute(ctx context.Context, pickupRequestID string) (*Result, error) {
	in, err := s.Snapshot(ctx, pickupRequestID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, pickupRequestID, in)
}

// ExecuteForAuction runs the routing flow using only the auction's
// accepted bidders, positioned at their bid coordinates.
func (s *Service) ExecuteForAuction(ctx context.Context, auctionID string) (*Result, error) {
	a, in, err := s.auctionSnapshot(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, a.PickupRequestID, in)
}

func (s *Service) run(ctx context.Context, pickupRequestID string, in *model.RoutingInput) (*Result, error) {
	start := time.Now()
	routes, err := s.pool.Solve(ctx, *in)
	if err != nil {
		return nil, err
	}
	feasible := len(routes) > 0
	if err := s.sink.RecordSolve(metrics.SolveEvent{
		PickupRequestID: pickupRequestID,
		Vehicles:        len(in.VolunteerIDs),
		DropOffs:        len(in.DropOffIDs),
		Routes:          len(routes),
		Feasible:        feasible,
		Duration:        time.Since(start),
		Time:            time.Now(),
	}); err != nil {
		s.log.Warnf("record solve event: %v", err)
	}
	if !feasible {
		s.log.Infof("no feasible routes for request %s, nothing to apply", pickupRequestID)
		return &Result{PickupRequestID: pickupRequestID, Routes: []model.Route{}}, nil
	}

	applied, err := s.applier.Apply(ctx, *in, routes)
	if err != nil {
		return nil, err
	}
	if err := s.sink.RecordApply(metrics.ApplyEvent{
		PickupRequestID: pickupRequestID,
		Deliveries:      len(applied.Deliveries),
		Time:            time.Now(),
	}); err != nil {
		s.log.Warnf("record apply event: %v", err)
	}
	return &Result{PickupRequestID: pickupRequestID, Routes: routes, Applied: applied}, nil
}

// Snapshot returns the routing input a request-scoped execution would
// solve, without solving it.
func (s *Service) Snapshot(ctx context.Context, pickupRequestID string) (*model.RoutingInput, error) {
	vols, err := s.store.ListVolunteers(ctx)
	if err != nil {
		return nil, err
	}
	in, err := s.builder.Build(ctx, pickupRequestID, vols)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, faults.New(faults.InvalidInput, "no locatable volunteers or drop-off points")
	}
	return in, nil
}

// SnapshotForAuction returns the routing input an auction-scoped
// execution would solve.
func (s *Service) SnapshotForAuction(ctx context.Context, auctionID string) (*model.RoutingInput, error) {
	_, in, err := s.auctionSnapshot(ctx, auctionID)
	return in, err
}

func (s *Service) auctionSnapshot(ctx context.Context, auctionID string) (model.Auction, *model.RoutingInput, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Auction{}, nil, faults.Errorf(faults.NotFound, "auction %s: %v", auctionID, err)
		}
		return model.Auction{}, nil, err
	}
	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return model.Auction{}, nil, err
	}

	var vols []model.Volunteer
	for _, b := range bids {
		if !b.Accepted || b.Location == nil {
			continue
		}
		v, err := s.store.GetVolunteer(ctx, b.VolunteerID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.log.Warnf("bidder %s unknown, skipped from routing", b.VolunteerID)
				continue
			}
			return model.Auction{}, nil, err
		}
		// The bid's coordinates override the volunteer's stored
		// location for this execution.
		loc := *b.Location
		v.Location = &loc
		vols = append(vols, v)
	}

	in, err := s.builder.Build(ctx, a.PickupRequestID, vols)
	if err != nil {
		return model.Auction{}, nil, err
	}
	if in == nil {
		return model.Auction{}, nil, faults.New(faults.InvalidInput, "no accepted bids with coordinates or no drop-off points")
	}
	return a, in, nil
}

// Package auction implements the time-boxed bidding round that assigns a
// pickup request to exactly one volunteer.
package auction

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foodbridge/dispatch/core/faults"
	"github.com/foodbridge/dispatch/core/geo"
	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/scoring"
	"github.com/foodbridge/dispatch/core/storage"
	"github.com/foodbridge/dispatch/core/travel"
	"github.com/foodbridge/dispatch/internal/eventbus"
)

// DefaultWindow is the bidding window length.
const DefaultWindow = 60 * time.Second

// Coordinator owns the auction state machine. Expiry is evaluated lazily
// against the wall clock on every SubmitBid or Process call; no timers run.
type Coordinator struct {
	store   storage.Store
	oracle  travel.Oracle
	window  time.Duration
	penalty float64
	clock   func() time.Time
	log     logger.Logger
	sink    metrics.Sink
	bus     *eventbus.Bus

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-auction, guards Process and Close
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWindow overrides the bidding window length.
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithPenalty overrides the travel-time penalty used when a bidder's
// travel time cannot be determined.
func WithPenalty(minutes float64) Option {
	return func(c *Coordinator) {
		if minutes > 0 {
			c.penalty = minutes
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.clock = now }
}

// WithSink attaches a metrics sink.
func WithSink(sink metrics.Sink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithBus attaches the event bus lifecycle events are published on.
func WithBus(bus *eventbus.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// New creates a Coordinator backed by the given store and travel oracle.
func New(st storage.Store, oracle travel.Oracle, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   st,
		oracle:  oracle,
		window:  DefaultWindow,
		penalty: travel.DefaultPenaltyMinutes,
		clock:   time.Now,
		log:     log,
		sink:    metrics.NopSink{},
		locks:   make(map[string]*sync.Mutex),
	}
	if c.log == nil {
		c.log = logger.NopLogger{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) lockFor(auctionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[auctionID] = l
	}
	return l
}

// releaseLock drops the per-auction mutex once the auction reached a
// terminal status. A late caller gets a fresh mutex, but the store CAS
// rejects any further transition.
func (c *Coordinator) releaseLock(auctionID string) {
	c.mu.Lock()
	delete(c.locks, auctionID)
	c.mu.Unlock()
}

// Create opens an auction for the pickup request. At most one active
// auction exists per request at a time.
func (c *Coordinator) Create(ctx context.Context, pickupRequestID string) (model.Auction, error) {
	if _, err := c.store.GetPickupRequest(ctx, pickupRequestID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Auction{}, faults.Errorf(faults.NotFound, "pickup request %s: %v", pickupRequestID, err)
		}
		return model.Auction{}, err
	}
	if existing, err := c.store.ActiveAuctionForRequest(ctx, pickupRequestID); err == nil {
		return model.Auction{}, faults.Errorf(faults.Conflict,
			"auction %s already active for request %s", existing.ID, pickupRequestID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Auction{}, err
	}

	now := c.clock()
	a := model.Auction{
		ID:              uuid.NewString(),
		PickupRequestID: pickupRequestID,
		Status:          model.AuctionActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.window),
	}
	if err := c.store.CreateAuction(ctx, a); err != nil {
		return model.Auction{}, err
	}
	c.log.Infof("auction %s opened for request %s, expires %s", a.ID, pickupRequestID, a.ExpiresAt.Format(time.RFC3339))
	c.emitAuction(a, 0)
	return a, nil
}

// SubmitBid records or overwrites the volunteer's bid. Accepted bids must
// carry coordinates; declined bids never do.
func (c *Coordinator) SubmitBid(ctx context.Context, auctionID, volunteerID string, accepted bool, coords *model.Coordinate) (model.Bid, error) {
	a, err := c.getAuction(ctx, auctionID)
	if err != nil {
		return model.Bid{}, err
	}
	now := c.clock()
	if a.Status != model.AuctionActive {
		return model.Bid{}, faults.Errorf(faults.InvalidState, "auction %s is %s", auctionID, a.Status)
	}
	if a.Expired(now) {
		return model.Bid{}, faults.Errorf(faults.InvalidState, "auction %s expired at %s", auctionID, a.ExpiresAt.Format(time.RFC3339))
	}
	if accepted && coords == nil {
		return model.Bid{}, faults.New(faults.InvalidInput, "accepted bid requires coordinates")
	}
	if !accepted {
		coords = nil
	}
	if _, err := c.store.GetVolunteer(ctx, volunteerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Bid{}, faults.Errorf(faults.NotFound, "volunteer %s: %v", volunteerID, err)
		}
		return model.Bid{}, err
	}

	b := model.Bid{
		AuctionID:   auctionID,
		VolunteerID: volunteerID,
		Accepted:    accepted,
		Location:    coords,
		SubmittedAt: now,
	}
	if err := c.store.UpsertBid(ctx, b); err != nil {
		return model.Bid{}, err
	}
	c.log.Debugw("bid recorded", map[string]any{
		"auction":   auctionID,
		"volunteer": volunteerID,
		"accepted":  accepted,
	})
	ev := metrics.BidEvent{AuctionID: auctionID, VolunteerID: volunteerID, Accepted: accepted, Time: now}
	if err := c.sink.RecordBid(ev); err != nil {
		c.log.Warnf("record bid event: %v", err)
	}
	if c.bus != nil {
		c.bus.Publish(ev)
	}
	return b, nil
}

// Process scores the accepted bids, records the winner and moves the
// auction to a terminal state. It succeeds at most once per auction: the
// active-status guard makes a second call fail with InvalidState.
func (c *Coordinator) Process(ctx context.Context, auctionID string) (model.AuctionResult, error) {
	l := c.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	a, err := c.getAuction(ctx, auctionID)
	if err != nil {
		return model.AuctionResult{}, err
	}
	if a.Status != model.AuctionActive {
		return model.AuctionResult{}, faults.Errorf(faults.InvalidState, "auction %s is %s", auctionID, a.Status)
	}

	bids, err := c.store.ListBids(ctx, auctionID)
	if err != nil {
		return model.AuctionResult{}, err
	}
	scoreable := make([]model.Bid, 0, len(bids))
	for _, b := range bids {
		// Declined bids and accepted bids without GPS cannot be ranked.
		if b.Accepted && b.Location != nil {
			scoreable = append(scoreable, b)
		}
	}
	if len(scoreable) == 0 {
		if err := c.transition(ctx, a, model.AuctionClosed, ""); err != nil {
			return model.AuctionResult{}, err
		}
		c.log.Infof("auction %s closed without usable bids", auctionID)
		return model.AuctionResult{AuctionID: auctionID}, nil
	}

	winnerID, err := c.selectWinner(ctx, a, scoreable)
	if err != nil {
		return model.AuctionResult{}, err
	}
	if err := c.transition(ctx, a, model.AuctionCompleted, winnerID); err != nil {
		return model.AuctionResult{}, err
	}
	c.log.Infof("auction %s completed, winner %s", auctionID, winnerID)

	final, err := c.store.ListBids(ctx, auctionID)
	if err != nil {
		return model.AuctionResult{}, err
	}
	return model.AuctionResult{AuctionID: auctionID, WinnerID: winnerID, Bids: final}, nil
}

// selectWinner computes travel times and scores for the scoreable bids and
// returns the volunteer with the strictly greatest score. Ties keep the
// first-seen bid, in submission order.
func (c *Coordinator) selectWinner(ctx context.Context, a model.Auction, scoreable []model.Bid) (string, error) {
	minutes := c.travelTimes(ctx, a, scoreable)

	type candidate struct {
		bid     model.Bid
		vol     model.Volunteer
		minutes float64
	}
	cands := make([]candidate, 0, len(scoreable))
	var maxMinutes, maxCapacity float64
	var maxKarma int
	for i, b := range scoreable {
		v, err := c.store.GetVolunteer(ctx, b.VolunteerID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.log.Warnf("bid from unknown volunteer %s skipped", b.VolunteerID)
				continue
			}
			return "", err
		}
		cands = append(cands, candidate{bid: b, vol: v, minutes: minutes[i]})
		if minutes[i] > maxMinutes {
			maxMinutes = minutes[i]
		}
		if v.Capacity > maxCapacity {
			maxCapacity = v.Capacity
		}
		if v.Karma > maxKarma {
			maxKarma = v.Karma
		}
	}
	if len(cands) == 0 {
		return "", faults.New(faults.InvalidState, "no scoreable bids with known volunteers")
	}

	var winnerID string
	best := math.Inf(-1)
	for _, cand := range cands {
		s := scoring.Score(cand.minutes, maxMinutes, cand.vol.Capacity, maxCapacity, cand.vol.Karma, maxKarma)
		if err := c.store.SetBidScore(ctx, a.ID, cand.bid.VolunteerID, cand.minutes, s); err != nil {
			return "", err
		}
		if s > best {
			best = s
			winnerID = cand.bid.VolunteerID
		}
	}
	return winnerID, nil
}

// travelTimes returns one travel time per scoreable bid, in minutes. Any
// failure resolves to the penalty value so the batch can still be ranked.
func (c *Coordinator) travelTimes(ctx context.Context, a model.Auction, scoreable []model.Bid) []float64 {
	minutes := make([]float64, len(scoreable))
	for i := range minutes {
		minutes[i] = c.penalty
	}

	req, err := c.store.GetPickupRequest(ctx, a.PickupRequestID)
	if err != nil {
		c.log.Warnf("pickup request %s unavailable, using penalty times: %v", a.PickupRequestID, err)
		return minutes
	}
	point, err := c.store.GetPickupPoint(ctx, req.PickupPointID)
	if err != nil {
		c.log.Warnf("pickup point %s unavailable, using penalty times: %v", req.PickupPointID, err)
		return minutes
	}
	dest, err := geo.Parse(point.Location)
	if err != nil {
		c.log.Warnf("pickup point %s location %q unparseable, using penalty times: %v", point.ID, point.Location, err)
		return minutes
	}

	origins := make([]model.Coordinate, len(scoreable))
	for i, b := range scoreable {
		origins[i] = *b.Location
	}
	m, err := c.oracle.Matrix(ctx, origins, []model.Coordinate{dest})
	if err != nil {
		c.log.Warnf("travel matrix for auction %s failed, using penalty times: %v", a.ID, err)
		return minutes
	}
	for i := range scoreable {
		if i < len(m) && len(m[i]) > 0 && !math.IsInf(m[i][0], 1) {
			minutes[i] = m[i][0]
		}
	}
	return minutes
}

// Close transitions an active auction to closed without a winner.
func (c *Coordinator) Close(ctx context.Context, auctionID string) error {
	l := c.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	a, err := c.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != model.AuctionActive {
		return faults.Errorf(faults.InvalidState, "auction %s is %s", auctionID, a.Status)
	}
	if err := c.transition(ctx, a, model.AuctionClosed, ""); err != nil {
		return err
	}
	c.log.Infof("auction %s closed manually", auctionID)
	return nil
}

// Get returns the auction.
func (c *Coordinator) Get(ctx context.Context, auctionID string) (model.Auction, error) {
	return c.getAuction(ctx, auctionID)
}

// ListActive returns every auction still in the active status. Expired
// auctions stay listed until a Process or Close call moves them on.
func (c *Coordinator) ListActive(ctx context.Context) ([]model.Auction, error) {
	return c.store.ListActiveAuctions(ctx)
}

// Bids returns the bids of the auction in first-submission order.
func (c *Coordinator) Bids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := c.getAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return c.store.ListBids(ctx, auctionID)
}

func (c *Coordinator) getAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	a, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Auction{}, faults.Errorf(faults.NotFound, "auction %s: %v", auctionID, err)
		}
		return model.Auction{}, err
	}
	return a, nil
}

// transition performs the status compare-and-set. A stale CAS means a
// concurrent call got there first and surfaces as InvalidState.
func (c *Coordinator) transition(ctx context.Context, a model.Auction, to model.AuctionStatus, winnerID string) error {
	err := c.store.TransitionAuction(ctx, a.ID, model.AuctionActive, to, winnerID)
	if err != nil {
		if errors.Is(err, storage.ErrStaleTransition) {
			return faults.Errorf(faults.InvalidState, "auction %s already transitioned", a.ID)
		}
		return err
	}
	c.releaseLock(a.ID)
	a.Status = to
	a.WinnerID = winnerID
	bids, bErr := c.store.ListBids(ctx, a.ID)
	if bErr != nil {
		bids = nil
	}
	c.emitAuction(a, len(bids))
	return nil
}

func (c *Coordinator) emitAuction(a model.Auction, bids int) {
	ev := metrics.AuctionEvent{
		AuctionID:       a.ID,
		PickupRequestID: a.PickupRequestID,
		Status:          a.Status,
		WinnerID:        a.WinnerID,
		Bids:            bids,
		Time:            c.clock(),
	}
	if err := c.sink.RecordAuction(ev); err != nil {
		c.log.Warnf("record auction event: %v", err)
	}
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

package store

import (
	"context"
	"sync"

	"github.com/foodbridge/dispatch/core/model"
)

// Memory is an in-process Store. Lists are returned in insertion order so
// callers get deterministic iteration, which the auction tie-break and the
// single-variant selection rely on.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{d: newData()}
}

type data struct {
	volunteers     map[string]model.Volunteer
	volunteerOrder []string

	pickupPoints  map[string]model.PickupPoint
	dropOffs      map[string]model.DropOffPoint
	dropOffOrder  []string
	storagePoints map[string]model.StoragePoint

	variants map[string]model.ItemVariant

	atPickup      map[string]map[string]int
	atPickupOrder map[string][]string
	carItems      map[string]map[string]int
	carItemOrder  map[string][]string
	storageItems  map[string]map[string]int
	storageOrder  map[string][]string

	requests map[string]model.PickupRequest
	auctions map[string]model.Auction
	bids     map[string][]model.Bid
}

func newData() *data {
	return &data{
		volunteers:    make(map[string]model.Volunteer),
		pickupPoints:  make(map[string]model.PickupPoint),
		dropOffs:      make(map[string]model.DropOffPoint),
		storagePoints: make(map[string]model.StoragePoint),
		variants:      make(map[string]model.ItemVariant),
		atPickup:      make(map[string]map[string]int),
		atPickupOrder: make(map[string][]string),
		carItems:      make(map[string]map[string]int),
		carItemOrder:  make(map[string][]string),
		storageItems:  make(map[string]map[string]int),
		storageOrder:  make(map[string][]string),
		requests:      make(map[string]model.PickupRequest),
		auctions:      make(map[string]model.Auction),
		bids:          make(map[string][]model.Bid),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.volunteers {
		c.volunteers[k] = v
	}
	c.volunteerOrder = append([]string(nil), d.volunteerOrder...)
	for k, v := range d.pickupPoints {
		c.pickupPoints[k] = v
	}
	for k, v := range d.dropOffs {
		c.dropOffs[k] = v
	}
	c.dropOffOrder = append([]string(nil), d.dropOffOrder...)
	for k, v := range d.storagePoints {
		c.storagePoints[k] = v
	}
	for k, v := range d.variants {
		c.variants[k] = v
	}
	c.atPickup = cloneNested(d.atPickup)
	c.atPickupOrder = cloneOrder(d.atPickupOrder)
	c.carItems = cloneNested(d.carItems)
	c.carItemOrder = cloneOrder(d.carItemOrder)
	c.storageItems = cloneNested(d.storageItems)
	c.storageOrder = cloneOrder(d.storageOrder)
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.auctions {
		c.auctions[k] = v
	}
	for k, v := range d.bids {
		c.bids[k] = append([]model.Bid(nil), v...)
	}
	return c
}

func cloneNested(in map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(in))
	for k, inner := range in {
		m := make(map[string]int, len(inner))
		for ik, iv := range inner {
			m[ik] = iv
		}
		out[k] = m
	}
	return out
}

func cloneOrder(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (d *data) addQuantity(items map[string]map[string]int, order map[string][]string, ownerID, variantID string, delta int) {
	inner, ok := items[ownerID]
	if !ok {
		if delta <= 0 {
			return
		}
		inner = make(map[string]int)
		items[ownerID] = inner
	}
	if _, present := inner[variantID]; !present {
		if delta <= 0 {
			return
		}
		order[ownerID] = append(order[ownerID], variantID)
	}
	inner[variantID] += delta
}

func (d *data) listQuantities(items map[string]map[string]int, order map[string][]string, ownerID string) []model.ItemQuantity {
	inner := items[ownerID]
	out := make([]model.ItemQuantity, 0, len(inner))
	for _, variantID := range order[ownerID] {
		out = append(out, model.ItemQuantity{VariantID: variantID, Quantity: inner[variantID]})
	}
	return out
}

// write runs fn with the write lock held.
func (m *Memory) write(fn func(*data) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.d)
}

func (m *Memory) read(fn func(*data) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.d)
}

func (m *Memory) CreateVolunteer(_ context.Context, v model.Volunteer) error {
	return m.write(func(d *data) error {
		if _, ok := d.volunteers[v.ID]; !ok {
			d.volunteerOrder = append(d.volunteerOrder, v.ID)
		}
		d.volunteers[v.ID] = v
		return nil
	})
}

func (m *Memory) GetVolunteer(_ context.Context, id string) (model.Volunteer, error) {
	var out model.Volunteer
	err := m.read(func(d *data) error {
		v, ok := d.volunteers[id]
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Memory) ListVolunteers(_ context.Context) ([]model.Volunteer, error) {
	var out []model.Volunteer
	err := m.read(func(d *data) error {
		for _, id := range d.volunteerOrder {
			out = append(out, d.volunteers[id])
		}
		return nil
	})
	return out, err
}

func (m *Memory) SetVolunteerLocation(_ context.Context, id string, loc model.Coordinate) error {
	return m.write(func(d *data) error {
		v, ok := d.volunteers[id]
		if !ok {
			return ErrNotFound
		}
		v.Location = &loc
		d.volunteers[id] = v
		return nil
	})
}

func (m *Memory) CreatePickupPoint(_ context.Context, p model.PickupPoint) error {
	return m.write(func(d *data) error {
		d.pickupPoints[p.ID] = p
		return nil
	})
}

func (m *Memory) GetPickupPoint(_ context.Context, id string) (model.PickupPoint, error) {
	var out model.PickupPoint
	err := m.read(func(d *data) error {
		p, ok := d.pickupPoints[id]
		if !ok {
			return ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (m *Memory) CreateDropOffPoint(_ context.Context, p model.DropOffPoint) error {
	return m.write(func(d *data) error {
		if _, ok := d.dropOffs[p.ID]; !ok {
			d.dropOffOrder = append(d.dropOffOrder, p.ID)
		}
		d.dropOffs[p.ID] = p
		return nil
	})
}

func (m *Memory) ListDropOffPoints(_ context.Context) ([]model.DropOffPoint, error) {
	var out []model.DropOffPoint
	err := m.read(func(d *data) error {
		for _, id := range d.dropOffOrder {
			out = append(out, d.dropOffs[id])
		}
		return nil
	})
	return out, err
}

func (m *Memory) CreateStoragePoint(_ context.Context, p model.StoragePoint) error {
	return m.write(func(d *data) error {
		d.storagePoints[p.ID] = p
		return nil
	})
}

func (m *Memory) GetStoragePoint(_ context.Context, id string) (model.StoragePoint, error) {
	var out model.StoragePoint
	err := m.read(func(d *data) error {
		p, ok := d.storagePoints[id]
		if !ok {
			return ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (m *Memory) CreateItemVariant(_ context.Context, v model.ItemVariant) error {
	return m.write(func(d *data) error {
		d.variants[v.ID] = v
		return nil
	})
}

func (m *Memory) GetItemVariant(_ context.Context, id string) (model.ItemVariant, error) {
	var out model.ItemVariant
	err := m.read(func(d *data) error {
		v, ok := d.variants[id]
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (m *Memory) SetItemsAtPickupPoint(_ context.Context, pointID, variantID string, quantity int) error {
	return m.write(func(d *data) error {
		inner, ok := d.atPickup[pointID]
		if !ok {
			inner = make(map[string]int)
			d.atPickup[pointID] = inner
		}
		if _, present := inner[variantID]; !present {
			d.atPickupOrder[pointID] = append(d.atPickupOrder[pointID], variantID)
		}
		inner[variantID] = quantity
		return nil
	})
}

func (m *Memory) ListItemsAtPickupPoint(_ context.Context, pointID string) ([]model.ItemQuantity, error) {
	var out []model.ItemQuantity
	err := m.read(func(d *data) error {
		out = d.listQuantities(d.atPickup, d.atPickupOrder, pointID)
		return nil
	})
	return out, err
}

func (m *Memory) AddCarItems(_ context.Context, volunteerID, variantID string, delta int) error {
	return m.write(func(d *data) error {
		d.addQuantity(d.carItems, d.carItemOrder, volunteerID, variantID, delta)
		return nil
	})
}

func (m *Memory) ListCarItems(_ context.Context, volunteerID string) ([]model.ItemQuantity, error) {
	var out []model.ItemQuantity
	err := m.read(func(d *data) error {
		out = d.listQuantities(d.carItems, d.carItemOrder, volunteerID)
		return nil
	})
	return out, err
}

func (m *Memory) AddStorageItems(_ context.Context, storageID, variantID string, delta int) error {
	return m.write(func(d *data) error {
		d.addQuantity(d.storageItems, d.storageOrder, storageID, variantID, delta)
		return nil
	})
}

func (m *Memory) ListStorageItems(_ context.Context, storageID string) ([]model.ItemQuantity, error) {
	var out []model.ItemQuantity
	err := m.read(func(d *data) error {
		out = d.listQuantities(d.storageItems, d.storageOrder, storageID)
		return nil
	})
	return out, err
}

func (m *Memory) CreatePickupRequest(_ context.Context, r model.PickupRequest) error {
	return m.write(func(d *data) error {
		d.requests[r.ID] = r
		return nil
	})
}

func (m *Memory) GetPickupRequest(_ context.Context, id string) (model.PickupRequest, error) {
	var out model.PickupRequest
	err := m.read(func(d *data) error {
		r, ok := d.requests[id]
		if !ok {
			return ErrNotFound
		}
		out = r
		return nil
	})
	return out, err
}

func (m *Memory) DeletePickupRequest(_ context.Context, id string) error {
	return m.write(func(d *data) error {
		if _, ok := d.requests[id]; !ok {
			return ErrNotFound
		}
		delete(d.requests, id)
		for aid, a := range d.auctions {
			if a.PickupRequestID == id {
				delete(d.auctions, aid)
				delete(d.bids, aid)
			}
		}
		return nil
	})
}

func (m *Memory) CreateAuction(_ context.Context, a model.Auction) error {
	return m.write(func(d *data) error {
		d.auctions[a.ID] = a
		return nil
	})
}

func (m *Memory) GetAuction(_ context.Context, id string) (model.Auction, error) {
	var out model.Auction
	err := m.read(func(d *data) error {
		a, ok := d.auctions[id]
		if !ok {
			return ErrNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (m *Memory) ActiveAuctionForRequest(_ context.Context, requestID string) (model.Auction, error) {
	var out model.Auction
	err := m.read(func(d *data) error {
		for _, a := range d.auctions {
			if a.PickupRequestID == requestID && a.Status == model.AuctionActive {
				out = a
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (m *Memory) ListActiveAuctions(_ context.Context) ([]model.Auction, error) {
	var out []model.Auction
	err := m.read(func(d *data) error {
		for _, a := range d.auctions {
			if a.Status == model.AuctionActive {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (m *Memory) TransitionAuction(_ context.Context, id string, from, to model.AuctionStatus, winnerID string) error {
	return m.write(func(d *data) error {
		a, ok := d.auctions[id]
		if !ok {
			return ErrNotFound
		}
		if a.Status != from {
			return ErrStaleTransition
		}
		a.Status = to
		a.WinnerID = winnerID
		d.auctions[id] = a
		return nil
	})
}

func (m *Memory) UpsertBid(_ context.Context, b model.Bid) error {
	return m.write(func(d *data) error {
		bids := d.bids[b.AuctionID]
		for i, existing := range bids {
			if existing.VolunteerID == b.VolunteerID {
				bids[i] = b // keep position: first submission order decides ties
				return nil
			}
		}
		d.bids[b.AuctionID] = append(bids, b)
		return nil
	})
}

func (m *Memory) ListBids(_ context.Context, auctionID string) ([]model.Bid, error) {
	var out []model.Bid
	err := m.read(func(d *data) error {
		out = append(out, d.bids[auctionID]...)
		return nil
	})
	return out, err
}

func (m *Memory) SetBidScore(_ context.Context, auctionID, volunteerID string, minutes, score float64) error {
	return m.write(func(d *data) error {
		bids := d.bids[auctionID]
		for i := range bids {
			if bids[i].VolunteerID == volunteerID {
				mCopy, sCopy := minutes, score
				bids[i].EstimatedMinutes = &mCopy
				bids[i].Score = &sCopy
				return nil
			}
		}
		return ErrNotFound
	})
}

// WithTx clones the state, runs fn against the clone and swaps it in on
// success. A failing fn leaves the store untouched.
func (m *Memory) WithTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := m.d.clone()
	tx := &Memory{d: clone}
	if err := fn(tx); err != nil {
		return err
	}
	m.d = tx.d
	return nil
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodbridge/dispatch/core/model"
)

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestSQLiteVolunteerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	loc := model.Coordinate{Lat: 48.137, Lon: 11.575}
	require.NoError(t, s.CreateVolunteer(ctx, model.Volunteer{ID: "v1", Name: "Ana", Karma: 7, Capacity: 40, Location: &loc}))
	require.NoError(t, s.CreateVolunteer(ctx, model.Volunteer{ID: "v2", Name: "Ben", Karma: 1, Capacity: 20}))

	v, err := s.GetVolunteer(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, v.Location)
	assert.Equal(t, loc, *v.Location)

	v, err = s.GetVolunteer(ctx, "v2")
	require.NoError(t, err)
	assert.Nil(t, v.Location)

	list, err := s.ListVolunteers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "v1", list[0].ID)

	assert.ErrorIs(t, s.SetVolunteerLocation(ctx, "ghost", loc), ErrNotFound)
}

func TestSQLiteAuctionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	now := time.Now()
	a := model.Auction{
		ID:              "a1",
		PickupRequestID: "r1",
		Status:          model.AuctionActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Minute),
	}
	require.NoError(t, s.CreateAuction(ctx, a))

	got, err := s.ActiveAuctionForRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.True(t, got.ExpiresAt.Equal(a.ExpiresAt))

	require.NoError(t, s.TransitionAuction(ctx, "a1", model.AuctionActive, model.AuctionCompleted, "v9"))
	assert.ErrorIs(t, s.TransitionAuction(ctx, "a1", model.AuctionActive, model.AuctionClosed, ""), ErrStaleTransition)
	assert.ErrorIs(t, s.TransitionAuction(ctx, "ghost", model.AuctionActive, model.AuctionClosed, ""), ErrNotFound)

	got, err = s.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AuctionCompleted, got.Status)
	assert.Equal(t, "v9", got.WinnerID)

	_, err = s.ActiveAuctionForRequest(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteBidUpsertAndScore(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	now := time.Now()
	require.NoError(t, s.UpsertBid(ctx, model.Bid{AuctionID: "a1", VolunteerID: "v1", Accepted: true, SubmittedAt: now}))
	require.NoError(t, s.UpsertBid(ctx, model.Bid{AuctionID: "a1", VolunteerID: "v2", Accepted: true, SubmittedAt: now}))
	loc := model.Coordinate{Lat: 1, Lon: 2}
	require.NoError(t, s.UpsertBid(ctx, model.Bid{AuctionID: "a1", VolunteerID: "v1", Accepted: false, Location: &loc, SubmittedAt: now.Add(time.Second)}))

	require.NoError(t, s.SetBidScore(ctx, "a1", "v2", 12.5, 0.7))
	assert.ErrorIs(t, s.SetBidScore(ctx, "a1", "ghost", 1, 1), ErrNotFound)

	bids, err := s.ListBids(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "v1", bids[0].VolunteerID)
	assert.False(t, bids[0].Accepted)
	require.NotNil(t, bids[0].Location)
	assert.Equal(t, loc, *bids[0].Location)
	require.NotNil(t, bids[1].Score)
	assert.Equal(t, 0.7, *bids[1].Score)
	require.NotNil(t, bids[1].EstimatedMinutes)
	assert.Equal(t, 12.5, *bids[1].EstimatedMinutes)
}

func TestSQLiteInventoryDeltas(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.AddCarItems(ctx, "v1", "bread", -2))
	items, err := s.ListCarItems(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.AddCarItems(ctx, "v1", "bread", 5))
	require.NoError(t, s.AddCarItems(ctx, "v1", "bread", -2))
	require.NoError(t, s.AddStorageItems(ctx, "st1", "bread", 3))
	require.NoError(t, s.SetItemsAtPickupPoint(ctx, "p1", "bread", 9))
	require.NoError(t, s.SetItemsAtPickupPoint(ctx, "p1", "bread", 4))

	items, err = s.ListCarItems(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	items, err = s.ListStorageItems(ctx, "st1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	items, err = s.ListItemsAtPickupPoint(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
}

func TestSQLiteDeleteRequestCascades(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	now := time.Now()
	require.NoError(t, s.CreatePickupRequest(ctx, model.PickupRequest{ID: "r1", PickupPointID: "p1", CreatedAt: now}))
	require.NoError(t, s.CreateAuction(ctx, model.Auction{ID: "a1", PickupRequestID: "r1", Status: model.AuctionActive, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.UpsertBid(ctx, model.Bid{AuctionID: "a1", VolunteerID: "v1", Accepted: true, SubmittedAt: now}))

	require.NoError(t, s.DeletePickupRequest(ctx, "r1"))
	assert.ErrorIs(t, s.DeletePickupRequest(ctx, "r1"), ErrNotFound)

	_, err := s.GetAuction(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	bids, err := s.ListBids(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestSQLiteWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		if err := tx.AddCarItems(ctx, "v1", "bread", 5); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := s.ListCarItems(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

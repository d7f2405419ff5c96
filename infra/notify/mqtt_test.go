package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/internal/eventbus"
)

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages map[string][][]byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(topic string, payload []byte, _ byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

func (m *MockPublisher) Close() {}

func (m *MockPublisher) get(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Messages[topic]
}

func TestNotifierPublishesAuctionEvents(t *testing.T) {
	pub := NewMockPublisher()
	bus := eventbus.New()
	n := NewNotifier(pub, "foodbridge", 1, nil)
	n.Run(bus)

	bus.Publish(metrics.AuctionEvent{AuctionID: "a1", Status: model.AuctionCompleted, WinnerID: "v1"})
	bus.Publish(metrics.BidEvent{AuctionID: "a1", VolunteerID: "v1", Accepted: true})

	require.Eventually(t, func() bool {
		return len(pub.get("foodbridge/auctions/a1/status")) == 1 &&
			len(pub.get("foodbridge/auctions/a1/bids")) == 1
	}, time.Second, 10*time.Millisecond)

	n.Stop()

	var got metrics.AuctionEvent
	require.NoError(t, json.Unmarshal(pub.get("foodbridge/auctions/a1/status")[0], &got))
	assert.Equal(t, "a1", got.AuctionID)
	assert.Equal(t, model.AuctionCompleted, got.Status)
	assert.Equal(t, "v1", got.WinnerID)
}

func TestNotifierIgnoresUnknownEvents(t *testing.T) {
	pub := NewMockPublisher()
	bus := eventbus.New()
	n := NewNotifier(pub, "", 0, nil)
	n.Run(bus)

	bus.Publish("not an engine event")
	bus.Publish(metrics.BidEvent{AuctionID: "a1", VolunteerID: "v1"})

	require.Eventually(t, func() bool {
		return len(pub.get("dispatch/auctions/a1/bids")) == 1
	}, time.Second, 10*time.Millisecond)
	n.Stop()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.Messages, 1)
}

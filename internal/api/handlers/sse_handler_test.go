package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/api/handlers"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
)

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.InsuranceEvent
	published   []*entities.InsuranceEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.InsuranceEvent),
		published:   make([]*entities.InsuranceEvent, 0),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.InsuranceEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	channels := append([]chan *entities.InsuranceEvent(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.InsuranceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.InsuranceEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string][]chan *entities.InsuranceEvent)
	m.mu.Unlock()
	for _, channels := range subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	return nil
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[channel])
}

// runStream serves one SSE request until publish has run, then disconnects the client
// and returns the full response body
func runStream(t *testing.T, bus *MockEventBus, channel string, serve func(*httptest.ResponseRecorder, context.Context), publish func()) (*httptest.ResponseRecorder, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		serve(w, ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount(channel) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, bus.SubscriberCount(channel), "handler never subscribed")

	publish()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	return w, w.Body.String()
}

func TestSSEHandler_StreamClaimUpdates(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)
	channel := providers.GetClaimChannel("claim-1")

	w, body := runStream(t, bus, channel, func(w *httptest.ResponseRecorder, ctx context.Context) {
		req := httptest.NewRequest("GET", "/api/claims/claim-1/stream", nil).WithContext(ctx)
		req.SetPathValue("id", "claim-1")
		handler.StreamClaimUpdates(w, req)
	}, func() {
		claim := &entities.InsuranceClaim{ID: "claim-1", ClaimNumber: "CLM-20260101-AAAAAAAA", Status: entities.ClaimStatusApproved}
		_ = bus.Publish(context.Background(), channel,
			entities.NewClaimEvent(entities.InsuranceEventClaimStatusChanged, claim, entities.ClaimStatusUnderReview, nil))
	})

	assert.Equal(t, "text/event-stream", w.Result().Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Result().Header.Get("Cache-Control"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: claim_status_changed")
	assert.Contains(t, body, `"previous_status":"UNDER_REVIEW"`)
	assert.Equal(t, 0, handler.GetClientCount())
}

func TestSSEHandler_StreamAllClaims_FiltersByProvider(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)

	_, body := runStream(t, bus, providers.EventChannelClaimUpdates, func(w *httptest.ResponseRecorder, ctx context.Context) {
		req := httptest.NewRequest("GET", "/api/claims/stream?provider_id=prov-1", nil).WithContext(ctx)
		handler.StreamAllClaims(w, req)
	}, func() {
		for _, c := range []*entities.InsuranceClaim{
			{ID: "mine", ProviderID: "prov-1", Status: entities.ClaimStatusPending},
			{ID: "theirs", ProviderID: "prov-2", Status: entities.ClaimStatusPending},
		} {
			_ = bus.Publish(context.Background(), providers.EventChannelClaimUpdates,
				entities.NewClaimEvent(entities.InsuranceEventClaimCreated, c, "", nil))
		}
	})

	assert.Equal(t, 1, strings.Count(body, "event: claim_created"))
	assert.Contains(t, body, `"claim_id":"mine"`)
	assert.NotContains(t, body, `"claim_id":"theirs"`)
}

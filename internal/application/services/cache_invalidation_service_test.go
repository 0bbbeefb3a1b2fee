package services_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
)

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.RWMutex
	data    map[string][]byte
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{
		data:    make(map[string][]byte),
		deleted: make([]string, 0),
	}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, nil
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Deleted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.InsuranceEvent
	published   map[string][]*entities.InsuranceEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.InsuranceEvent),
		published:   make(map[string][]*entities.InsuranceEvent),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.InsuranceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], event)
	for _, ch := range m.subscribers[channel] {
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
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channel, chans := range m.subscribers {
		for _, ch := range chans {
			close(ch)
		}
		delete(m.subscribers, channel)
	}
	return nil
}

func (m *MockEventBus) Published(channel string) []*entities.InsuranceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.InsuranceEvent(nil), m.published[channel]...)
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[channel])
}

func TestCacheInvalidationService_Start(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)

	if err := service.Start(); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	if got := eventBus.SubscriberCount(providers.EventChannelPlanUpdates); got != 1 {
		t.Errorf("Expected 1 subscriber on %s, got %d", providers.EventChannelPlanUpdates, got)
	}

	service.Stop()
}

func TestCacheInvalidationService_StopWithoutStart(t *testing.T) {
	service := services.NewCacheInvalidationService(NewMockCacheProvider(), NewMockEventBus())
	service.Stop()
}

func TestCacheInvalidationService_PlanEventEvictsPlan(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)

	if err := service.Start(); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}
	defer service.Stop()

	ctx := context.Background()
	if err := cache.Set(ctx, providers.PlanCacheKey("plan-1"), []byte("data"), 300); err != nil {
		t.Fatalf("Failed to seed cache data: %v", err)
	}
	if err := cache.Set(ctx, providers.PlanCacheKey("plan-2"), []byte("data"), 300); err != nil {
		t.Fatalf("Failed to seed cache data: %v", err)
	}

	event := entities.NewPlanEvent(&entities.InsurancePlan{ID: "plan-1", ProviderID: "prov-1"})
	if err := eventBus.Publish(ctx, providers.EventChannelPlanUpdates, event); err != nil {
		t.Fatalf("Failed to publish plan event: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := cache.Exists(ctx, providers.PlanCacheKey("plan-1")); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ok, _ := cache.Exists(ctx, providers.PlanCacheKey("plan-1")); ok {
		t.Error("Expected plan-1 to be evicted")
	}
	if ok, _ := cache.Exists(ctx, providers.PlanCacheKey("plan-2")); !ok {
		t.Error("Expected plan-2 to stay cached")
	}
}

func TestCacheInvalidationService_InvalidateAllPlans(t *testing.T) {
	cache := NewMockCacheProvider()
	service := services.NewCacheInvalidationService(cache, NewMockEventBus())

	ctx := context.Background()
	for _, key := range []string{providers.PlanCacheKey("a"), providers.PlanCacheKey("b"), "other:key"} {
		if err := cache.Set(ctx, key, []byte("data"), 300); err != nil {
			t.Fatalf("Failed to seed cache data: %v", err)
		}
	}

	if err := service.InvalidateAllPlans(ctx); err != nil {
		t.Fatalf("Failed to invalidate plan caches: %v", err)
	}

	if got := len(cache.Deleted()); got != 2 {
		t.Errorf("Expected 2 deleted keys, got %d", got)
	}
	if ok, _ := cache.Exists(ctx, "other:key"); !ok {
		t.Error("Expected unrelated key to survive")
	}
}

func TestCacheInvalidationService_ProviderEventDropsCachedResponses(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)

	if err := service.Start(); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}
	defer service.Stop()

	ctx := context.Background()
	response := providers.InsuranceHTTPCachePrefix + "abc123"
	for _, key := range []string{response, providers.PlanCacheKey("plan-1")} {
		if err := cache.Set(ctx, key, []byte("data"), 300); err != nil {
			t.Fatalf("Failed to seed cache data: %v", err)
		}
	}

	event := entities.NewProviderEvent(&entities.InsuranceProvider{ID: "prov-1"})
	if err := eventBus.Publish(ctx, providers.EventChannelPlanUpdates, event); err != nil {
		t.Fatalf("Failed to publish provider event: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := cache.Exists(ctx, response); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ok, _ := cache.Exists(ctx, response); ok {
		t.Error("Expected cached response to be dropped")
	}
	if ok, _ := cache.Exists(ctx, providers.PlanCacheKey("plan-1")); !ok {
		t.Error("Expected cached plan to survive a provider event")
	}
}

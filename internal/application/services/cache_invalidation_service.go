package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
)

// CacheInvalidationService evicts cached plans when plan or provider events arrive.
// It keeps instances that share Redis consistent with writes made elsewhere.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelPlanUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to plan updates: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelPlanUpdates).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.InsuranceEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.InsuranceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch event.EventType {
	case entities.InsuranceEventPlanUpdated:
		if event.PlanID != "" {
			if err := s.InvalidatePlan(ctx, event.PlanID); err != nil {
				log.Warn().Err(err).Str("plan_id", event.PlanID).Msg("failed to invalidate plan cache")
			}
		}
	case entities.InsuranceEventProviderUpdated:
		// cached plans embed no provider data, only catalogue responses go stale
	default:
		return
	}

	if err := s.InvalidateResponses(ctx); err != nil {
		log.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("failed to invalidate cached responses")
	}
}

// InvalidatePlan removes one cached plan
func (s *CacheInvalidationService) InvalidatePlan(ctx context.Context, planID string) error {
	if err := s.cache.Delete(ctx, providers.PlanCacheKey(planID)); err != nil {
		return fmt.Errorf("failed to invalidate plan %s: %w", planID, err)
	}
	log.Debug().Str("plan_id", planID).Msg("invalidated plan cache")
	return nil
}

// InvalidateAllPlans removes every cached plan. Used after bulk imports.
func (s *CacheInvalidationService) InvalidateAllPlans(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, providers.PlanCachePattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", providers.PlanCachePattern, err)
	}
	log.Info().Str("pattern", providers.PlanCachePattern).Msg("invalidated plan caches")
	return nil
}

// InvalidateResponses drops every cached insurance catalogue HTTP response
func (s *CacheInvalidationService) InvalidateResponses(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, providers.InsuranceHTTPCachePattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", providers.InsuranceHTTPCachePattern, err)
	}
	log.Debug().Str("pattern", providers.InsuranceHTTPCachePattern).Msg("invalidated cached responses")
	return nil
}

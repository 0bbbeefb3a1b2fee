package database

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
)

// CachedPlanAdapter wraps a PlanRepository with a read-through cache of plans and their
// coverage items. Writes go straight to the wrapped repository and evict the plan entry.
type CachedPlanAdapter struct {
	repositories.PlanRepository
	cache   providers.CacheProvider
	ttl     int
	metrics *observability.Metrics
}

// NewCachedPlanAdapter creates a new cached plan adapter. A ttl of 0 disables caching.
func NewCachedPlanAdapter(adapter repositories.PlanRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) repositories.PlanRepository {
	if ttlSeconds <= 0 {
		return adapter
	}
	return &CachedPlanAdapter{
		PlanRepository: adapter,
		cache:          cache,
		ttl:            ttlSeconds,
		metrics:        metrics,
	}
}

// GetWithCoverage retrieves a plan with coverage items, serving from cache when possible
func (a *CachedPlanAdapter) GetWithCoverage(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	cacheKey := providers.PlanCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var plan entities.InsurancePlan
		if err := json.Unmarshal(cached, &plan); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "plan")
			return &plan, nil
		}
		log.Warn().Err(err).Str("plan_id", id).Msg("Failed to unmarshal cached plan")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "plan")

	plan, err := a.PlanRepository.GetWithCoverage(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(plan); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("plan_id", id).Msg("Failed to cache plan")
		}
	}

	return plan, nil
}

// Update updates a plan and evicts its cache entry
func (a *CachedPlanAdapter) Update(ctx context.Context, plan *entities.InsurancePlan) error {
	if err := a.PlanRepository.Update(ctx, plan); err != nil {
		return err
	}
	a.evict(ctx, plan.ID)
	return nil
}

// SetActive toggles the active flag and evicts the cache entry
func (a *CachedPlanAdapter) SetActive(ctx context.Context, id string, active bool) error {
	if err := a.PlanRepository.SetActive(ctx, id, active); err != nil {
		return err
	}
	a.evict(ctx, id)
	return nil
}

// AddCoverageItem creates an override and evicts the owning plan
func (a *CachedPlanAdapter) AddCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	if err := a.PlanRepository.AddCoverageItem(ctx, item); err != nil {
		return err
	}
	a.evict(ctx, item.PlanID)
	return nil
}

// UpdateCoverageItem updates an override and evicts the owning plan
func (a *CachedPlanAdapter) UpdateCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	if err := a.PlanRepository.UpdateCoverageItem(ctx, item); err != nil {
		return err
	}
	a.evict(ctx, item.PlanID)
	return nil
}

// RemoveCoverageItem deletes an override and evicts the owning plan
func (a *CachedPlanAdapter) RemoveCoverageItem(ctx context.Context, id string) error {
	item, err := a.PlanRepository.GetCoverageItem(ctx, id)
	if err != nil {
		return err
	}
	if err := a.PlanRepository.RemoveCoverageItem(ctx, id); err != nil {
		return err
	}
	a.evict(ctx, item.PlanID)
	return nil
}

func (a *CachedPlanAdapter) evict(ctx context.Context, planID string) {
	if err := a.cache.Delete(ctx, providers.PlanCacheKey(planID)); err != nil {
		log.Warn().Err(err).Str("plan_id", planID).Msg("Failed to evict cached plan")
	}
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

// InsuranceService manages insurance providers, their plans and coverage overrides
type InsuranceService struct {
	providerRepo repositories.InsuranceRepository
	planRepo     repositories.PlanRepository
	eventBus     providers.EventBus
	now          func() time.Time
}

// NewInsuranceService creates a new insurance service. eventBus may be nil.
func NewInsuranceService(providerRepo repositories.InsuranceRepository, planRepo repositories.PlanRepository, eventBus providers.EventBus) *InsuranceService {
	return &InsuranceService{
		providerRepo: providerRepo,
		planRepo:     planRepo,
		eventBus:     eventBus,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateProvider validates and stores a new provider. Codes are upper-cased and unique.
func (s *InsuranceService) CreateProvider(ctx context.Context, provider *entities.InsuranceProvider) error {
	provider.Code = normalizeCode(provider.Code)
	if err := validateProvider(provider); err != nil {
		return err
	}

	existing, err := s.providerRepo.GetByCode(ctx, provider.Code)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return apperrors.NewConflictError("insurance provider code " + provider.Code + " already exists")
	}

	now := s.now()
	provider.ID = uuid.New().String()
	provider.CreatedAt = now
	provider.UpdatedAt = now
	if err := s.providerRepo.Create(ctx, provider); err != nil {
		return err
	}

	s.publish(ctx, entities.NewProviderEvent(provider))
	return nil
}

// GetProvider retrieves a provider by ID
func (s *InsuranceService) GetProvider(ctx context.Context, id string) (*entities.InsuranceProvider, error) {
	return s.providerRepo.GetByID(ctx, id)
}

// ListProviders lists providers
func (s *InsuranceService) ListProviders(ctx context.Context, filter repositories.InsuranceFilter) ([]*entities.InsuranceProvider, error) {
	return s.providerRepo.List(ctx, filter)
}

// UpdateProvider rewrites a provider's mutable fields. The code cannot change and
// activation goes through SetProviderActive.
func (s *InsuranceService) UpdateProvider(ctx context.Context, provider *entities.InsuranceProvider) (*entities.InsuranceProvider, error) {
	existing, err := s.providerRepo.GetByID(ctx, provider.ID)
	if err != nil {
		return nil, err
	}

	if code := normalizeCode(provider.Code); code != "" && code != existing.Code {
		return nil, apperrors.NewValidationError("insurance provider code cannot be changed")
	}
	provider.Code = existing.Code
	if err := validateProvider(provider); err != nil {
		return nil, err
	}

	provider.IsActive = existing.IsActive
	provider.CreatedAt = existing.CreatedAt
	provider.UpdatedAt = s.now()
	if err := s.providerRepo.Update(ctx, provider); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewProviderEvent(provider))
	return provider, nil
}

// SetProviderActive activates or deactivates a provider
func (s *InsuranceService) SetProviderActive(ctx context.Context, id string, active bool) (*entities.InsuranceProvider, error) {
	if err := s.providerRepo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	provider, err := s.providerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entities.NewProviderEvent(provider))
	return provider, nil
}

// DeleteProvider deactivates a provider. Claims keep referencing it, so rows are never removed.
func (s *InsuranceService) DeleteProvider(ctx context.Context, id string) error {
	_, err := s.SetProviderActive(ctx, id, false)
	return err
}

// CreatePlan stores a new plan under an existing provider
func (s *InsuranceService) CreatePlan(ctx context.Context, plan *entities.InsurancePlan) error {
	plan.Code = normalizeCode(plan.Code)
	if err := validatePlan(plan); err != nil {
		return err
	}

	if _, err := s.providerRepo.GetByID(ctx, plan.ProviderID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewValidationError("insurance provider " + plan.ProviderID + " does not exist")
		}
		return err
	}

	existing, err := s.planRepo.GetByCode(ctx, plan.ProviderID, plan.Code)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return apperrors.NewConflictError("plan code " + plan.Code + " already exists for this provider")
	}

	now := s.now()
	plan.ID = uuid.New().String()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.CoverageItems = nil
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return err
	}

	s.publish(ctx, entities.NewPlanEvent(plan))
	return nil
}

// GetPlan retrieves a plan with its coverage items
func (s *InsuranceService) GetPlan(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	return s.planRepo.GetWithCoverage(ctx, id)
}

// ListPlans lists the plans of a provider
func (s *InsuranceService) ListPlans(ctx context.Context, providerID string, filter repositories.PlanFilter) ([]*entities.InsurancePlan, error) {
	if _, err := s.providerRepo.GetByID(ctx, providerID); err != nil {
		return nil, err
	}
	return s.planRepo.ListByProvider(ctx, providerID, filter)
}

// UpdatePlan rewrites a plan's terms. Code and provider are immutable and activation
// goes through SetPlanActive.
func (s *InsuranceService) UpdatePlan(ctx context.Context, plan *entities.InsurancePlan) (*entities.InsurancePlan, error) {
	existing, err := s.planRepo.GetByID(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	if code := normalizeCode(plan.Code); code != "" && code != existing.Code {
		return nil, apperrors.NewValidationError("plan code cannot be changed")
	}
	if plan.ProviderID != "" && plan.ProviderID != existing.ProviderID {
		return nil, apperrors.NewValidationError("plan provider cannot be changed")
	}
	plan.Code = existing.Code
	plan.ProviderID = existing.ProviderID
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	plan.IsActive = existing.IsActive
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = s.now()
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewPlanEvent(plan))
	return s.planRepo.GetWithCoverage(ctx, plan.ID)
}

// SetPlanActive activates or deactivates a plan
func (s *InsuranceService) SetPlanActive(ctx context.Context, id string, active bool) (*entities.InsurancePlan, error) {
	if err := s.planRepo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetWithCoverage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entities.NewPlanEvent(plan))
	return plan, nil
}

// AddCoverageItem attaches a coverage override to a plan
func (s *InsuranceService) AddCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	if err := validateCoverageItem(item); err != nil {
		return err
	}
	plan, err := s.planRepo.GetByID(ctx, item.PlanID)
	if err != nil {
		return err
	}

	now := s.now()
	item.ID = uuid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.planRepo.AddCoverageItem(ctx, item); err != nil {
		return err
	}

	s.publish(ctx, entities.NewPlanEvent(plan))
	return nil
}

// UpdateCoverageItem rewrites a coverage override. The owning plan cannot change.
func (s *InsuranceService) UpdateCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) (*entities.PlanCoverageItem, error) {
	existing, err := s.planRepo.GetCoverageItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if item.PlanID != "" && item.PlanID != existing.PlanID {
		return nil, apperrors.NewValidationError("coverage item plan cannot be changed")
	}
	item.PlanID = existing.PlanID
	if err := validateCoverageItem(item); err != nil {
		return nil, err
	}

	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()
	if err := s.planRepo.UpdateCoverageItem(ctx, item); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewPlanEvent(&entities.InsurancePlan{ID: item.PlanID}))
	return item, nil
}

// RemoveCoverageItem deletes a coverage override
func (s *InsuranceService) RemoveCoverageItem(ctx context.Context, id string) error {
	existing, err := s.planRepo.GetCoverageItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.planRepo.RemoveCoverageItem(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, entities.NewPlanEvent(&entities.InsurancePlan{ID: existing.PlanID}))
	return nil
}

// ListCoverageItems lists a plan's coverage overrides in plan order
func (s *InsuranceService) ListCoverageItems(ctx context.Context, planID string) ([]entities.PlanCoverageItem, error) {
	if _, err := s.planRepo.GetByID(ctx, planID); err != nil {
		return nil, err
	}
	return s.planRepo.ListCoverageItems(ctx, planID)
}

// publish sends a change event without failing the write that caused it
func (s *InsuranceService) publish(ctx context.Context, event *entities.InsuranceEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelPlanUpdates, event); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(event.EventType)).
			Str("plan_id", event.PlanID).
			Str("provider_id", event.ProviderID).
			Msg("failed to publish insurance event")
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateProvider(p *entities.InsuranceProvider) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperrors.NewValidationError("provider name is required")
	}
	if p.Code == "" {
		return apperrors.NewValidationError("provider code is required")
	}
	if p.PaymentTermDays < 0 {
		return apperrors.NewValidationError("payment_term_days must not be negative")
	}
	if p.DiscountRate != nil && !adjudication.ValidPercentage(*p.DiscountRate) {
		return apperrors.NewValidationError("discount_rate must be between 0 and 100")
	}
	return nil
}

func validatePlan(p *entities.InsurancePlan) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperrors.NewValidationError("plan name is required")
	}
	if p.Code == "" {
		return apperrors.NewValidationError("plan code is required")
	}
	if p.ProviderID == "" {
		return apperrors.NewValidationError("plan provider_id is required")
	}
	if !adjudication.ValidPercentage(p.CoveragePercentage) {
		return apperrors.NewValidationError("coverage_percentage must be between 0 and 100")
	}
	if !adjudication.ValidPercentage(p.PatientCopay) {
		return apperrors.NewValidationError("patient_copay must be between 0 and 100")
	}
	if p.AnnualLimit != nil && p.AnnualLimit.IsNegative() {
		return apperrors.NewValidationError("annual_limit must not be negative")
	}
	return nil
}

func validateCoverageItem(item *entities.PlanCoverageItem) error {
	item.ItemID = strings.TrimSpace(item.ItemID)
	item.ItemType = strings.TrimSpace(item.ItemType)
	if item.ItemID == "" && item.ItemType == "" {
		return apperrors.NewValidationError("coverage item needs an item_id or an item_type")
	}
	if !adjudication.ValidPercentage(item.CoveragePercentage) {
		return apperrors.NewValidationError("coverage_percentage must be between 0 and 100")
	}
	if item.MaxAmount != nil && item.MaxAmount.LessThan(decimal.Zero) {
		return apperrors.NewValidationError("max_amount must not be negative")
	}
	return nil
}

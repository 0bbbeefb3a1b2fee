package repositories

import (
	"context"

	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// InsuranceRepository defines the interface for insurance provider operations
type InsuranceRepository interface {
	// Create creates a new insurance provider
	Create(ctx context.Context, provider *entities.InsuranceProvider) error

	// GetByID retrieves an insurance provider by ID
	GetByID(ctx context.Context, id string) (*entities.InsuranceProvider, error)

	// GetByIDs retrieves several providers in one round trip
	GetByIDs(ctx context.Context, ids []string) ([]*entities.InsuranceProvider, error)

	// GetByCode retrieves an insurance provider by code
	GetByCode(ctx context.Context, code string) (*entities.InsuranceProvider, error)

	// Update updates an insurance provider. The code column is never rewritten.
	Update(ctx context.Context, provider *entities.InsuranceProvider) error

	// SetActive toggles the active flag
	SetActive(ctx context.Context, id string, active bool) error

	// List retrieves insurance providers
	List(ctx context.Context, filter InsuranceFilter) ([]*entities.InsuranceProvider, error)
}

// InsuranceFilter defines filters for listing insurance providers
type InsuranceFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

// PlanRepository defines the interface for insurance plans and their coverage overrides
type PlanRepository interface {
	// Create creates a new plan
	Create(ctx context.Context, plan *entities.InsurancePlan) error

	// GetByID retrieves a plan without its coverage items
	GetByID(ctx context.Context, id string) (*entities.InsurancePlan, error)

	// GetWithCoverage retrieves a plan together with its coverage items in plan order
	GetWithCoverage(ctx context.Context, id string) (*entities.InsurancePlan, error)

	// GetByIDs retrieves several plans in one round trip
	GetByIDs(ctx context.Context, ids []string) ([]*entities.InsurancePlan, error)

	// GetByCode retrieves a plan by code within a provider
	GetByCode(ctx context.Context, providerID, code string) (*entities.InsurancePlan, error)

	// Update updates a plan. Code and provider are never rewritten.
	Update(ctx context.Context, plan *entities.InsurancePlan) error

	// SetActive toggles the active flag
	SetActive(ctx context.Context, id string, active bool) error

	// ListByProvider lists plans offered by a provider
	ListByProvider(ctx context.Context, providerID string, filter PlanFilter) ([]*entities.InsurancePlan, error)

	// AddCoverageItem creates a coverage override
	AddCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error

	// GetCoverageItem retrieves a coverage override by ID
	GetCoverageItem(ctx context.Context, id string) (*entities.PlanCoverageItem, error)

	// UpdateCoverageItem updates a coverage override
	UpdateCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error

	// RemoveCoverageItem deletes a coverage override
	RemoveCoverageItem(ctx context.Context, id string) error

	// ListCoverageItems lists a plan's coverage overrides in plan order
	ListCoverageItems(ctx context.Context, planID string) ([]entities.PlanCoverageItem, error)
}

// PlanFilter defines filters for listing plans
type PlanFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

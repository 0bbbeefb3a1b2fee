package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// ClaimRepository defines the interface for insurance claim persistence
type ClaimRepository interface {
	// Create inserts a claim and its line items atomically
	Create(ctx context.Context, claim *entities.InsuranceClaim) error

	// GetByID retrieves a claim with its line items
	GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error)

	// GetByNumber retrieves a claim by its claim number
	GetByNumber(ctx context.Context, claimNumber string) (*entities.InsuranceClaim, error)

	// List retrieves claims without line items
	List(ctx context.Context, filter ClaimFilter) ([]*entities.InsuranceClaim, error)

	// UpdateStatus persists status, processed_at and notes
	UpdateStatus(ctx context.Context, claim *entities.InsuranceClaim) error

	// UpdateCoverage persists covered amounts of the claim and its items
	UpdateCoverage(ctx context.Context, claim *entities.InsuranceClaim) error

	// ListPriorClaims returns a patient's claims on a plan submitted between from and to
	ListPriorClaims(ctx context.Context, patientID, planID string, from, to time.Time) ([]entities.InsuranceClaim, error)

	// WithPatientPlanLock runs fn in a transaction holding an exclusive lock on
	// (patientID, planID). The repository passed to fn is bound to that transaction.
	WithPatientPlanLock(ctx context.Context, patientID, planID string, fn func(ctx context.Context, tx ClaimRepository) error) error
}

// ClaimFilter defines filters for listing claims
type ClaimFilter struct {
	IDs           []string
	ProviderID    string
	PlanID        string
	PatientID     string
	Status        entities.ClaimStatus
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Limit         int
	Offset        int
}

// ClaimStatisticsRepository computes aggregate reporting figures
type ClaimStatisticsRepository interface {
	Statistics(ctx context.Context, filter ClaimFilter) (*entities.ClaimStatistics, error)
}

// ClaimSearchRepository defines the interface for the claim search index
type ClaimSearchRepository interface {
	// Index upserts a claim document
	Index(ctx context.Context, claim *entities.InsuranceClaim) error

	// Delete removes a claim from the index
	Delete(ctx context.Context, id string) error

	// Search runs a full-text query and returns matching claim IDs in rank order
	Search(ctx context.Context, params ClaimSearchParams) (*ClaimSearchResult, error)
}

// ClaimSearchParams defines claim search parameters
type ClaimSearchParams struct {
	Query      string
	Status     entities.ClaimStatus
	ProviderID string
	PlanID     string
	Limit      int
	Offset     int
}

// ClaimSearchResult is a page of search hits
type ClaimSearchResult struct {
	IDs   []string `json:"ids"`
	Found int      `json:"found"`
}

// Package mocks holds testify mocks of the domain repositories and providers.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// InsuranceRepository is a mock of repositories.InsuranceRepository
type InsuranceRepository struct {
	mock.Mock
}

// NewInsuranceRepository creates a mock that asserts its expectations on test cleanup
func NewInsuranceRepository(t cleanupT) *InsuranceRepository {
	m := &InsuranceRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *InsuranceRepository) Create(ctx context.Context, provider *entities.InsuranceProvider) error {
	return m.Called(ctx, provider).Error(0)
}

func (m *InsuranceRepository) GetByID(ctx context.Context, id string) (*entities.InsuranceProvider, error) {
	args := m.Called(ctx, id)
	provider, _ := args.Get(0).(*entities.InsuranceProvider)
	return provider, args.Error(1)
}

func (m *InsuranceRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.InsuranceProvider, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]*entities.InsuranceProvider)
	return out, args.Error(1)
}

func (m *InsuranceRepository) GetByCode(ctx context.Context, code string) (*entities.InsuranceProvider, error) {
	args := m.Called(ctx, code)
	provider, _ := args.Get(0).(*entities.InsuranceProvider)
	return provider, args.Error(1)
}

func (m *InsuranceRepository) Update(ctx context.Context, provider *entities.InsuranceProvider) error {
	return m.Called(ctx, provider).Error(0)
}

func (m *InsuranceRepository) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *InsuranceRepository) List(ctx context.Context, filter repositories.InsuranceFilter) ([]*entities.InsuranceProvider, error) {
	args := m.Called(ctx, filter)
	out, _ := args.Get(0).([]*entities.InsuranceProvider)
	return out, args.Error(1)
}

// PlanRepository is a mock of repositories.PlanRepository
type PlanRepository struct {
	mock.Mock
}

// NewPlanRepository creates a mock that asserts its expectations on test cleanup
func NewPlanRepository(t cleanupT) *PlanRepository {
	m := &PlanRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *PlanRepository) Create(ctx context.Context, plan *entities.InsurancePlan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *PlanRepository) GetByID(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	args := m.Called(ctx, id)
	plan, _ := args.Get(0).(*entities.InsurancePlan)
	return plan, args.Error(1)
}

func (m *PlanRepository) GetWithCoverage(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	args := m.Called(ctx, id)
	plan, _ := args.Get(0).(*entities.InsurancePlan)
	return plan, args.Error(1)
}

func (m *PlanRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.InsurancePlan, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]*entities.InsurancePlan)
	return out, args.Error(1)
}

func (m *PlanRepository) GetByCode(ctx context.Context, providerID, code string) (*entities.InsurancePlan, error) {
	args := m.Called(ctx, providerID, code)
	plan, _ := args.Get(0).(*entities.InsurancePlan)
	return plan, args.Error(1)
}

func (m *PlanRepository) Update(ctx context.Context, plan *entities.InsurancePlan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *PlanRepository) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *PlanRepository) ListByProvider(ctx context.Context, providerID string, filter repositories.PlanFilter) ([]*entities.InsurancePlan, error) {
	args := m.Called(ctx, providerID, filter)
	out, _ := args.Get(0).([]*entities.InsurancePlan)
	return out, args.Error(1)
}

func (m *PlanRepository) AddCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *PlanRepository) GetCoverageItem(ctx context.Context, id string) (*entities.PlanCoverageItem, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*entities.PlanCoverageItem)
	return item, args.Error(1)
}

func (m *PlanRepository) UpdateCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *PlanRepository) RemoveCoverageItem(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *PlanRepository) ListCoverageItems(ctx context.Context, planID string) ([]entities.PlanCoverageItem, error) {
	args := m.Called(ctx, planID)
	out, _ := args.Get(0).([]entities.PlanCoverageItem)
	return out, args.Error(1)
}

// ClaimRepository is a mock of repositories.ClaimRepository. WithPatientPlanLock records
// the call and then runs fn against the mock itself.
type ClaimRepository struct {
	mock.Mock
}

// NewClaimRepository creates a mock that asserts its expectations on test cleanup
func NewClaimRepository(t cleanupT) *ClaimRepository {
	m := &ClaimRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ClaimRepository) Create(ctx context.Context, claim *entities.InsuranceClaim) error {
	return m.Called(ctx, claim).Error(0)
}

func (m *ClaimRepository) GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	args := m.Called(ctx, id)
	claim, _ := args.Get(0).(*entities.InsuranceClaim)
	return claim, args.Error(1)
}

func (m *ClaimRepository) GetByNumber(ctx context.Context, claimNumber string) (*entities.InsuranceClaim, error) {
	args := m.Called(ctx, claimNumber)
	claim, _ := args.Get(0).(*entities.InsuranceClaim)
	return claim, args.Error(1)
}

func (m *ClaimRepository) List(ctx context.Context, filter repositories.ClaimFilter) ([]*entities.InsuranceClaim, error) {
	args := m.Called(ctx, filter)
	out, _ := args.Get(0).([]*entities.InsuranceClaim)
	return out, args.Error(1)
}

func (m *ClaimRepository) UpdateStatus(ctx context.Context, claim *entities.InsuranceClaim) error {
	return m.Called(ctx, claim).Error(0)
}

func (m *ClaimRepository) UpdateCoverage(ctx context.Context, claim *entities.InsuranceClaim) error {
	return m.Called(ctx, claim).Error(0)
}

func (m *ClaimRepository) ListPriorClaims(ctx context.Context, patientID, planID string, from, to time.Time) ([]entities.InsuranceClaim, error) {
	args := m.Called(ctx, patientID, planID, from, to)
	out, _ := args.Get(0).([]entities.InsuranceClaim)
	return out, args.Error(1)
}

func (m *ClaimRepository) WithPatientPlanLock(ctx context.Context, patientID, planID string, fn func(ctx context.Context, tx repositories.ClaimRepository) error) error {
	if err := m.Called(ctx, patientID, planID).Error(0); err != nil {
		return err
	}
	return fn(ctx, m)
}

// ClaimStatisticsRepository is a mock of repositories.ClaimStatisticsRepository
type ClaimStatisticsRepository struct {
	mock.Mock
}

// NewClaimStatisticsRepository creates a mock that asserts its expectations on test cleanup
func NewClaimStatisticsRepository(t cleanupT) *ClaimStatisticsRepository {
	m := &ClaimStatisticsRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ClaimStatisticsRepository) Statistics(ctx context.Context, filter repositories.ClaimFilter) (*entities.ClaimStatistics, error) {
	args := m.Called(ctx, filter)
	stats, _ := args.Get(0).(*entities.ClaimStatistics)
	return stats, args.Error(1)
}

// ClaimSearchRepository is a mock of repositories.ClaimSearchRepository
type ClaimSearchRepository struct {
	mock.Mock
}

// NewClaimSearchRepository creates a mock that asserts its expectations on test cleanup
func NewClaimSearchRepository(t cleanupT) *ClaimSearchRepository {
	m := &ClaimSearchRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ClaimSearchRepository) Index(ctx context.Context, claim *entities.InsuranceClaim) error {
	return m.Called(ctx, claim).Error(0)
}

func (m *ClaimSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *ClaimSearchRepository) Search(ctx context.Context, params repositories.ClaimSearchParams) (*repositories.ClaimSearchResult, error) {
	args := m.Called(ctx, params)
	result, _ := args.Get(0).(*repositories.ClaimSearchResult)
	return result, args.Error(1)
}

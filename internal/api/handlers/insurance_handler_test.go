package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/api/handlers"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/mocks"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

func newInsuranceHandler(t *testing.T) (*handlers.InsuranceHandler, *mocks.InsuranceRepository, *mocks.PlanRepository, *MockEventBus) {
	insurers := mocks.NewInsuranceRepository(t)
	plans := mocks.NewPlanRepository(t)
	bus := NewMockEventBus()
	return handlers.NewInsuranceHandler(services.NewInsuranceService(insurers, plans, bus)), insurers, plans, bus
}

func TestInsuranceHandler_CreateProvider(t *testing.T) {
	handler, insurers, _, bus := newInsuranceHandler(t)
	insurers.On("GetByCode", mock.Anything, "ACME").Return(nil, apperrors.NewNotFoundError("not found"))
	insurers.On("Create", mock.Anything, mock.AnythingOfType("*entities.InsuranceProvider")).Return(nil)

	w := serve("/api/insurance/providers", handler.CreateProvider, http.MethodPost, "/api/insurance/providers",
		`{"name":"Acme Health","code":" acme ","payment_term_days":30}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "ACME", body["code"])
	assert.Equal(t, true, body["is_active"])
	assert.NotEmpty(t, body["id"])
	assert.Len(t, bus.published, 1)
}

func TestInsuranceHandler_CreateProvider_DuplicateCode(t *testing.T) {
	handler, insurers, _, _ := newInsuranceHandler(t)
	insurers.On("GetByCode", mock.Anything, "ACME").Return(&entities.InsuranceProvider{ID: "prov-1", Code: "ACME"}, nil)

	w := serve("/api/insurance/providers", handler.CreateProvider, http.MethodPost, "/api/insurance/providers",
		`{"name":"Acme Health","code":"ACME"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decodeBody(t, w)["code"])
}

func TestInsuranceHandler_CreateProvider_Invalid(t *testing.T) {
	handler, _, _, _ := newInsuranceHandler(t)

	w := serve("/api/insurance/providers", handler.CreateProvider, http.MethodPost, "/api/insurance/providers",
		`{"name":"","code":"ACME"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsuranceHandler_GetProvider_NotFound(t *testing.T) {
	handler, insurers, _, _ := newInsuranceHandler(t)
	insurers.On("GetByID", mock.Anything, "nope").Return(nil, apperrors.NewNotFoundError("insurance provider not found"))

	w := serve("/api/insurance/providers/{id}", handler.GetProvider, http.MethodGet, "/api/insurance/providers/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInsuranceHandler_DeleteProviderDeactivates(t *testing.T) {
	handler, insurers, _, _ := newInsuranceHandler(t)
	insurers.On("SetActive", mock.Anything, "prov-1", false).Return(nil)
	insurers.On("GetByID", mock.Anything, "prov-1").Return(&entities.InsuranceProvider{ID: "prov-1", IsActive: false}, nil)

	w := serve("/api/insurance/providers/{id}", handler.DeleteProvider, http.MethodDelete, "/api/insurance/providers/prov-1", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestInsuranceHandler_SetProviderActive_RequiresFlag(t *testing.T) {
	handler, _, _, _ := newInsuranceHandler(t)

	w := serve("/api/insurance/providers/{id}/active", handler.SetProviderActive, http.MethodPatch,
		"/api/insurance/providers/prov-1/active", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsuranceHandler_ListPlans(t *testing.T) {
	handler, insurers, plans, _ := newInsuranceHandler(t)
	insurers.On("GetByID", mock.Anything, "prov-1").Return(&entities.InsuranceProvider{ID: "prov-1"}, nil)
	plans.On("ListByProvider", mock.Anything, "prov-1", mock.Anything).
		Return([]*entities.InsurancePlan{{ID: "plan-1", ProviderID: "prov-1", Name: "Gold"}}, nil)

	w := serve("/api/insurance/providers/{id}/plans", handler.ListPlans, http.MethodGet,
		"/api/insurance/providers/prov-1/plans?is_active=true", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
}

func TestInsuranceHandler_ListPlans_BadFlag(t *testing.T) {
	handler, _, _, _ := newInsuranceHandler(t)

	w := serve("/api/insurance/providers/{id}/plans", handler.ListPlans, http.MethodGet,
		"/api/insurance/providers/prov-1/plans?is_active=maybe", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsuranceHandler_AddCoverageItem_Invalid(t *testing.T) {
	handler, _, _, _ := newInsuranceHandler(t)

	w := serve("/api/insurance/plans/{id}/coverage-items", handler.AddCoverageItem, http.MethodPost,
		"/api/insurance/plans/plan-1/coverage-items", `{"item_type":"antibiotic","coverage_percentage":"150"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

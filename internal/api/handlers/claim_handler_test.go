package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/api/handlers"
	"github.com/zatekoja/pharmacyclaims/internal/api/loaders"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/mocks"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

var handlerClock = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

type claimHandlerFixture struct {
	claims   *mocks.ClaimRepository
	plans    *mocks.PlanRepository
	insurers *mocks.InsuranceRepository
	handler  *handlers.ClaimHandler
}

func newClaimHandlerFixture(t *testing.T) *claimHandlerFixture {
	f := &claimHandlerFixture{
		claims:   mocks.NewClaimRepository(t),
		plans:    mocks.NewPlanRepository(t),
		insurers: mocks.NewInsuranceRepository(t),
	}
	service := services.NewClaimService(
		f.claims, mocks.NewClaimStatisticsRepository(t), f.plans, f.insurers,
		adjudication.BenefitYear{Mode: adjudication.CalendarYear},
		services.WithClock(func() time.Time { return handlerClock }),
	)
	f.handler = handlers.NewClaimHandler(service)
	return f
}

// serve routes a single request through a mux so path values are populated
func serve(pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestClaimHandler_CreateClaim_RejectsUnknownFields(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/claims", f.handler.CreateClaim, http.MethodPost, "/api/claims", `{"plan_id":"plan-1","bogus":true}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Contains(t, body["error"], "invalid request body")
}

func TestClaimHandler_CreateClaim_MissingItems(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/claims", f.handler.CreateClaim, http.MethodPost, "/api/claims",
		`{"provider_id":"prov-1","plan_id":"plan-1","patient_id":"pat-1","items":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, adjudication.CodeInvalidLineItem, decodeBody(t, w)["code"])
}

func TestClaimHandler_GetClaim_NotFound(t *testing.T) {
	f := newClaimHandlerFixture(t)
	f.claims.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("claim not found"))

	w := serve("/api/claims/{id}", f.handler.GetClaim, http.MethodGet, "/api/claims/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "claim not found", body["error"])
}

func TestClaimHandler_GetClaim_InternalErrorIsHidden(t *testing.T) {
	f := newClaimHandlerFixture(t)
	f.claims.On("GetByID", mock.Anything, "claim-1").Return(nil, errors.New("pq: connection refused"))

	w := serve("/api/claims/{id}", f.handler.GetClaim, http.MethodGet, "/api/claims/claim-1", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, "internal server error", decodeBody(t, w)["error"])
}

func TestClaimHandler_TransitionClaim_InvalidTransition(t *testing.T) {
	f := newClaimHandlerFixture(t)
	paid := &entities.InsuranceClaim{ID: "claim-1", ClaimNumber: "CLM-1", PatientID: "pat-1", PlanID: "plan-1", Status: entities.ClaimStatusPaid}
	f.claims.On("GetByID", mock.Anything, "claim-1").Return(paid, nil)
	f.claims.On("WithPatientPlanLock", mock.Anything, "pat-1", "plan-1").Return(nil)

	w := serve("/api/claims/{id}/transitions", f.handler.TransitionClaim, http.MethodPost,
		"/api/claims/claim-1/transitions", `{"status":"APPROVED"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, adjudication.CodeInvalidTransition, decodeBody(t, w)["code"])
	f.claims.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestClaimHandler_TransitionClaim_BenefitExceeded(t *testing.T) {
	f := newClaimHandlerFixture(t)
	review := &entities.InsuranceClaim{
		ID: "claim-1", ClaimNumber: "CLM-1", PatientID: "pat-1", PlanID: "plan-1", Status: entities.ClaimStatusUnderReview,
		TotalAmount: decimal.RequireFromString("800"), CoveredAmount: decimal.RequireFromString("800"), SubmittedAt: handlerClock,
	}
	limit := decimal.RequireFromString("1000")
	f.claims.On("GetByID", mock.Anything, "claim-1").Return(review, nil)
	f.claims.On("WithPatientPlanLock", mock.Anything, "pat-1", "plan-1").Return(nil)
	f.plans.On("GetWithCoverage", mock.Anything, "plan-1").Return(&entities.InsurancePlan{ID: "plan-1", ProviderID: "prov-1", AnnualLimit: &limit, IsActive: true}, nil)
	f.insurers.On("GetByID", mock.Anything, "prov-1").Return(&entities.InsuranceProvider{ID: "prov-1", IsActive: true}, nil)
	f.claims.On("ListPriorClaims", mock.Anything, "pat-1", "plan-1", mock.Anything, mock.Anything).Return([]entities.InsuranceClaim{
		{ID: "old", PlanID: "plan-1", Status: entities.ClaimStatusPaid, CoveredAmount: decimal.RequireFromString("900"), SubmittedAt: handlerClock.AddDate(0, -1, 0)},
	}, nil)

	w := serve("/api/claims/{id}/transitions", f.handler.TransitionClaim, http.MethodPost,
		"/api/claims/claim-1/transitions", `{"status":"APPROVED"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, adjudication.CodeBenefitExceeded, decodeBody(t, w)["code"])
	f.claims.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestClaimHandler_TransitionClaim_UnknownStatus(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/claims/{id}/transitions", f.handler.TransitionClaim, http.MethodPost,
		"/api/claims/claim-1/transitions", `{"status":"ARCHIVED"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandler_TransitionClaim_Success(t *testing.T) {
	f := newClaimHandlerFixture(t)
	submitted := &entities.InsuranceClaim{ID: "claim-1", ClaimNumber: "CLM-1", PatientID: "pat-1", PlanID: "plan-1", Status: entities.ClaimStatusSubmitted}
	f.claims.On("GetByID", mock.Anything, "claim-1").Return(submitted, nil)
	f.claims.On("WithPatientPlanLock", mock.Anything, "pat-1", "plan-1").Return(nil)
	f.plans.On("GetWithCoverage", mock.Anything, "plan-1").Return(&entities.InsurancePlan{ID: "plan-1", ProviderID: "prov-1", IsActive: true}, nil)
	f.insurers.On("GetByID", mock.Anything, "prov-1").Return(&entities.InsuranceProvider{ID: "prov-1", IsActive: true}, nil)
	f.claims.On("ListPriorClaims", mock.Anything, "pat-1", "plan-1", mock.Anything, mock.Anything).Return(nil, nil)
	f.claims.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(c *entities.InsuranceClaim) bool {
		return c.Status == entities.ClaimStatusApproved
	})).Return(nil)

	w := serve("/api/claims/{id}/transitions", f.handler.TransitionClaim, http.MethodPost,
		"/api/claims/claim-1/transitions", `{"status":"APPROVED","notes":"reviewed"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "APPROVED", body["status"])
	assert.Equal(t, entities.ClaimStatusSubmitted, submitted.Status)
}

func TestClaimHandler_ListClaims_BadStatusAndPaging(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/claims", f.handler.ListClaims, http.MethodGet, "/api/claims?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve("/api/claims", f.handler.ListClaims, http.MethodGet, "/api/claims?submitted_from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandler_ListClaims_AttachesNames(t *testing.T) {
	f := newClaimHandlerFixture(t)
	f.claims.On("List", mock.Anything, mock.Anything).
		Return([]*entities.InsuranceClaim{{ID: "claim-1", ProviderID: "prov-1", PlanID: "plan-1", Status: entities.ClaimStatusPending}}, nil)
	f.insurers.On("GetByIDs", mock.Anything, []string{"prov-1"}).
		Return([]*entities.InsuranceProvider{{ID: "prov-1", Name: "Acme Health"}}, nil)
	f.plans.On("GetByIDs", mock.Anything, []string{"plan-1"}).
		Return([]*entities.InsurancePlan{{ID: "plan-1", Name: "Gold"}}, nil)

	handler := loaders.Middleware(f.insurers, f.plans)(http.HandlerFunc(f.handler.ListClaims))
	w := serve("/api/claims", handler.ServeHTTP, http.MethodGet, "/api/claims?status=PENDING", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
	claims := body["claims"].([]interface{})
	first := claims[0].(map[string]interface{})
	assert.Equal(t, "Acme Health", first["provider_name"])
	assert.Equal(t, "Gold", first["plan_name"])
}

func TestClaimHandler_VerifyEligibility(t *testing.T) {
	f := newClaimHandlerFixture(t)
	limit := decimal.RequireFromString("500")
	plan := &entities.InsurancePlan{ID: "plan-1", ProviderID: "prov-1", IsActive: true, AnnualLimit: &limit}
	f.plans.On("GetWithCoverage", mock.Anything, "plan-1").Return(plan, nil)
	f.insurers.On("GetByID", mock.Anything, "prov-1").Return(&entities.InsuranceProvider{ID: "prov-1", IsActive: true}, nil)
	f.claims.On("ListPriorClaims", mock.Anything, "pat-1", "plan-1", mock.Anything, mock.Anything).
		Return([]entities.InsuranceClaim{
			{PlanID: "plan-1", Status: entities.ClaimStatusPaid, CoveredAmount: decimal.RequireFromString("500"), SubmittedAt: handlerClock.AddDate(0, -2, 0)},
		}, nil)

	w := serve("/api/insurance/eligibility", f.handler.VerifyEligibility, http.MethodGet,
		"/api/insurance/eligibility?patient_id=pat-1&plan_id=plan-1", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, false, body["eligible"])
	assert.Equal(t, "0.00", body["remaining_benefit"])
	assert.Equal(t, "500.00", body["used_benefit"])
	assert.Equal(t, string(adjudication.ReasonAnnualLimitExhausted), body["reason"])
	assert.NotEmpty(t, body["message"])
}

func TestClaimHandler_VerifyEligibility_BadDate(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/insurance/eligibility", f.handler.VerifyEligibility, http.MethodGet,
		"/api/insurance/eligibility?patient_id=pat-1&plan_id=plan-1&at=June", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandler_SearchClaims_Unconfigured(t *testing.T) {
	f := newClaimHandlerFixture(t)

	w := serve("/api/claims/search", f.handler.SearchClaims, http.MethodGet, "/api/claims/search?q=amox", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

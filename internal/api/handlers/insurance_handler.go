package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
)

// InsuranceHandler handles provider, plan and coverage item requests
type InsuranceHandler struct {
	service *services.InsuranceService
}

// NewInsuranceHandler creates a new insurance handler
func NewInsuranceHandler(service *services.InsuranceService) *InsuranceHandler {
	return &InsuranceHandler{service: service}
}

type providerRequest struct {
	Name             string           `json:"name"`
	Code             string           `json:"code"`
	ContactPerson    string           `json:"contact_person"`
	PhoneNumber      string           `json:"phone_number"`
	Email            string           `json:"email"`
	Address          string           `json:"address"`
	Website          string           `json:"website"`
	IsActive         *bool            `json:"is_active"`
	ApprovalRequired bool             `json:"approval_required"`
	PaymentTermDays  int              `json:"payment_term_days"`
	DiscountRate     *decimal.Decimal `json:"discount_rate"`
}

func (req providerRequest) entity(id string) *entities.InsuranceProvider {
	return &entities.InsuranceProvider{
		ID:               id,
		Name:             req.Name,
		Code:             req.Code,
		ContactPerson:    req.ContactPerson,
		PhoneNumber:      req.PhoneNumber,
		Email:            req.Email,
		Address:          req.Address,
		Website:          req.Website,
		IsActive:         req.IsActive == nil || *req.IsActive,
		ApprovalRequired: req.ApprovalRequired,
		PaymentTermDays:  req.PaymentTermDays,
		DiscountRate:     req.DiscountRate,
	}
}

type planRequest struct {
	Name               string           `json:"name"`
	Code               string           `json:"code"`
	ProviderID         string           `json:"provider_id"`
	CoveragePercentage decimal.Decimal  `json:"coverage_percentage"`
	AnnualLimit        *decimal.Decimal `json:"annual_limit"`
	RequiresApproval   bool             `json:"requires_approval"`
	PatientCopay       decimal.Decimal  `json:"patient_copay"`
	IsActive           *bool            `json:"is_active"`
}

func (req planRequest) entity(id, providerID string) *entities.InsurancePlan {
	return &entities.InsurancePlan{
		ID:                 id,
		ProviderID:         providerID,
		Name:               req.Name,
		Code:               req.Code,
		CoveragePercentage: req.CoveragePercentage,
		AnnualLimit:        req.AnnualLimit,
		RequiresApproval:   req.RequiresApproval,
		PatientCopay:       req.PatientCopay,
		IsActive:           req.IsActive == nil || *req.IsActive,
	}
}

type coverageItemRequest struct {
	PlanID             string           `json:"plan_id"`
	ItemID             string           `json:"item_id"`
	ItemType           string           `json:"item_type"`
	CoveragePercentage decimal.Decimal  `json:"coverage_percentage"`
	MaxAmount          *decimal.Decimal `json:"max_amount"`
	RequiresApproval   bool             `json:"requires_approval"`
}

func (req coverageItemRequest) entity(id, planID string) *entities.PlanCoverageItem {
	return &entities.PlanCoverageItem{
		ID:                 id,
		PlanID:             planID,
		ItemID:             req.ItemID,
		ItemType:           req.ItemType,
		CoveragePercentage: req.CoveragePercentage,
		MaxAmount:          req.MaxAmount,
		RequiresApproval:   req.RequiresApproval,
	}
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

// ListProviders handles GET /api/insurance/providers
func (h *InsuranceHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	active, err := boolParam(r, "is_active")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	providers, err := h.service.ListProviders(r.Context(), repositories.InsuranceFilter{IsActive: active, Limit: limit, Offset: offset})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
		"count":     len(providers),
	})
}

// CreateProvider handles POST /api/insurance/providers
func (h *InsuranceHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	provider := req.entity("")
	if err := h.service.CreateProvider(r.Context(), provider); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, provider)
}

// GetProvider handles GET /api/insurance/providers/{id}
func (h *InsuranceHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	provider, err := h.service.GetProvider(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, provider)
}

// UpdateProvider handles PUT /api/insurance/providers/{id}
func (h *InsuranceHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	provider, err := h.service.UpdateProvider(r.Context(), req.entity(r.PathValue("id")))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, provider)
}

// DeleteProvider handles DELETE /api/insurance/providers/{id}. Providers are deactivated, not removed.
func (h *InsuranceHandler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProvider(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetProviderActive handles PATCH /api/insurance/providers/{id}/active
func (h *InsuranceHandler) SetProviderActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.IsActive == nil {
		respondWithError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	provider, err := h.service.SetProviderActive(r.Context(), r.PathValue("id"), *req.IsActive)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, provider)
}

// ListPlans handles GET /api/insurance/providers/{id}/plans
func (h *InsuranceHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	active, err := boolParam(r, "is_active")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	plans, err := h.service.ListPlans(r.Context(), r.PathValue("id"), repositories.PlanFilter{IsActive: active, Limit: limit, Offset: offset})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"count": len(plans),
	})
}

// CreatePlan handles POST /api/insurance/providers/{id}/plans
func (h *InsuranceHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	plan := req.entity("", r.PathValue("id"))
	if err := h.service.CreatePlan(r.Context(), plan); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, plan)
}

// GetPlan handles GET /api/insurance/plans/{id}
func (h *InsuranceHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// UpdatePlan handles PUT /api/insurance/plans/{id}
func (h *InsuranceHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	plan, err := h.service.UpdatePlan(r.Context(), req.entity(r.PathValue("id"), req.ProviderID))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// SetPlanActive handles PATCH /api/insurance/plans/{id}/active
func (h *InsuranceHandler) SetPlanActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.IsActive == nil {
		respondWithError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	plan, err := h.service.SetPlanActive(r.Context(), r.PathValue("id"), *req.IsActive)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// ListCoverageItems handles GET /api/insurance/plans/{id}/coverage-items
func (h *InsuranceHandler) ListCoverageItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCoverageItems(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"coverage_items": items,
		"count":          len(items),
	})
}

// AddCoverageItem handles POST /api/insurance/plans/{id}/coverage-items
func (h *InsuranceHandler) AddCoverageItem(w http.ResponseWriter, r *http.Request) {
	var req coverageItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	item := req.entity("", r.PathValue("id"))
	if err := h.service.AddCoverageItem(r.Context(), item); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// UpdateCoverageItem handles PUT /api/insurance/coverage-items/{id}
func (h *InsuranceHandler) UpdateCoverageItem(w http.ResponseWriter, r *http.Request) {
	var req coverageItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	item, err := h.service.UpdateCoverageItem(r.Context(), req.entity(r.PathValue("id"), req.PlanID))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// RemoveCoverageItem handles DELETE /api/insurance/coverage-items/{id}
func (h *InsuranceHandler) RemoveCoverageItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveCoverageItem(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

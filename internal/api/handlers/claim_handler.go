package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/pharmacyclaims/internal/api/loaders"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

// ClaimHandler handles claim adjudication requests
type ClaimHandler struct {
	service *services.ClaimService
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(service *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{service: service}
}

// ClaimSummary is a claim row in listings, enriched with display names
type ClaimSummary struct {
	*entities.InsuranceClaim
	ProviderName string `json:"provider_name,omitempty"`
	PlanName     string `json:"plan_name,omitempty"`
}

type transitionRequest struct {
	Status entities.ClaimStatus `json:"status"`
	Notes  string               `json:"notes"`
}

type updateItemsRequest struct {
	Items []services.ItemAdjustment `json:"items"`
	Notes string                    `json:"notes"`
}

// CreateClaim handles POST /api/claims
func (h *ClaimHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req services.CreateClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	claim, err := h.service.CreateClaim(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, claim)
}

// GetClaim handles GET /api/claims/{id}
func (h *ClaimHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.GetClaim(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claim)
}

// GetClaimByNumber handles GET /api/claims/by-number/{number}
func (h *ClaimHandler) GetClaimByNumber(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.GetClaimByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claim)
}

// ListClaims handles GET /api/claims
func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	filter, err := claimFilter(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if filter.Limit, filter.Offset, err = pagination(r); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	claims, err := h.service.ListClaims(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"claims": summarize(r.Context(), claims),
		"count":  len(claims),
	})
}

// SearchClaims handles GET /api/claims/search
func (h *ClaimHandler) SearchClaims(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	params := repositories.ClaimSearchParams{
		Query:      query.Get("q"),
		Status:     entities.ClaimStatus(query.Get("status")),
		ProviderID: query.Get("provider_id"),
		PlanID:     query.Get("plan_id"),
		Limit:      limit,
		Offset:     offset,
	}

	claims, found, err := h.service.SearchClaims(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"claims": summarize(r.Context(), claims),
		"count":  len(claims),
		"found":  found,
	})
}

// Statistics handles GET /api/claims/statistics
func (h *ClaimHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	filter, err := claimFilter(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	stats, err := h.service.Statistics(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// TransitionClaim handles POST /api/claims/{id}/transitions
func (h *ClaimHandler) TransitionClaim(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	claim, err := h.service.TransitionClaim(r.Context(), r.PathValue("id"), req.Status, req.Notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claim)
}

// UpdateClaimItems handles PUT /api/claims/{id}/items
func (h *ClaimHandler) UpdateClaimItems(w http.ResponseWriter, r *http.Request) {
	var req updateItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	claim, err := h.service.UpdateClaimItems(r.Context(), r.PathValue("id"), req.Items, req.Notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claim)
}

// ReadjudicateClaim handles POST /api/claims/{id}/readjudicate
func (h *ClaimHandler) ReadjudicateClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.ReadjudicateClaim(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claim)
}

// VerifyEligibility handles GET /api/insurance/eligibility?patient_id=&plan_id=[&at=]
func (h *ClaimHandler) VerifyEligibility(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	at, err := timeParam(query.Get("at"), "at")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	var when time.Time
	if at != nil {
		when = *at
	}

	result, err := h.service.VerifyEligibility(r.Context(), query.Get("patient_id"), query.Get("plan_id"), when)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"eligible":          result.Eligible,
		"remaining_benefit": result.RemainingBenefit,
		"used_benefit":      result.UsedBenefit.StringFixed(2),
		"benefit_window":    result.Window,
	}
	if result.Reason != "" {
		body["reason"] = result.Reason
		body["message"] = result.Reason.Message()
	}
	respondWithJSON(w, http.StatusOK, body)
}

func claimFilter(r *http.Request) (repositories.ClaimFilter, error) {
	query := r.URL.Query()
	filter := repositories.ClaimFilter{
		ProviderID: query.Get("provider_id"),
		PlanID:     query.Get("plan_id"),
		PatientID:  query.Get("patient_id"),
		Status:     entities.ClaimStatus(query.Get("status")),
	}

	var err error
	if filter.SubmittedFrom, err = timeParam(query.Get("submitted_from"), "submitted_from"); err != nil {
		return filter, err
	}
	if filter.SubmittedTo, err = timeParam(query.Get("submitted_to"), "submitted_to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// timeParam accepts RFC 3339 timestamps or plain dates
func timeParam(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError(name + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// summarize attaches provider and plan names through the request's dataloaders
func summarize(ctx context.Context, claims []*entities.InsuranceClaim) []ClaimSummary {
	out := make([]ClaimSummary, len(claims))
	l := loaders.For(ctx)
	if l == nil {
		for i, c := range claims {
			out[i] = ClaimSummary{InsuranceClaim: c}
		}
		return out
	}

	providerThunks := make([]func() (*entities.InsuranceProvider, error), len(claims))
	planThunks := make([]func() (*entities.InsurancePlan, error), len(claims))
	for i, c := range claims {
		providerThunks[i] = l.ProviderLoader.Load(ctx, c.ProviderID)
		planThunks[i] = l.PlanLoader.Load(ctx, c.PlanID)
	}

	for i, c := range claims {
		out[i] = ClaimSummary{InsuranceClaim: c}
		if p, err := providerThunks[i](); err == nil && p != nil {
			out[i].ProviderName = p.Name
		}
		if p, err := planThunks[i](); err == nil && p != nil {
			out[i].PlanName = p.Name
		}
	}
	return out
}

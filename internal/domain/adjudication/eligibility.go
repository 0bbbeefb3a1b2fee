package adjudication

import (
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// IneligibilityReason explains why a patient may not file against a plan
type IneligibilityReason string

const (
	ReasonPlanInactive         IneligibilityReason = "PLAN_INACTIVE"
	ReasonProviderInactive     IneligibilityReason = "PROVIDER_INACTIVE"
	ReasonAnnualLimitExhausted IneligibilityReason = "ANNUAL_LIMIT_EXHAUSTED"
)

// Message is the user-facing text for the reason
func (r IneligibilityReason) Message() string {
	switch r {
	case ReasonPlanInactive:
		return "insurance plan is inactive"
	case ReasonProviderInactive:
		return "insurance provider is inactive"
	case ReasonAnnualLimitExhausted:
		return "annual benefit limit has been reached"
	}
	return ""
}

// EligibilityResult is the outcome of CheckEligibility. Ineligibility is a value, not an error.
type EligibilityResult struct {
	Eligible         bool                `json:"eligible"`
	RemainingBenefit Benefit             `json:"remaining_benefit"`
	UsedBenefit      decimal.Decimal     `json:"used_benefit"`
	Reason           IneligibilityReason `json:"reason,omitempty"`
	Window           Window              `json:"benefit_window"`
}

// CheckEligibility decides whether a patient may file a new claim against plan.
// priorClaims are the patient's claims; only those on this plan, in a benefit-consuming
// status and submitted inside window count toward the annual limit.
func CheckEligibility(plan *entities.InsurancePlan, provider *entities.InsuranceProvider, priorClaims []entities.InsuranceClaim, window Window) (*EligibilityResult, error) {
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if provider == nil || provider.ID != plan.ProviderID {
		return nil, ErrProviderMismatch.WithMessage("plan %s is not offered by the given provider", plan.Code)
	}

	used := UsedBenefit(plan.ID, priorClaims, window)
	result := &EligibilityResult{
		Eligible:         true,
		RemainingBenefit: UnlimitedBenefit(),
		UsedBenefit:      used,
		Window:           window,
	}
	if plan.HasAnnualLimit() {
		result.RemainingBenefit = LimitedBenefit(plan.AnnualLimit.Sub(used))
	}

	switch {
	case !plan.IsActive:
		result.Reason = ReasonPlanInactive
	case !provider.IsActive:
		result.Reason = ReasonProviderInactive
	case plan.HasAnnualLimit() && !used.LessThan(*plan.AnnualLimit):
		result.Reason = ReasonAnnualLimitExhausted
	}
	result.Eligible = result.Reason == ""
	return result, nil
}

// UsedBenefit sums covered amounts of claims that consume the plan's annual benefit in window
func UsedBenefit(planID string, claims []entities.InsuranceClaim, window Window) decimal.Decimal {
	used := decimal.Zero
	for _, c := range claims {
		if c.PlanID != planID || !c.Status.CountsTowardBenefit() || !window.Contains(c.SubmittedAt) {
			continue
		}
		used = used.Add(c.CoveredAmount)
	}
	return used
}

package adjudication

import (
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// LineItem is a claim line submitted for adjudication
type LineItem struct {
	ItemID    string          `json:"item_id"`
	ItemType  string          `json:"item_type,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineCoverage is the adjudicated result for one line
type LineCoverage struct {
	LineItem
	LineTotal     decimal.Decimal `json:"line_total"`
	Percentage    decimal.Decimal `json:"coverage_percentage"`
	CoveredAmount decimal.Decimal `json:"covered_amount"`
	MatchKind     MatchKind       `json:"match_kind"`
	Capped        bool            `json:"capped"`
}

// CoverageResult is the outcome of ComputeCoverage
type CoverageResult struct {
	Lines            []LineCoverage  `json:"lines"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CoveredAmount    decimal.Decimal `json:"covered_amount"`
	PatientAmount    decimal.Decimal `json:"patient_amount"`
	BenefitShortfall decimal.Decimal `json:"benefit_shortfall"`
	ApprovalRequired bool            `json:"approval_required"`
}

// ValidatePlanForProvider checks that a claim's plan exists and belongs to the claim's provider
func ValidatePlanForProvider(plan *entities.InsurancePlan, providerID string) error {
	if plan == nil {
		return ErrPlanNotFound
	}
	if plan.ProviderID != providerID {
		return ErrProviderMismatch.WithMessage("plan %s belongs to provider %s, not %s", plan.Code, plan.ProviderID, providerID)
	}
	return nil
}

// ComputeCoverage splits each line between insurer and patient and caps the claim at the
// remaining annual benefit. Any invalid line rejects the whole claim.
func ComputeCoverage(plan *entities.InsurancePlan, lines []LineItem, remaining Benefit) (*CoverageResult, error) {
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if len(lines) == 0 {
		return nil, ErrInvalidLineItem.WithMessage("claim must contain at least one line item")
	}

	result := &CoverageResult{
		Lines:            make([]LineCoverage, 0, len(lines)),
		TotalAmount:      decimal.Zero,
		CoveredAmount:    decimal.Zero,
		BenefitShortfall: decimal.Zero,
		ApprovalRequired: plan.RequiresApproval,
	}

	for i, line := range lines {
		if !line.Quantity.IsPositive() {
			return nil, ErrInvalidLineItem.WithMessage("line %d: quantity must be greater than zero", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return nil, ErrInvalidLineItem.WithMessage("line %d: unit price must not be negative", i+1)
		}

		match := MatchCoverage(plan, line.ItemID, line.ItemType)
		lineTotal := RoundCents(line.Quantity.Mul(line.UnitPrice))
		covered := ApplyPercentage(lineTotal, match.Percentage)
		capped := false
		if max := match.MaxAmount(); max != nil && covered.GreaterThan(*max) {
			covered = RoundCents(*max)
			capped = true
		}
		if covered.GreaterThan(lineTotal) {
			covered = lineTotal
		}
		if match.RequiresApproval() {
			result.ApprovalRequired = true
		}

		result.Lines = append(result.Lines, LineCoverage{
			LineItem:      line,
			LineTotal:     lineTotal,
			Percentage:    match.Percentage,
			CoveredAmount: covered,
			MatchKind:     match.Kind,
			Capped:        capped,
		})
		result.TotalAmount = result.TotalAmount.Add(lineTotal)
		result.CoveredAmount = result.CoveredAmount.Add(covered)
	}

	if capped := remaining.Cap(result.CoveredAmount); capped.LessThan(result.CoveredAmount) {
		result.BenefitShortfall = result.CoveredAmount.Sub(capped)
		result.CoveredAmount = capped
		trimLines(result.Lines, result.BenefitShortfall)
	}

	result.PatientAmount = result.TotalAmount.Sub(result.CoveredAmount)
	return result, nil
}

// trimLines removes excess from line covered amounts, last line first, so the lines still
// sum to the claim-level covered amount after the annual-limit clamp.
func trimLines(lines []LineCoverage, excess decimal.Decimal) {
	for i := len(lines) - 1; i >= 0 && excess.IsPositive(); i-- {
		take := decimal.Min(lines[i].CoveredAmount, excess)
		lines[i].CoveredAmount = lines[i].CoveredAmount.Sub(take)
		lines[i].Capped = true
		excess = excess.Sub(take)
	}
}

// SumCovered adds up covered amounts of persisted claim items
func SumCovered(items []entities.ClaimItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.CoveredAmount)
	}
	return total
}

// SumLines adds up adjudicated line covered amounts
func SumLines(lines []LineCoverage) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.CoveredAmount)
	}
	return total
}

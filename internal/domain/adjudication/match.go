package adjudication

import (
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// MatchKind tags which rule supplied a line's coverage percentage
type MatchKind string

const (
	ExactItemMatch MatchKind = "item"
	CategoryMatch  MatchKind = "category"
	DefaultMatch   MatchKind = "default"
	// ManualMatch marks a line whose covered amount was set by an adjuster
	ManualMatch MatchKind = "manual"
)

// CoverageMatch is the outcome of the override lookup for one line
type CoverageMatch struct {
	Kind       MatchKind
	Percentage decimal.Decimal
	Override   *entities.PlanCoverageItem // nil for DefaultMatch
}

// MaxAmount returns the override cap, if any
func (m CoverageMatch) MaxAmount() *decimal.Decimal {
	if m.Override == nil {
		return nil
	}
	return m.Override.MaxAmount
}

// RequiresApproval reports whether the matched override demands manual approval
func (m CoverageMatch) RequiresApproval() bool {
	return m.Override != nil && m.Override.RequiresApproval
}

// MatchCoverage picks the coverage rule for a line in priority order:
// exact item id, then item type, then the plan default. Among overrides of the same
// priority the first one in plan order wins.
func MatchCoverage(plan *entities.InsurancePlan, itemID, itemType string) CoverageMatch {
	if itemID != "" {
		for i := range plan.CoverageItems {
			if plan.CoverageItems[i].ItemID == itemID {
				return matchFrom(ExactItemMatch, &plan.CoverageItems[i])
			}
		}
	}
	if itemType != "" {
		for i := range plan.CoverageItems {
			ov := &plan.CoverageItems[i]
			if ov.ItemID == "" && ov.ItemType == itemType {
				return matchFrom(CategoryMatch, ov)
			}
		}
	}
	return CoverageMatch{Kind: DefaultMatch, Percentage: plan.CoveragePercentage}
}

func matchFrom(kind MatchKind, ov *entities.PlanCoverageItem) CoverageMatch {
	return CoverageMatch{Kind: kind, Percentage: ov.CoveragePercentage, Override: ov}
}

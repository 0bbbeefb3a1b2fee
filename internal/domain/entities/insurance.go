package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// InsuranceProvider represents an insurer the pharmacy bills
type InsuranceProvider struct {
	ID               string           `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	Code             string           `json:"code" db:"code"`
	ContactPerson    string           `json:"contact_person,omitempty" db:"contact_person"`
	PhoneNumber      string           `json:"phone_number,omitempty" db:"phone_number"`
	Email            string           `json:"email,omitempty" db:"email"`
	Address          string           `json:"address,omitempty" db:"address"`
	Website          string           `json:"website,omitempty" db:"website"`
	IsActive         bool             `json:"is_active" db:"is_active"`
	ApprovalRequired bool             `json:"approval_required" db:"approval_required"`
	PaymentTermDays  int              `json:"payment_term_days" db:"payment_term_days"`
	DiscountRate     *decimal.Decimal `json:"discount_rate,omitempty" db:"discount_rate"` // 0-100
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// InsurancePlan is a benefit plan offered by a provider.
// CoveragePercentage and PatientCopay are stored independently; nothing assumes they sum to 100.
type InsurancePlan struct {
	ID                 string             `json:"id" db:"id"`
	ProviderID         string             `json:"provider_id" db:"provider_id"`
	Name               string             `json:"name" db:"name"`
	Code               string             `json:"code" db:"code"`
	CoveragePercentage decimal.Decimal    `json:"coverage_percentage" db:"coverage_percentage"`
	AnnualLimit        *decimal.Decimal   `json:"annual_limit,omitempty" db:"annual_limit"` // nil = unlimited
	RequiresApproval   bool               `json:"requires_approval" db:"requires_approval"`
	PatientCopay       decimal.Decimal    `json:"patient_copay" db:"patient_copay"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	CoverageItems      []PlanCoverageItem `json:"coverage_items,omitempty" db:"-"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// HasAnnualLimit reports whether the plan caps covered amounts per benefit year
func (p *InsurancePlan) HasAnnualLimit() bool {
	return p.AnnualLimit != nil
}

// PlanCoverageItem overrides the plan's blanket coverage for one item or one item category
type PlanCoverageItem struct {
	ID                 string           `json:"id" db:"id"`
	PlanID             string           `json:"plan_id" db:"plan_id"`
	ItemID             string           `json:"item_id,omitempty" db:"item_id"`
	ItemType           string           `json:"item_type,omitempty" db:"item_type"`
	CoveragePercentage decimal.Decimal  `json:"coverage_percentage" db:"coverage_percentage"`
	MaxAmount          *decimal.Decimal `json:"max_amount,omitempty" db:"max_amount"`
	RequiresApproval   bool             `json:"requires_approval" db:"requires_approval"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

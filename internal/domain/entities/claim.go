package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus represents the lifecycle state of an insurance claim
type ClaimStatus string

const (
	ClaimStatusPending           ClaimStatus = "PENDING"
	ClaimStatusSubmitted         ClaimStatus = "SUBMITTED"
	ClaimStatusUnderReview       ClaimStatus = "UNDER_REVIEW"
	ClaimStatusApproved          ClaimStatus = "APPROVED"
	ClaimStatusPartiallyApproved ClaimStatus = "PARTIALLY_APPROVED"
	ClaimStatusRejected          ClaimStatus = "REJECTED"
	ClaimStatusPaid              ClaimStatus = "PAID"
	ClaimStatusCancelled         ClaimStatus = "CANCELLED"
)

// AllClaimStatuses lists every status in lifecycle order
var AllClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusSubmitted,
	ClaimStatusUnderReview,
	ClaimStatusApproved,
	ClaimStatusPartiallyApproved,
	ClaimStatusRejected,
	ClaimStatusPaid,
	ClaimStatusCancelled,
}

// IsValid reports whether s is a known status
func (s ClaimStatus) IsValid() bool {
	for _, known := range AllClaimStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusPaid || s == ClaimStatusCancelled
}

// IsProcessed returns true for statuses that stamp processed_at
func (s ClaimStatus) IsProcessed() bool {
	switch s {
	case ClaimStatusApproved, ClaimStatusPartiallyApproved, ClaimStatusRejected, ClaimStatusPaid:
		return true
	}
	return false
}

// CountsTowardBenefit returns true when a claim in this status consumes annual benefit
func (s ClaimStatus) CountsTowardBenefit() bool {
	return s == ClaimStatusApproved || s == ClaimStatusPartiallyApproved || s == ClaimStatusPaid
}

// IsAdjustable returns true while covered amounts may still be changed
func (s ClaimStatus) IsAdjustable() bool {
	return s == ClaimStatusPending || s == ClaimStatusSubmitted || s == ClaimStatusUnderReview
}

// InsuranceClaim is a reimbursement request tied to a patient, a plan and its provider
type InsuranceClaim struct {
	ID               string          `json:"id" db:"id"`
	ClaimNumber      string          `json:"claim_number" db:"claim_number"`
	ProviderID       string          `json:"provider_id" db:"provider_id"`
	PlanID           string          `json:"plan_id" db:"plan_id"`
	PatientID        string          `json:"patient_id" db:"patient_id"`
	SaleID           *string         `json:"sale_id,omitempty" db:"sale_id"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	CoveredAmount    decimal.Decimal `json:"covered_amount" db:"covered_amount"`
	PatientAmount    decimal.Decimal `json:"patient_amount" db:"patient_amount"`
	ApprovalRequired bool            `json:"approval_required" db:"approval_required"`
	Status           ClaimStatus     `json:"status" db:"status"`
	SubmittedAt      time.Time       `json:"submitted_at" db:"submitted_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	Notes            string          `json:"notes,omitempty" db:"notes"`
	Items            []ClaimItem     `json:"items" db:"-"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can derive a new claim state without touching the original
func (c *InsuranceClaim) Clone() *InsuranceClaim {
	out := *c
	if c.SaleID != nil {
		sale := *c.SaleID
		out.SaleID = &sale
	}
	if c.ProcessedAt != nil {
		processed := *c.ProcessedAt
		out.ProcessedAt = &processed
	}
	out.Items = make([]ClaimItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// ClaimItem is one line of a claim
type ClaimItem struct {
	ID            string          `json:"id" db:"id"`
	ClaimID       string          `json:"claim_id" db:"claim_id"`
	LineNumber    int             `json:"line_number" db:"line_number"`
	ItemID        string          `json:"item_id" db:"item_id"`
	ItemType      string          `json:"item_type,omitempty" db:"item_type"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total" db:"line_total"`
	CoveredAmount decimal.Decimal `json:"covered_amount" db:"covered_amount"`
	MatchKind     string          `json:"match_kind,omitempty" db:"match_kind"`
}

// ClaimStatistics aggregates claims for reporting
type ClaimStatistics struct {
	TotalClaims        int                           `json:"total_claims"`
	TotalAmount        decimal.Decimal               `json:"total_amount"`
	CoveredAmount      decimal.Decimal               `json:"covered_amount"`
	PaidAmount         decimal.Decimal               `json:"paid_amount"`
	ApprovalRate       float64                       `json:"approval_rate"`
	ByStatus           map[ClaimStatus]StatusSummary `json:"by_status"`
	PendingReviewCount int                           `json:"pending_review_count"`
}

// StatusSummary holds the aggregate for a single claim status
type StatusSummary struct {
	Count         int             `json:"count" db:"count"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	CoveredAmount decimal.Decimal `json:"covered_amount" db:"covered_amount"`
}

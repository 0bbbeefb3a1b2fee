package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// InsuranceEventType represents the type of insurance event
type InsuranceEventType string

const (
	InsuranceEventClaimCreated       InsuranceEventType = "claim_created"
	InsuranceEventClaimStatusChanged InsuranceEventType = "claim_status_changed"
	InsuranceEventClaimAdjusted      InsuranceEventType = "claim_adjusted"
	InsuranceEventPlanUpdated        InsuranceEventType = "plan_updated"
	InsuranceEventProviderUpdated    InsuranceEventType = "provider_updated"
)

// InsuranceEvent is published whenever a claim, plan or provider changes
type InsuranceEvent struct {
	ID             string                 `json:"id"`
	EventType      InsuranceEventType     `json:"event_type"`
	ClaimID        string                 `json:"claim_id,omitempty"`
	ClaimNumber    string                 `json:"claim_number,omitempty"`
	PlanID         string                 `json:"plan_id,omitempty"`
	ProviderID     string                 `json:"provider_id,omitempty"`
	PatientID      string                 `json:"patient_id,omitempty"`
	Status         ClaimStatus            `json:"status,omitempty"`
	PreviousStatus ClaimStatus            `json:"previous_status,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	ChangedFields  map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewClaimEvent creates an event describing a claim change
func NewClaimEvent(eventType InsuranceEventType, claim *InsuranceClaim, previous ClaimStatus, changedFields map[string]interface{}) *InsuranceEvent {
	return &InsuranceEvent{
		ID:             generateEventID(),
		EventType:      eventType,
		ClaimID:        claim.ID,
		ClaimNumber:    claim.ClaimNumber,
		PlanID:         claim.PlanID,
		ProviderID:     claim.ProviderID,
		PatientID:      claim.PatientID,
		Status:         claim.Status,
		PreviousStatus: previous,
		Timestamp:      time.Now().UTC(),
		ChangedFields:  changedFields,
	}
}

// NewPlanEvent creates an event describing a plan change
func NewPlanEvent(plan *InsurancePlan) *InsuranceEvent {
	return &InsuranceEvent{
		ID:         generateEventID(),
		EventType:  InsuranceEventPlanUpdated,
		PlanID:     plan.ID,
		ProviderID: plan.ProviderID,
		Timestamp:  time.Now().UTC(),
	}
}

// NewProviderEvent creates an event describing a provider change
func NewProviderEvent(provider *InsuranceProvider) *InsuranceEvent {
	return &InsuranceEvent{
		ID:         generateEventID(),
		EventType:  InsuranceEventProviderUpdated,
		ProviderID: provider.ID,
		Timestamp:  time.Now().UTC(),
		ChangedFields: map[string]interface{}{
			"is_active": provider.IsActive,
		},
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}

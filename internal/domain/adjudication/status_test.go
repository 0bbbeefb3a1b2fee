package adjudication_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

func claimIn(status entities.ClaimStatus) *entities.InsuranceClaim {
	return &entities.InsuranceClaim{
		ID:            "claim-1",
		ClaimNumber:   "CLM-20260101-ABCDEF12",
		Status:        status,
		TotalAmount:   d("100.00"),
		CoveredAmount: d("80.00"),
		SubmittedAt:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Items:         []entities.ClaimItem{{ID: "item-1", LineNumber: 1}},
	}
}

func TestTransition_SubmittedToPaidIsRejected(t *testing.T) {
	claim := claimIn(entities.ClaimStatusSubmitted)

	next, err := adjudication.Transition(claim, entities.ClaimStatusPaid, "", time.Now())

	assert.Nil(t, next)
	assert.True(t, errors.Is(err, adjudication.ErrInvalidTransition))
	assert.Equal(t, entities.ClaimStatusSubmitted, claim.Status)
}

func TestTransition_ProcessedAtSetOnce(t *testing.T) {
	claim := claimIn(entities.ClaimStatusSubmitted)
	approvedAt := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	paidAt := approvedAt.Add(72 * time.Hour)

	approved, err := adjudication.Transition(claim, entities.ClaimStatusApproved, "", approvedAt)
	require.NoError(t, err)
	require.NotNil(t, approved.ProcessedAt)
	assert.Equal(t, approvedAt, *approved.ProcessedAt)

	paid, err := adjudication.Transition(approved, entities.ClaimStatusPaid, "", paidAt)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusPaid, paid.Status)
	assert.Equal(t, approvedAt, *paid.ProcessedAt)
	assert.Equal(t, paidAt, paid.UpdatedAt)
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	claim := claimIn(entities.ClaimStatusSubmitted)

	next, err := adjudication.Transition(claim, entities.ClaimStatusUnderReview, "checking", time.Now())
	require.NoError(t, err)

	assert.Equal(t, entities.ClaimStatusSubmitted, claim.Status)
	assert.Empty(t, claim.Notes)
	assert.Equal(t, entities.ClaimStatusUnderReview, next.Status)
	assert.Nil(t, next.ProcessedAt, "under review is not a processed state")
	next.Items[0].LineNumber = 9
	assert.Equal(t, 1, claim.Items[0].LineNumber)
}

func TestTransition_AllPairs(t *testing.T) {
	allowed := map[entities.ClaimStatus][]entities.ClaimStatus{
		entities.ClaimStatusPending:           {entities.ClaimStatusSubmitted, entities.ClaimStatusCancelled},
		entities.ClaimStatusSubmitted:         {entities.ClaimStatusUnderReview, entities.ClaimStatusApproved, entities.ClaimStatusPartiallyApproved, entities.ClaimStatusRejected, entities.ClaimStatusCancelled},
		entities.ClaimStatusUnderReview:       {entities.ClaimStatusApproved, entities.ClaimStatusPartiallyApproved, entities.ClaimStatusRejected, entities.ClaimStatusCancelled},
		entities.ClaimStatusApproved:          {entities.ClaimStatusPaid, entities.ClaimStatusCancelled},
		entities.ClaimStatusPartiallyApproved: {entities.ClaimStatusPaid, entities.ClaimStatusCancelled},
	}

	for _, from := range entities.AllClaimStatuses {
		for _, to := range entities.AllClaimStatuses {
			claim := claimIn(from)
			next, err := adjudication.Transition(claim, to, "", time.Now())

			if contains(allowed[from], to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, next.Status)
				assert.True(t, adjudication.CanTransition(from, to))
				continue
			}
			assert.True(t, errors.Is(err, adjudication.ErrInvalidTransition), "%s -> %s", from, to)
			assert.Equal(t, from, claim.Status)
			assert.False(t, adjudication.CanTransition(from, to))
		}
		if from.IsTerminal() {
			assert.Empty(t, adjudication.AllowedTransitions(from))
		}
	}
}

func TestTransition_PartialApprovalRequiresShortfall(t *testing.T) {
	claim := claimIn(entities.ClaimStatusUnderReview)
	claim.CoveredAmount = claim.TotalAmount

	_, err := adjudication.Transition(claim, entities.ClaimStatusPartiallyApproved, "", time.Now())
	assert.True(t, errors.Is(err, adjudication.ErrInconsistentPartialApproval))

	claim.CoveredAmount = d("99.99")
	next, err := adjudication.Transition(claim, entities.ClaimStatusPartiallyApproved, "", time.Now())
	require.NoError(t, err)
	assert.NotNil(t, next.ProcessedAt)
}

func TestTransition_NotesAccumulate(t *testing.T) {
	claim := claimIn(entities.ClaimStatusSubmitted)
	t1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	review, err := adjudication.Transition(claim, entities.ClaimStatusUnderReview, "needs prescription copy", t1)
	require.NoError(t, err)
	approved, err := adjudication.Transition(review, entities.ClaimStatusApproved, "  copy received ", t2)
	require.NoError(t, err)
	paid, err := adjudication.Transition(approved, entities.ClaimStatusPaid, "", t2)
	require.NoError(t, err)

	assert.Equal(t,
		"[2026-03-01T08:00:00Z UNDER_REVIEW] needs prescription copy\n[2026-03-01T09:00:00Z APPROVED] copy received",
		paid.Notes)
}

func contains(list []entities.ClaimStatus, s entities.ClaimStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

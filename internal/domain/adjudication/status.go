package adjudication

import (
	"strings"
	"time"

	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

var transitions = map[entities.ClaimStatus][]entities.ClaimStatus{
	entities.ClaimStatusPending: {
		entities.ClaimStatusSubmitted,
		entities.ClaimStatusCancelled,
	},
	entities.ClaimStatusSubmitted: {
		entities.ClaimStatusUnderReview,
		entities.ClaimStatusApproved,
		entities.ClaimStatusPartiallyApproved,
		entities.ClaimStatusRejected,
		entities.ClaimStatusCancelled,
	},
	entities.ClaimStatusUnderReview: {
		entities.ClaimStatusApproved,
		entities.ClaimStatusPartiallyApproved,
		entities.ClaimStatusRejected,
		entities.ClaimStatusCancelled,
	},
	entities.ClaimStatusApproved: {
		entities.ClaimStatusPaid,
		entities.ClaimStatusCancelled,
	},
	entities.ClaimStatusPartiallyApproved: {
		entities.ClaimStatusPaid,
		entities.ClaimStatusCancelled,
	},
}

// AllowedTransitions returns the statuses reachable from the given one
func AllowedTransitions(from entities.ClaimStatus) []entities.ClaimStatus {
	allowed := transitions[from]
	out := make([]entities.ClaimStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to entities.ClaimStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of claim moved to target. The input claim is never modified,
// so a rejected transition leaves it exactly as it was.
func Transition(claim *entities.InsuranceClaim, target entities.ClaimStatus, notes string, at time.Time) (*entities.InsuranceClaim, error) {
	if !CanTransition(claim.Status, target) {
		return nil, ErrInvalidTransition.WithMessage("claim %s cannot move from %s to %s", claim.ClaimNumber, claim.Status, target)
	}
	if target == entities.ClaimStatusPartiallyApproved && !claim.CoveredAmount.LessThan(claim.TotalAmount) {
		return nil, ErrInconsistentPartialApproval.WithMessage(
			"claim %s covers %s of %s; approve it fully instead",
			claim.ClaimNumber, claim.CoveredAmount.StringFixed(2), claim.TotalAmount.StringFixed(2))
	}

	at = at.UTC()
	next := claim.Clone()
	next.Status = target
	next.UpdatedAt = at
	if target.IsProcessed() && next.ProcessedAt == nil {
		next.ProcessedAt = &at
	}
	next.Notes = AppendNote(claim.Notes, target, notes, at)
	return next, nil
}

// AppendNote adds a stamped note line; existing notes are never overwritten
func AppendNote(existing string, status entities.ClaimStatus, note string, at time.Time) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	line := "[" + at.UTC().Format(time.RFC3339) + " " + string(status) + "] " + note
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

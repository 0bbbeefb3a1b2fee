package adjudication

import (
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

// Error codes surfaced to API callers
const (
	CodeInvalidLineItem             = "INVALID_LINE_ITEM"
	CodePlanNotFound                = "PLAN_NOT_FOUND"
	CodeProviderMismatch            = "PROVIDER_MISMATCH"
	CodeInvalidTransition           = "INVALID_TRANSITION"
	CodeInconsistentPartialApproval = "INCONSISTENT_PARTIAL_APPROVAL"
	CodeNotEligible                 = "NOT_ELIGIBLE"
	CodeClaimNotAdjustable          = "CLAIM_NOT_ADJUSTABLE"
	CodeBenefitExceeded             = "BENEFIT_LIMIT_EXCEEDED"
)

// Sentinels for errors.Is. Returned errors carry a specific message but match these by code.
var (
	ErrInvalidLineItem             = &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Code: CodeInvalidLineItem, Message: "invalid line item"}
	ErrPlanNotFound                = &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Code: CodePlanNotFound, Message: "plan not found"}
	ErrProviderMismatch            = &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Code: CodeProviderMismatch, Message: "plan does not belong to provider"}
	ErrInvalidTransition           = &apperrors.AppError{Type: apperrors.ErrorTypeRule, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrInconsistentPartialApproval = &apperrors.AppError{Type: apperrors.ErrorTypeRule, Code: CodeInconsistentPartialApproval, Message: "partial approval requires covered amount below total"}
	ErrNotEligible                 = &apperrors.AppError{Type: apperrors.ErrorTypeRule, Code: CodeNotEligible, Message: "patient is not eligible for this plan"}
	ErrClaimNotAdjustable          = &apperrors.AppError{Type: apperrors.ErrorTypeRule, Code: CodeClaimNotAdjustable, Message: "claim coverage can no longer be changed"}
	ErrBenefitExceeded             = &apperrors.AppError{Type: apperrors.ErrorTypeRule, Code: CodeBenefitExceeded, Message: "covered amount exceeds remaining annual benefit"}
)

// NotEligibleError reports an ineligible patient, carrying the reason code in the message
func NotEligibleError(reason IneligibilityReason) *apperrors.AppError {
	return ErrNotEligible.WithMessage("%s: %s", reason, reason.Message())
}

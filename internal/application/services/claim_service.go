package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

// CreateClaimRequest is the input of CreateClaim
type CreateClaimRequest struct {
	ProviderID string                  `json:"provider_id"`
	PlanID     string                  `json:"plan_id"`
	PatientID  string                  `json:"patient_id"`
	SaleID     *string                 `json:"sale_id,omitempty"`
	Items      []adjudication.LineItem `json:"items"`
	Notes      string                  `json:"notes,omitempty"`
	Submit     bool                    `json:"submit"`
}

// ItemAdjustment sets the covered amount of one persisted claim line
type ItemAdjustment struct {
	ItemID        string          `json:"item_id"`
	CoveredAmount decimal.Decimal `json:"covered_amount"`
}

// ClaimServiceOption configures optional collaborators of ClaimService
type ClaimServiceOption func(*ClaimService)

// WithClaimSearch indexes claims for full-text search
func WithClaimSearch(searchRepo repositories.ClaimSearchRepository) ClaimServiceOption {
	return func(s *ClaimService) { s.searchRepo = searchRepo }
}

// WithClaimEvents publishes claim events
func WithClaimEvents(eventBus providers.EventBus) ClaimServiceOption {
	return func(s *ClaimService) { s.eventBus = eventBus }
}

// WithClaimMetrics records claim metrics
func WithClaimMetrics(metrics *observability.Metrics) ClaimServiceOption {
	return func(s *ClaimService) { s.metrics = metrics }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ClaimServiceOption {
	return func(s *ClaimService) { s.now = now }
}

// ClaimService adjudicates and tracks insurance claims
type ClaimService struct {
	claimRepo    repositories.ClaimRepository
	statsRepo    repositories.ClaimStatisticsRepository
	planRepo     repositories.PlanRepository
	providerRepo repositories.InsuranceRepository
	searchRepo   repositories.ClaimSearchRepository
	eventBus     providers.EventBus
	metrics      *observability.Metrics
	benefitYear  adjudication.BenefitYear
	now          func() time.Time
}

// NewClaimService creates a new claim service
func NewClaimService(
	claimRepo repositories.ClaimRepository,
	statsRepo repositories.ClaimStatisticsRepository,
	planRepo repositories.PlanRepository,
	providerRepo repositories.InsuranceRepository,
	benefitYear adjudication.BenefitYear,
	opts ...ClaimServiceOption,
) *ClaimService {
	s := &ClaimService{
		claimRepo:    claimRepo,
		statsRepo:    statsRepo,
		planRepo:     planRepo,
		providerRepo: providerRepo,
		benefitYear:  benefitYear,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyEligibility reports whether patientID may file a claim against planID at the given time
func (s *ClaimService) VerifyEligibility(ctx context.Context, patientID, planID string, at time.Time) (*adjudication.EligibilityResult, error) {
	if strings.TrimSpace(patientID) == "" || strings.TrimSpace(planID) == "" {
		return nil, apperrors.NewValidationError("patient_id and plan_id are required")
	}
	if at.IsZero() {
		at = s.now()
	}

	plan, provider, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	window := s.benefitYear.Window(at)
	prior, err := s.claimRepo.ListPriorClaims(ctx, patientID, planID, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	result, err := adjudication.CheckEligibility(plan, provider, prior, window)
	if err != nil {
		return nil, err
	}
	observability.RecordEligibilityCheck(ctx, s.metrics, result.Eligible, string(result.Reason))
	return result, nil
}

// CreateClaim adjudicates and stores a new claim. Eligibility, coverage and the insert run
// under a lock on (patient, plan) so concurrent claims cannot overspend the annual limit.
func (s *ClaimService) CreateClaim(ctx context.Context, req CreateClaimRequest) (*entities.InsuranceClaim, error) {
	ctx, span := observability.StartSpan(ctx, "ClaimService.CreateClaim")
	defer span.End()

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	plan, provider, err := s.loadPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if err := adjudication.ValidatePlanForProvider(plan, req.ProviderID); err != nil {
		return nil, err
	}

	var claim *entities.InsuranceClaim
	err = s.claimRepo.WithPatientPlanLock(ctx, req.PatientID, req.PlanID, func(ctx context.Context, tx repositories.ClaimRepository) error {
		now := s.now()
		window := s.benefitYear.Window(now)
		prior, err := tx.ListPriorClaims(ctx, req.PatientID, req.PlanID, window.Start, window.End)
		if err != nil {
			return err
		}

		eligibility, err := adjudication.CheckEligibility(plan, provider, prior, window)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return adjudication.NotEligibleError(eligibility.Reason)
		}

		coverage, err := adjudication.ComputeCoverage(plan, req.Items, eligibility.RemainingBenefit)
		if err != nil {
			return err
		}

		claim = buildClaim(req, coverage, now)
		claim.ApprovalRequired = coverage.ApprovalRequired || provider.ApprovalRequired
		if req.Submit {
			claim, err = adjudication.Transition(claim, entities.ClaimStatusSubmitted, "", now)
			if err != nil {
				return err
			}
		}
		return tx.Create(ctx, claim)
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	covered, _ := claim.CoveredAmount.Float64()
	observability.RecordClaimCreated(ctx, s.metrics, claim.PlanID, covered, claim.ApprovalRequired)
	s.afterWrite(ctx, entities.NewClaimEvent(entities.InsuranceEventClaimCreated, claim, "", map[string]interface{}{
		"covered_amount": claim.CoveredAmount.StringFixed(2),
		"total_amount":   claim.TotalAmount.StringFixed(2),
	}), claim)

	log.Info().
		Str("claim_id", claim.ID).
		Str("claim_number", claim.ClaimNumber).
		Str("status", string(claim.Status)).
		Msg("claim created")
	return claim, nil
}

// TransitionClaim moves a claim to target, appending notes to its history
func (s *ClaimService) TransitionClaim(ctx context.Context, id string, target entities.ClaimStatus, notes string) (*entities.InsuranceClaim, error) {
	if !target.IsValid() {
		return nil, apperrors.NewValidationError("unknown claim status " + string(target))
	}

	current, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var next *entities.InsuranceClaim
	err = s.claimRepo.WithPatientPlanLock(ctx, current.PatientID, current.PlanID, func(ctx context.Context, tx repositories.ClaimRepository) error {
		locked, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		current = locked
		next, err = adjudication.Transition(locked, target, notes, s.now())
		if err != nil {
			return err
		}
		if target.CountsTowardBenefit() && !locked.Status.CountsTowardBenefit() {
			if err := s.checkBenefitFits(ctx, tx, locked); err != nil {
				return err
			}
		}
		return tx.UpdateStatus(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordClaimTransition(ctx, s.metrics, string(current.Status), string(next.Status))
	s.afterWrite(ctx, entities.NewClaimEvent(entities.InsuranceEventClaimStatusChanged, next, current.Status, nil), next)
	return next, nil
}

// UpdateClaimItems sets covered amounts line by line. Only claims that are still open may be
// adjusted, and the new total must fit the remaining benefit of the year.
func (s *ClaimService) UpdateClaimItems(ctx context.Context, id string, adjustments []ItemAdjustment, notes string) (*entities.InsuranceClaim, error) {
	if len(adjustments) == 0 {
		return nil, apperrors.NewValidationError("at least one item adjustment is required")
	}

	current, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, provider, err := s.loadPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}

	var updated *entities.InsuranceClaim
	err = s.claimRepo.WithPatientPlanLock(ctx, current.PatientID, current.PlanID, func(ctx context.Context, tx repositories.ClaimRepository) error {
		claim, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !claim.Status.IsAdjustable() {
			return adjudication.ErrClaimNotAdjustable.WithMessage("claim %s is %s", claim.ClaimNumber, claim.Status)
		}

		next := claim.Clone()
		if err := applyAdjustments(plan, next, adjustments); err != nil {
			return err
		}

		remaining, err := s.remainingExcluding(ctx, tx, plan, provider, claim)
		if err != nil {
			return err
		}
		covered := adjudication.SumCovered(next.Items)
		if !remaining.Unlimited && covered.GreaterThan(remaining.Amount) {
			return adjudication.ErrBenefitExceeded.WithMessage(
				"claim %s would cover %s but only %s remains",
				claim.ClaimNumber, covered.StringFixed(2), remaining.Amount.StringFixed(2))
		}

		now := s.now()
		next.CoveredAmount = covered
		next.PatientAmount = next.TotalAmount.Sub(covered)
		next.UpdatedAt = now
		next.Notes = adjudication.AppendNote(next.Notes, next.Status, notes, now)
		updated = next
		return tx.UpdateCoverage(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, entities.NewClaimEvent(entities.InsuranceEventClaimAdjusted, updated, "", map[string]interface{}{
		"covered_amount": updated.CoveredAmount.StringFixed(2),
	}), updated)
	return updated, nil
}

// ReadjudicateClaim recomputes an open claim's coverage from the plan's current terms
func (s *ClaimService) ReadjudicateClaim(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	current, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, provider, err := s.loadPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}

	var updated *entities.InsuranceClaim
	err = s.claimRepo.WithPatientPlanLock(ctx, current.PatientID, current.PlanID, func(ctx context.Context, tx repositories.ClaimRepository) error {
		claim, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !claim.Status.IsAdjustable() {
			return adjudication.ErrClaimNotAdjustable.WithMessage("claim %s is %s", claim.ClaimNumber, claim.Status)
		}

		remaining, err := s.remainingExcluding(ctx, tx, plan, provider, claim)
		if err != nil {
			return err
		}

		lines := make([]adjudication.LineItem, len(claim.Items))
		for i, item := range claim.Items {
			lines[i] = adjudication.LineItem{
				ItemID:    item.ItemID,
				ItemType:  item.ItemType,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			}
		}
		coverage, err := adjudication.ComputeCoverage(plan, lines, remaining)
		if err != nil {
			return err
		}

		next := claim.Clone()
		for i := range next.Items {
			next.Items[i].LineTotal = coverage.Lines[i].LineTotal
			next.Items[i].CoveredAmount = coverage.Lines[i].CoveredAmount
			next.Items[i].MatchKind = string(coverage.Lines[i].MatchKind)
		}
		next.TotalAmount = coverage.TotalAmount
		next.CoveredAmount = coverage.CoveredAmount
		next.PatientAmount = coverage.PatientAmount
		now := s.now()
		next.ApprovalRequired = coverage.ApprovalRequired || provider.ApprovalRequired
		next.UpdatedAt = now
		next.Notes = adjudication.AppendNote(next.Notes, next.Status,
			fmt.Sprintf("re-adjudicated: covered %s -> %s", claim.CoveredAmount.StringFixed(2), coverage.CoveredAmount.StringFixed(2)), now)
		updated = next
		return tx.UpdateCoverage(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, entities.NewClaimEvent(entities.InsuranceEventClaimAdjusted, updated, "", map[string]interface{}{
		"covered_amount": updated.CoveredAmount.StringFixed(2),
		"readjudicated":  true,
	}), updated)
	return updated, nil
}

// GetClaim retrieves a claim with its line items
func (s *ClaimService) GetClaim(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	return s.claimRepo.GetByID(ctx, id)
}

// GetClaimByNumber retrieves a claim by its claim number
func (s *ClaimService) GetClaimByNumber(ctx context.Context, number string) (*entities.InsuranceClaim, error) {
	return s.claimRepo.GetByNumber(ctx, number)
}

// ListClaims lists claims without their line items
func (s *ClaimService) ListClaims(ctx context.Context, filter repositories.ClaimFilter) ([]*entities.InsuranceClaim, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError("unknown claim status " + string(filter.Status))
	}
	return s.claimRepo.List(ctx, filter)
}

// SearchClaims runs a full-text search and returns claims in rank order
func (s *ClaimService) SearchClaims(ctx context.Context, params repositories.ClaimSearchParams) ([]*entities.InsuranceClaim, int, error) {
	if s.searchRepo == nil {
		return nil, 0, apperrors.NewExternalError("claim search is not configured", nil)
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, 0, apperrors.NewValidationError("unknown claim status " + string(params.Status))
	}

	result, err := s.searchRepo.Search(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if len(result.IDs) == 0 {
		return []*entities.InsuranceClaim{}, result.Found, nil
	}

	claims, err := s.claimRepo.List(ctx, repositories.ClaimFilter{IDs: result.IDs, Limit: len(result.IDs)})
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[string]*entities.InsuranceClaim, len(claims))
	for _, c := range claims {
		byID[c.ID] = c
	}
	ordered := make([]*entities.InsuranceClaim, 0, len(claims))
	for _, id := range result.IDs {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, result.Found, nil
}

// Statistics aggregates claims matching filter
func (s *ClaimService) Statistics(ctx context.Context, filter repositories.ClaimFilter) (*entities.ClaimStatistics, error) {
	return s.statsRepo.Statistics(ctx, filter)
}

// ReindexClaims pushes every stored claim to the search index and returns how many were indexed
func (s *ClaimService) ReindexClaims(ctx context.Context, batchSize int) (int, error) {
	if s.searchRepo == nil {
		return 0, apperrors.NewExternalError("claim search is not configured", nil)
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		page, err := s.claimRepo.List(ctx, repositories.ClaimFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		for _, summary := range page {
			claim, err := s.claimRepo.GetByID(ctx, summary.ID)
			if err != nil {
				return indexed, err
			}
			if err := s.searchRepo.Index(ctx, claim); err != nil {
				return indexed, err
			}
			indexed++
		}
		if len(page) < batchSize {
			return indexed, nil
		}
	}
}

// loadPlan fetches a plan with its coverage items and the plan's provider
func (s *ClaimService) loadPlan(ctx context.Context, planID string) (*entities.InsurancePlan, *entities.InsuranceProvider, error) {
	plan, err := s.planRepo.GetWithCoverage(ctx, planID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, adjudication.ErrPlanNotFound.WithMessage("plan %s not found", planID)
		}
		return nil, nil, err
	}
	provider, err := s.providerRepo.GetByID(ctx, plan.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	return plan, provider, nil
}

// remainingExcluding computes the remaining benefit of claim's benefit year, ignoring claim itself
func (s *ClaimService) remainingExcluding(ctx context.Context, tx repositories.ClaimRepository, plan *entities.InsurancePlan, provider *entities.InsuranceProvider, claim *entities.InsuranceClaim) (adjudication.Benefit, error) {
	window := s.benefitYear.Window(claim.SubmittedAt)
	prior, err := tx.ListPriorClaims(ctx, claim.PatientID, claim.PlanID, window.Start, window.End)
	if err != nil {
		return adjudication.Benefit{}, err
	}
	others := prior[:0:0]
	for _, c := range prior {
		if c.ID != claim.ID {
			others = append(others, c)
		}
	}
	eligibility, err := adjudication.CheckEligibility(plan, provider, others, window)
	if err != nil {
		return adjudication.Benefit{}, err
	}
	return eligibility.RemainingBenefit, nil
}

// checkBenefitFits rejects a claim whose covered amount no longer fits the remaining benefit.
// Open claims do not consume the benefit, so several can be sized against the same remainder.
func (s *ClaimService) checkBenefitFits(ctx context.Context, tx repositories.ClaimRepository, claim *entities.InsuranceClaim) error {
	plan, provider, err := s.loadPlan(ctx, claim.PlanID)
	if err != nil {
		return err
	}
	remaining, err := s.remainingExcluding(ctx, tx, plan, provider, claim)
	if err != nil {
		return err
	}
	if !remaining.Unlimited && claim.CoveredAmount.GreaterThan(remaining.Amount) {
		return adjudication.ErrBenefitExceeded.WithMessage(
			"claim %s covers %s but only %s remains; re-adjudicate before approving",
			claim.ClaimNumber, claim.CoveredAmount.StringFixed(2), remaining.Amount.StringFixed(2))
	}
	return nil
}

// afterWrite publishes the event and refreshes the search index. Neither may fail the write.
func (s *ClaimService) afterWrite(ctx context.Context, event *entities.InsuranceEvent, claim *entities.InsuranceClaim) {
	if s.eventBus != nil {
		for _, channel := range []string{providers.EventChannelClaimUpdates, providers.GetClaimChannel(claim.ID)} {
			if err := s.eventBus.Publish(ctx, channel, event); err != nil {
				log.Warn().Err(err).Str("claim_id", claim.ID).Str("channel", channel).Msg("failed to publish claim event")
			}
		}
	}
	if s.searchRepo != nil {
		if err := s.searchRepo.Index(ctx, claim); err != nil {
			log.Warn().Err(err).Str("claim_id", claim.ID).Msg("failed to index claim")
		}
	}
}

func validateCreateRequest(req CreateClaimRequest) error {
	switch {
	case strings.TrimSpace(req.PatientID) == "":
		return apperrors.NewValidationError("patient_id is required")
	case strings.TrimSpace(req.PlanID) == "":
		return apperrors.NewValidationError("plan_id is required")
	case strings.TrimSpace(req.ProviderID) == "":
		return apperrors.NewValidationError("provider_id is required")
	case len(req.Items) == 0:
		return adjudication.ErrInvalidLineItem.WithMessage("claim must contain at least one line item")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ItemID) == "" {
			return adjudication.ErrInvalidLineItem.WithMessage("line %d: item_id is required", i+1)
		}
	}
	return nil
}

func buildClaim(req CreateClaimRequest, coverage *adjudication.CoverageResult, now time.Time) *entities.InsuranceClaim {
	claimID := uuid.New().String()
	claim := &entities.InsuranceClaim{
		ID:               claimID,
		ClaimNumber:      newClaimNumber(now),
		ProviderID:       req.ProviderID,
		PlanID:           req.PlanID,
		PatientID:        req.PatientID,
		SaleID:           req.SaleID,
		TotalAmount:      coverage.TotalAmount,
		CoveredAmount:    coverage.CoveredAmount,
		PatientAmount:    coverage.PatientAmount,
		ApprovalRequired: coverage.ApprovalRequired,
		Status:           entities.ClaimStatusPending,
		SubmittedAt:      now,
		Notes:            adjudication.AppendNote("", entities.ClaimStatusPending, req.Notes, now),
		Items:            make([]entities.ClaimItem, len(coverage.Lines)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, line := range coverage.Lines {
		claim.Items[i] = entities.ClaimItem{
			ID:            uuid.New().String(),
			ClaimID:       claimID,
			LineNumber:    i + 1,
			ItemID:        line.ItemID,
			ItemType:      line.ItemType,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     line.LineTotal,
			CoveredAmount: line.CoveredAmount,
			MatchKind:     string(line.MatchKind),
		}
	}
	return claim
}

// newClaimNumber returns CLM-YYYYMMDD-XXXXXXXX
func newClaimNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "CLM-" + at.UTC().Format("20060102") + "-" + suffix
}

// applyAdjustments sets covered amounts on claim's lines. Each amount is bounded by the line
// total and by the cap of the coverage override the line matches.
func applyAdjustments(plan *entities.InsurancePlan, claim *entities.InsuranceClaim, adjustments []ItemAdjustment) error {
	index := make(map[string]int, len(claim.Items))
	for i, item := range claim.Items {
		index[item.ID] = i
	}
	for _, adj := range adjustments {
		i, ok := index[adj.ItemID]
		if !ok {
			return adjudication.ErrInvalidLineItem.WithMessage("claim %s has no item %s", claim.ClaimNumber, adj.ItemID)
		}
		item := &claim.Items[i]
		if adj.CoveredAmount.IsNegative() || adj.CoveredAmount.GreaterThan(item.LineTotal) {
			return adjudication.ErrInvalidLineItem.WithMessage(
				"line %d: covered amount must be between 0 and %s", item.LineNumber, item.LineTotal.StringFixed(2))
		}
		if max := adjudication.MatchCoverage(plan, item.ItemID, item.ItemType).MaxAmount(); max != nil && adj.CoveredAmount.GreaterThan(*max) {
			return adjudication.ErrInvalidLineItem.WithMessage(
				"line %d: covered amount exceeds the coverage cap of %s", item.LineNumber, max.StringFixed(2))
		}
		item.CoveredAmount = adjudication.RoundCents(adj.CoveredAmount)
		item.MatchKind = string(adjudication.ManualMatch)
	}
	return nil
}

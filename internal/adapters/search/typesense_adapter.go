package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	tsclient "github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/typesense"
)

const defaultPageSize = 20

// TypesenseAdapter implements claim search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements ClaimSearchRepository
var _ repositories.ClaimSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a claim document
func (a *TypesenseAdapter) Index(ctx context.Context, claim *entities.InsuranceClaim) error {
	_, err := a.client.Client().Collection(tsclient.ClaimsCollection).Documents().Upsert(ctx, buildClaimDocument(claim))
	if err != nil {
		return fmt.Errorf("failed to index claim: %w", err)
	}
	return nil
}

// Delete removes a claim from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ClaimsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete claim from index: %w", err)
	}
	return nil
}

// Search runs a full-text query over claim numbers, patients, items and notes
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.ClaimSearchParams) (*repositories.ClaimSearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		query = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("claim_number,patient_id,item_ids,notes"),
		SortBy:  pointer.String("submitted_at:desc"),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if filter := buildFilter(params); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	result, err := a.client.Client().Collection(tsclient.ClaimsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search claims: %w", err)
	}

	out := &repositories.ClaimSearchResult{IDs: []string{}}
	if result.Found != nil {
		out.Found = *result.Found
	}
	if result.Hits == nil {
		return out, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			out.IDs = append(out.IDs, id)
		}
	}

	return out, nil
}

func buildClaimDocument(claim *entities.InsuranceClaim) map[string]interface{} {
	itemIDs := make([]string, 0, len(claim.Items))
	seen := make(map[string]struct{}, len(claim.Items))
	for _, item := range claim.Items {
		if _, dup := seen[item.ItemID]; dup || item.ItemID == "" {
			continue
		}
		seen[item.ItemID] = struct{}{}
		itemIDs = append(itemIDs, item.ItemID)
	}

	total, _ := claim.TotalAmount.Float64()
	covered, _ := claim.CoveredAmount.Float64()

	return map[string]interface{}{
		"id":                claim.ID,
		"claim_number":      claim.ClaimNumber,
		"patient_id":        claim.PatientID,
		"provider_id":       claim.ProviderID,
		"plan_id":           claim.PlanID,
		"status":            string(claim.Status),
		"item_ids":          itemIDs,
		"notes":             claim.Notes,
		"total_amount":      total,
		"covered_amount":    covered,
		"approval_required": claim.ApprovalRequired,
		"submitted_at":      claim.SubmittedAt.Unix(),
	}
}

func buildFilter(params repositories.ClaimSearchParams) string {
	var clauses []string
	if params.Status != "" {
		clauses = append(clauses, "status:="+string(params.Status))
	}
	if params.ProviderID != "" {
		clauses = append(clauses, "provider_id:="+escapeFilterValue(params.ProviderID))
	}
	if params.PlanID != "" {
		clauses = append(clauses, "plan_id:="+escapeFilterValue(params.PlanID))
	}
	return strings.Join(clauses, " && ")
}

// escapeFilterValue wraps a value in backticks so separators inside ids are taken literally
func escapeFilterValue(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "") + "`"
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

const (
	claimsTable     = "insurance_claims"
	claimItemsTable = "insurance_claim_items"

	advisoryLockSQL = "SELECT pg_advisory_xact_lock(hashtext($1))"
)

var claimColumns = []interface{}{
	"id", "claim_number", "provider_id", "plan_id", "patient_id", "sale_id",
	"total_amount", "covered_amount", "patient_amount", "approval_required", "status",
	"submitted_at", "processed_at", "notes", "created_at", "updated_at",
}

var claimItemColumns = []interface{}{
	"id", "claim_id", "line_number", "item_id", "item_type", "quantity", "unit_price",
	"line_total", "covered_amount", "match_kind",
}

// ClaimAdapter implements ClaimRepository. A zero tx means statements run on the pool.
type ClaimAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	tx     *sql.Tx
}

// NewClaimAdapter creates a new claim adapter
func NewClaimAdapter(client *postgres.Client) repositories.ClaimRepository {
	return &ClaimAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

func (a *ClaimAdapter) q() queryer {
	if a.tx != nil {
		return a.tx
	}
	return a.client.DB()
}

// inTx runs fn on the bound transaction, or on a short-lived one when unbound
func (a *ClaimAdapter) inTx(ctx context.Context, fn func(q queryer) error) error {
	if a.tx != nil {
		return fn(a.tx)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// WithPatientPlanLock runs fn in a transaction holding a transaction-scoped advisory lock
// on (patientID, planID). Concurrent callers for the same pair queue on the lock.
func (a *ClaimAdapter) WithPatientPlanLock(ctx context.Context, patientID, planID string, fn func(ctx context.Context, tx repositories.ClaimRepository) error) error {
	if a.tx != nil {
		return apperrors.NewInternalError("nested claim lock", nil)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, advisoryLockSQL, lockKey(patientID, planID)); err != nil {
		return apperrors.NewInternalError("failed to acquire claim lock", err)
	}

	if err := fn(ctx, &ClaimAdapter{client: a.client, db: a.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit claim transaction", err)
	}
	return nil
}

func lockKey(patientID, planID string) string {
	return "claim:" + patientID + ":" + planID
}

// Create inserts a claim and its line items atomically
func (a *ClaimAdapter) Create(ctx context.Context, claim *entities.InsuranceClaim) error {
	record := goqu.Record{
		"id":                claim.ID,
		"claim_number":      claim.ClaimNumber,
		"provider_id":       claim.ProviderID,
		"plan_id":           claim.PlanID,
		"patient_id":        claim.PatientID,
		"sale_id":           claim.SaleID,
		"total_amount":      claim.TotalAmount,
		"covered_amount":    claim.CoveredAmount,
		"patient_amount":    claim.PatientAmount,
		"approval_required": claim.ApprovalRequired,
		"status":            string(claim.Status),
		"submitted_at":      claim.SubmittedAt,
		"processed_at":      claim.ProcessedAt,
		"notes":             nullString(claim.Notes),
		"created_at":        claim.CreatedAt,
		"updated_at":        claim.UpdatedAt,
	}

	claimQuery, claimArgs, err := a.db.Insert(claimsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	rows := make([]interface{}, 0, len(claim.Items))
	for _, item := range claim.Items {
		rows = append(rows, goqu.Record{
			"id":             item.ID,
			"claim_id":       claim.ID,
			"line_number":    item.LineNumber,
			"item_id":        item.ItemID,
			"item_type":      nullString(item.ItemType),
			"quantity":       item.Quantity,
			"unit_price":     item.UnitPrice,
			"line_total":     item.LineTotal,
			"covered_amount": item.CoveredAmount,
			"match_kind":     item.MatchKind,
		})
	}

	return a.inTx(ctx, func(q queryer) error {
		if _, err := q.ExecContext(ctx, claimQuery, claimArgs...); err != nil {
			return writeError(err, fmt.Sprintf("claim %s", claim.ClaimNumber))
		}
		if len(rows) == 0 {
			return nil
		}

		itemQuery, itemArgs, err := a.db.Insert(claimItemsTable).Prepared(true).Rows(rows...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build insert query", err)
		}
		if _, err := q.ExecContext(ctx, itemQuery, itemArgs...); err != nil {
			return apperrors.NewInternalError("failed to create claim items", err)
		}
		return nil
	})
}

// GetByID retrieves a claim with its line items
func (a *ClaimAdapter) GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("claim with id %s not found", id))
}

// GetByNumber retrieves a claim by its claim number
func (a *ClaimAdapter) GetByNumber(ctx context.Context, claimNumber string) (*entities.InsuranceClaim, error) {
	return a.getOne(ctx, goqu.Ex{"claim_number": claimNumber}, fmt.Sprintf("claim %s not found", claimNumber))
}

func (a *ClaimAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.InsuranceClaim, error) {
	query, args, err := a.db.Select(claimColumns...).
		From(claimsTable).
		Prepared(true).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	claim, err := scanClaim(a.q().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get claim", err)
	}

	items, err := a.listItems(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	claim.Items = items

	return claim, nil
}

func (a *ClaimAdapter) listItems(ctx context.Context, claimID string) ([]entities.ClaimItem, error) {
	query, args, err := a.db.Select(claimItemColumns...).
		From(claimItemsTable).
		Prepared(true).
		Where(goqu.Ex{"claim_id": claimID}).
		Order(goqu.I("line_number").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list claim items", err)
	}
	defer rows.Close()

	items := []entities.ClaimItem{}
	for rows.Next() {
		var item entities.ClaimItem
		var itemType, matchKind sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.ClaimID,
			&item.LineNumber,
			&item.ItemID,
			&itemType,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.CoveredAmount,
			&matchKind,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan claim item", err)
		}
		item.ItemType = itemType.String
		item.MatchKind = matchKind.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate claim items", err)
	}

	return items, nil
}

// List retrieves claims without line items, newest first
func (a *ClaimAdapter) List(ctx context.Context, filter repositories.ClaimFilter) ([]*entities.InsuranceClaim, error) {
	ds := applyClaimFilter(a.db.Select(claimColumns...).From(claimsTable), filter).
		Order(goqu.I("submitted_at").Desc(), goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.list(ctx, ds)
}

// ListPriorClaims returns a patient's claims on a plan submitted between from and to
func (a *ClaimAdapter) ListPriorClaims(ctx context.Context, patientID, planID string, from, to time.Time) ([]entities.InsuranceClaim, error) {
	ds := a.db.Select(claimColumns...).
		From(claimsTable).
		Where(
			goqu.Ex{"patient_id": patientID, "plan_id": planID},
			goqu.I("submitted_at").Between(goqu.Range(from, to)),
		).
		Order(goqu.I("submitted_at").Asc())

	claims, err := a.list(ctx, ds)
	if err != nil {
		return nil, err
	}

	out := make([]entities.InsuranceClaim, 0, len(claims))
	for _, c := range claims {
		out = append(out, *c)
	}
	return out, nil
}

func (a *ClaimAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.InsuranceClaim, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list claims", err)
	}
	defer rows.Close()

	claims := []*entities.InsuranceClaim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan claim", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate claims", err)
	}

	return claims, nil
}

// UpdateStatus persists status, processed_at and notes
func (a *ClaimAdapter) UpdateStatus(ctx context.Context, claim *entities.InsuranceClaim) error {
	query, args, err := a.db.Update(claimsTable).
		Prepared(true).
		Set(goqu.Record{
			"status":       string(claim.Status),
			"processed_at": claim.ProcessedAt,
			"notes":        nullString(claim.Notes),
			"updated_at":   claim.UpdatedAt,
		}).
		Where(goqu.Ex{"id": claim.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.q().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update claim status", err)
	}

	return requireAffected(result, fmt.Sprintf("claim with id %s not found", claim.ID))
}

// UpdateCoverage persists covered amounts of the claim and each of its items
func (a *ClaimAdapter) UpdateCoverage(ctx context.Context, claim *entities.InsuranceClaim) error {
	return a.inTx(ctx, func(q queryer) error {
		query, args, err := a.db.Update(claimsTable).
			Prepared(true).
			Set(goqu.Record{
				"covered_amount":    claim.CoveredAmount,
				"patient_amount":    claim.PatientAmount,
				"approval_required": claim.ApprovalRequired,
				"notes":             nullString(claim.Notes),
				"updated_at":        claim.UpdatedAt,
			}).
			Where(goqu.Ex{"id": claim.ID}).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build update query", err)
		}

		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to update claim coverage", err)
		}
		if err := requireAffected(result, fmt.Sprintf("claim with id %s not found", claim.ID)); err != nil {
			return err
		}

		for _, item := range claim.Items {
			itemQuery, itemArgs, err := a.db.Update(claimItemsTable).
				Prepared(true).
				Set(goqu.Record{
					"covered_amount": item.CoveredAmount,
					"match_kind":     item.MatchKind,
				}).
				Where(goqu.Ex{"id": item.ID, "claim_id": claim.ID}).
				ToSQL()
			if err != nil {
				return apperrors.NewInternalError("failed to build update query", err)
			}
			if _, err := q.ExecContext(ctx, itemQuery, itemArgs...); err != nil {
				return apperrors.NewInternalError("failed to update claim item coverage", err)
			}
		}
		return nil
	})
}

func applyClaimFilter(ds *goqu.SelectDataset, filter repositories.ClaimFilter) *goqu.SelectDataset {
	if len(filter.IDs) > 0 {
		ds = ds.Where(goqu.Ex{"id": filter.IDs})
	}
	if filter.ProviderID != "" {
		ds = ds.Where(goqu.Ex{"provider_id": filter.ProviderID})
	}
	if filter.PlanID != "" {
		ds = ds.Where(goqu.Ex{"plan_id": filter.PlanID})
	}
	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	if filter.SubmittedFrom != nil {
		ds = ds.Where(goqu.I("submitted_at").Gte(*filter.SubmittedFrom))
	}
	if filter.SubmittedTo != nil {
		ds = ds.Where(goqu.I("submitted_at").Lte(*filter.SubmittedTo))
	}
	return ds
}

func scanClaim(row rowScanner) (*entities.InsuranceClaim, error) {
	claim := &entities.InsuranceClaim{}
	var saleID, notes sql.NullString
	var processedAt sql.NullTime
	var status string

	err := row.Scan(
		&claim.ID,
		&claim.ClaimNumber,
		&claim.ProviderID,
		&claim.PlanID,
		&claim.PatientID,
		&saleID,
		&claim.TotalAmount,
		&claim.CoveredAmount,
		&claim.PatientAmount,
		&claim.ApprovalRequired,
		&status,
		&claim.SubmittedAt,
		&processedAt,
		&notes,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.Status = entities.ClaimStatus(status)
	claim.Notes = notes.String
	if saleID.Valid {
		claim.SaleID = &saleID.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		claim.ProcessedAt = &t
	}
	return claim, nil
}

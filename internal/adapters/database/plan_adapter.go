package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

const (
	plansTable         = "insurance_plans"
	coverageItemsTable = "plan_coverage_items"
)

var planColumns = []interface{}{
	"id", "provider_id", "name", "code", "coverage_percentage", "annual_limit",
	"requires_approval", "patient_copay", "is_active", "created_at", "updated_at",
}

var coverageItemColumns = []interface{}{
	"id", "plan_id", "item_id", "item_type", "coverage_percentage", "max_amount",
	"requires_approval", "created_at", "updated_at",
}

// PlanAdapter implements PlanRepository
type PlanAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPlanAdapter creates a new plan adapter
func NewPlanAdapter(client *postgres.Client) repositories.PlanRepository {
	return &PlanAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

// Create creates a new plan
func (a *PlanAdapter) Create(ctx context.Context, plan *entities.InsurancePlan) error {
	record := goqu.Record{
		"id":                  plan.ID,
		"provider_id":         plan.ProviderID,
		"name":                plan.Name,
		"code":                plan.Code,
		"coverage_percentage": plan.CoveragePercentage,
		"annual_limit":        nullDecimal(plan.AnnualLimit),
		"requires_approval":   plan.RequiresApproval,
		"patient_copay":       plan.PatientCopay,
		"is_active":           plan.IsActive,
		"created_at":          plan.CreatedAt,
		"updated_at":          plan.UpdatedAt,
	}

	query, args, err := a.db.Insert(plansTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(err, fmt.Sprintf("insurance plan with code %s", plan.Code))
	}

	return nil
}

// GetByID retrieves a plan without its coverage items
func (a *PlanAdapter) GetByID(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("insurance plan with id %s not found", id))
}

// GetByCode retrieves a plan by code within a provider
func (a *PlanAdapter) GetByCode(ctx context.Context, providerID, code string) (*entities.InsurancePlan, error) {
	return a.getOne(ctx,
		goqu.Ex{"provider_id": providerID, "code": strings.ToUpper(code)},
		fmt.Sprintf("insurance plan with code %s not found", code))
}

func (a *PlanAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.InsurancePlan, error) {
	query, args, err := a.db.Select(planColumns...).
		From(plansTable).
		Prepared(true).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	plan, err := scanPlan(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get insurance plan", err)
	}

	return plan, nil
}

// GetWithCoverage retrieves a plan together with its coverage items in plan order
func (a *PlanAdapter) GetWithCoverage(ctx context.Context, id string) (*entities.InsurancePlan, error) {
	plan, err := a.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := a.ListCoverageItems(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.CoverageItems = items

	return plan, nil
}

// GetByIDs retrieves several plans in one round trip
func (a *PlanAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.InsurancePlan, error) {
	if len(ids) == 0 {
		return []*entities.InsurancePlan{}, nil
	}
	return a.list(ctx, a.db.Select(planColumns...).From(plansTable).Where(goqu.Ex{"id": ids}))
}

// Update updates a plan's mutable fields
func (a *PlanAdapter) Update(ctx context.Context, plan *entities.InsurancePlan) error {
	plan.UpdatedAt = time.Now().UTC()

	record := goqu.Record{
		"name":                plan.Name,
		"coverage_percentage": plan.CoveragePercentage,
		"annual_limit":        nullDecimal(plan.AnnualLimit),
		"requires_approval":   plan.RequiresApproval,
		"patient_copay":       plan.PatientCopay,
		"is_active":           plan.IsActive,
		"updated_at":          plan.UpdatedAt,
	}

	query, args, err := a.db.Update(plansTable).
		Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": plan.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update insurance plan", err)
	}

	return requireAffected(result, fmt.Sprintf("insurance plan with id %s not found", plan.ID))
}

// SetActive toggles the active flag
func (a *PlanAdapter) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := a.db.Update(plansTable).
		Prepared(true).
		Set(goqu.Record{"is_active": active, "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update insurance plan", err)
	}

	return requireAffected(result, fmt.Sprintf("insurance plan with id %s not found", id))
}

// ListByProvider lists plans offered by a provider
func (a *PlanAdapter) ListByProvider(ctx context.Context, providerID string, filter repositories.PlanFilter) ([]*entities.InsurancePlan, error) {
	ds := a.db.Select(planColumns...).
		From(plansTable).
		Where(goqu.Ex{"provider_id": providerID})

	if filter.IsActive != nil {
		ds = ds.Where(goqu.Ex{"is_active": *filter.IsActive})
	}

	ds = ds.Order(goqu.I("name").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.list(ctx, ds)
}

func (a *PlanAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.InsurancePlan, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insurance plans", err)
	}
	defer rows.Close()

	plans := []*entities.InsurancePlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan insurance plan", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate insurance plans", err)
	}

	return plans, nil
}

// AddCoverageItem creates a coverage override
func (a *PlanAdapter) AddCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	record := goqu.Record{
		"id":                  item.ID,
		"plan_id":             item.PlanID,
		"item_id":             nullString(item.ItemID),
		"item_type":           nullString(item.ItemType),
		"coverage_percentage": item.CoveragePercentage,
		"max_amount":          nullDecimal(item.MaxAmount),
		"requires_approval":   item.RequiresApproval,
		"created_at":          item.CreatedAt,
		"updated_at":          item.UpdatedAt,
	}

	query, args, err := a.db.Insert(coverageItemsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(err, "coverage item for this plan")
	}

	return nil
}

// GetCoverageItem retrieves a coverage override by ID
func (a *PlanAdapter) GetCoverageItem(ctx context.Context, id string) (*entities.PlanCoverageItem, error) {
	query, args, err := a.db.Select(coverageItemColumns...).
		From(coverageItemsTable).
		Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	item, err := scanCoverageItem(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("coverage item with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get coverage item", err)
	}

	return item, nil
}

// UpdateCoverageItem updates a coverage override
func (a *PlanAdapter) UpdateCoverageItem(ctx context.Context, item *entities.PlanCoverageItem) error {
	item.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update(coverageItemsTable).
		Prepared(true).
		Set(goqu.Record{
			"item_id":             nullString(item.ItemID),
			"item_type":           nullString(item.ItemType),
			"coverage_percentage": item.CoveragePercentage,
			"max_amount":          nullDecimal(item.MaxAmount),
			"requires_approval":   item.RequiresApproval,
			"updated_at":          item.UpdatedAt,
		}).
		Where(goqu.Ex{"id": item.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(err, "failed to update coverage item")
	}

	return requireAffected(result, fmt.Sprintf("coverage item with id %s not found", item.ID))
}

// RemoveCoverageItem deletes a coverage override
func (a *PlanAdapter) RemoveCoverageItem(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(coverageItemsTable).
		Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete coverage item", err)
	}

	return requireAffected(result, fmt.Sprintf("coverage item with id %s not found", id))
}

// ListCoverageItems lists a plan's coverage overrides in creation order
func (a *PlanAdapter) ListCoverageItems(ctx context.Context, planID string) ([]entities.PlanCoverageItem, error) {
	query, args, err := a.db.Select(coverageItemColumns...).
		From(coverageItemsTable).
		Prepared(true).
		Where(goqu.Ex{"plan_id": planID}).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list coverage items", err)
	}
	defer rows.Close()

	items := []entities.PlanCoverageItem{}
	for rows.Next() {
		item, err := scanCoverageItem(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan coverage item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate coverage items", err)
	}

	return items, nil
}

func scanPlan(row rowScanner) (*entities.InsurancePlan, error) {
	plan := &entities.InsurancePlan{}
	var limit decimal.NullDecimal

	err := row.Scan(
		&plan.ID,
		&plan.ProviderID,
		&plan.Name,
		&plan.Code,
		&plan.CoveragePercentage,
		&limit,
		&plan.RequiresApproval,
		&plan.PatientCopay,
		&plan.IsActive,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.AnnualLimit = decimalPtr(limit)
	return plan, nil
}

func scanCoverageItem(row rowScanner) (*entities.PlanCoverageItem, error) {
	item := &entities.PlanCoverageItem{}
	var itemID, itemType sql.NullString
	var maxAmount decimal.NullDecimal

	err := row.Scan(
		&item.ID,
		&item.PlanID,
		&itemID,
		&itemType,
		&item.CoveragePercentage,
		&maxAmount,
		&item.RequiresApproval,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ItemID = itemID.String
	item.ItemType = itemType.String
	item.MaxAmount = decimalPtr(maxAmount)
	return item, nil
}

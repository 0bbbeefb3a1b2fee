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

const providersTable = "insurance_providers"

var providerColumns = []interface{}{
	"id", "name", "code", "contact_person", "phone_number", "email", "address", "website",
	"is_active", "approval_required", "payment_term_days", "discount_rate",
	"created_at", "updated_at",
}

// InsuranceAdapter implements InsuranceRepository
type InsuranceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInsuranceAdapter creates a new insurance adapter
func NewInsuranceAdapter(client *postgres.Client) repositories.InsuranceRepository {
	return &InsuranceAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

// Create creates a new insurance provider
func (a *InsuranceAdapter) Create(ctx context.Context, provider *entities.InsuranceProvider) error {
	record := goqu.Record{
		"id":                provider.ID,
		"name":              provider.Name,
		"code":              provider.Code,
		"contact_person":    nullString(provider.ContactPerson),
		"phone_number":      nullString(provider.PhoneNumber),
		"email":             nullString(provider.Email),
		"address":           nullString(provider.Address),
		"website":           nullString(provider.Website),
		"is_active":         provider.IsActive,
		"approval_required": provider.ApprovalRequired,
		"payment_term_days": provider.PaymentTermDays,
		"discount_rate":     nullDecimal(provider.DiscountRate),
		"created_at":        provider.CreatedAt,
		"updated_at":        provider.UpdatedAt,
	}

	query, args, err := a.db.Insert(providersTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(err, fmt.Sprintf("insurance provider with code %s", provider.Code))
	}

	return nil
}

// GetByID retrieves an insurance provider by ID
func (a *InsuranceAdapter) GetByID(ctx context.Context, id string) (*entities.InsuranceProvider, error) {
	return a.getByField(ctx, "id", id)
}

// GetByCode retrieves an insurance provider by code
func (a *InsuranceAdapter) GetByCode(ctx context.Context, code string) (*entities.InsuranceProvider, error) {
	return a.getByField(ctx, "code", strings.ToUpper(code))
}

func (a *InsuranceAdapter) getByField(ctx context.Context, field, value string) (*entities.InsuranceProvider, error) {
	query, args, err := a.db.Select(providerColumns...).
		From(providersTable).
		Prepared(true).
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	provider, err := scanProvider(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("insurance provider with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get insurance provider", err)
	}

	return provider, nil
}

// GetByIDs retrieves several providers in one round trip
func (a *InsuranceAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.InsuranceProvider, error) {
	if len(ids) == 0 {
		return []*entities.InsuranceProvider{}, nil
	}
	return a.list(ctx, a.db.Select(providerColumns...).From(providersTable).Where(goqu.Ex{"id": ids}))
}

// Update updates an insurance provider
func (a *InsuranceAdapter) Update(ctx context.Context, provider *entities.InsuranceProvider) error {
	provider.UpdatedAt = time.Now().UTC()

	record := goqu.Record{
		"name":              provider.Name,
		"contact_person":    nullString(provider.ContactPerson),
		"phone_number":      nullString(provider.PhoneNumber),
		"email":             nullString(provider.Email),
		"address":           nullString(provider.Address),
		"website":           nullString(provider.Website),
		"is_active":         provider.IsActive,
		"approval_required": provider.ApprovalRequired,
		"payment_term_days": provider.PaymentTermDays,
		"discount_rate":     nullDecimal(provider.DiscountRate),
		"updated_at":        provider.UpdatedAt,
	}

	query, args, err := a.db.Update(providersTable).
		Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": provider.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(err, "failed to update insurance provider")
	}

	return requireAffected(result, fmt.Sprintf("insurance provider with id %s not found", provider.ID))
}

// SetActive toggles the active flag. Providers are never hard-deleted.
func (a *InsuranceAdapter) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := a.db.Update(providersTable).
		Prepared(true).
		Set(goqu.Record{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update insurance provider", err)
	}

	return requireAffected(result, fmt.Sprintf("insurance provider with id %s not found", id))
}

// List retrieves insurance providers
func (a *InsuranceAdapter) List(ctx context.Context, filter repositories.InsuranceFilter) ([]*entities.InsuranceProvider, error) {
	ds := a.db.Select(providerColumns...).From(providersTable)

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

func (a *InsuranceAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.InsuranceProvider, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insurance providers", err)
	}
	defer rows.Close()

	providers := []*entities.InsuranceProvider{}
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan insurance provider", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate insurance providers", err)
	}

	return providers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*entities.InsuranceProvider, error) {
	provider := &entities.InsuranceProvider{}
	var contact, phone, email, address, website sql.NullString
	var discount decimal.NullDecimal

	err := row.Scan(
		&provider.ID,
		&provider.Name,
		&provider.Code,
		&contact,
		&phone,
		&email,
		&address,
		&website,
		&provider.IsActive,
		&provider.ApprovalRequired,
		&provider.PaymentTermDays,
		&discount,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	provider.ContactPerson = contact.String
	provider.PhoneNumber = phone.String
	provider.Email = email.String
	provider.Address = address.String
	provider.Website = website.String
	provider.DiscountRate = decimalPtr(discount)

	return provider, nil
}

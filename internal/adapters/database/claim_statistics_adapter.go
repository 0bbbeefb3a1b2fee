package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

// ClaimStatisticsAdapter implements ClaimStatisticsRepository
type ClaimStatisticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClaimStatisticsAdapter creates a new statistics adapter
func NewClaimStatisticsAdapter(client *postgres.Client) repositories.ClaimStatisticsRepository {
	return &ClaimStatisticsAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

type statusRow struct {
	Status        string          `db:"status"`
	Count         int             `db:"count"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	CoveredAmount decimal.Decimal `db:"covered_amount"`
}

// Statistics aggregates counts and sums per status
func (a *ClaimStatisticsAdapter) Statistics(ctx context.Context, filter repositories.ClaimFilter) (*entities.ClaimStatistics, error) {
	ds := applyClaimFilter(a.db.From(claimsTable), filter).
		Select(
			goqu.C("status"),
			goqu.COUNT(goqu.Star()).As("count"),
			goqu.COALESCE(goqu.SUM("total_amount"), 0).As("total_amount"),
			goqu.COALESCE(goqu.SUM("covered_amount"), 0).As("covered_amount"),
		).
		GroupBy("status")

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build statistics query", err)
	}

	var rows []statusRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to compute claim statistics", err)
	}

	return summarize(rows), nil
}

func summarize(rows []statusRow) *entities.ClaimStatistics {
	stats := &entities.ClaimStatistics{
		TotalAmount:   decimal.Zero,
		CoveredAmount: decimal.Zero,
		PaidAmount:    decimal.Zero,
		ByStatus:      make(map[entities.ClaimStatus]entities.StatusSummary, len(rows)),
	}

	approved, decided := 0, 0
	for _, row := range rows {
		status := entities.ClaimStatus(row.Status)
		stats.ByStatus[status] = entities.StatusSummary{
			Count:         row.Count,
			TotalAmount:   row.TotalAmount,
			CoveredAmount: row.CoveredAmount,
		}
		stats.TotalClaims += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.TotalAmount)
		stats.CoveredAmount = stats.CoveredAmount.Add(row.CoveredAmount)

		switch status {
		case entities.ClaimStatusPaid:
			stats.PaidAmount = stats.PaidAmount.Add(row.CoveredAmount)
			approved += row.Count
			decided += row.Count
		case entities.ClaimStatusApproved, entities.ClaimStatusPartiallyApproved:
			approved += row.Count
			decided += row.Count
		case entities.ClaimStatusRejected:
			decided += row.Count
		case entities.ClaimStatusSubmitted, entities.ClaimStatusUnderReview:
			stats.PendingReviewCount += row.Count
		}
	}

	if decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided) * 100
	}
	return stats
}

package adjudication_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func basicPlan() *entities.InsurancePlan {
	return &entities.InsurancePlan{
		ID:                 "plan-1",
		ProviderID:         "prov-1",
		Code:               "GOLD",
		CoveragePercentage: d("80"),
		PatientCopay:       d("20"),
		IsActive:           true,
	}
}

func TestComputeCoverage_DefaultPercentage(t *testing.T) {
	lines := []adjudication.LineItem{{ItemID: "amox-500", Quantity: d("2"), UnitPrice: d("50.00")}}

	result, err := adjudication.ComputeCoverage(basicPlan(), lines, adjudication.UnlimitedBenefit())
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.True(t, d("100.00").Equal(result.Lines[0].LineTotal))
	assert.True(t, d("80.00").Equal(result.Lines[0].CoveredAmount))
	assert.Equal(t, adjudication.DefaultMatch, result.Lines[0].MatchKind)
	assert.True(t, d("80.00").Equal(result.CoveredAmount))
	assert.True(t, d("20.00").Equal(result.PatientAmount))
	assert.True(t, result.BenefitShortfall.IsZero())
	assert.False(t, result.ApprovalRequired)
}

func TestComputeCoverage_ClampsToRemainingBenefit(t *testing.T) {
	plan := basicPlan()
	plan.AnnualLimit = dp("100.00")
	lines := []adjudication.LineItem{{ItemID: "amox-500", Quantity: d("2"), UnitPrice: d("50.00")}}

	result, err := adjudication.ComputeCoverage(plan, lines, adjudication.LimitedBenefit(d("10.00")))
	require.NoError(t, err)

	assert.True(t, d("10.00").Equal(result.CoveredAmount))
	assert.True(t, d("70.00").Equal(result.BenefitShortfall))
	assert.True(t, d("90.00").Equal(result.PatientAmount))
	assert.True(t, d("10.00").Equal(result.Lines[0].CoveredAmount))
}

func TestComputeCoverage_ClampTrimsLastLinesFirst(t *testing.T) {
	lines := []adjudication.LineItem{
		{ItemID: "a", Quantity: d("1"), UnitPrice: d("50.00")},
		{ItemID: "b", Quantity: d("1"), UnitPrice: d("50.00")},
	}

	result, err := adjudication.ComputeCoverage(basicPlan(), lines, adjudication.LimitedBenefit(d("50.00")))
	require.NoError(t, err)

	assert.True(t, d("40.00").Equal(result.Lines[0].CoveredAmount))
	assert.True(t, d("10.00").Equal(result.Lines[1].CoveredAmount))
	assert.True(t, d("50.00").Equal(adjudication.SumLines(result.Lines)))
}

func TestComputeCoverage_Overrides(t *testing.T) {
	plan := basicPlan()
	plan.CoverageItems = []entities.PlanCoverageItem{
		{ID: "ov-cat", ItemType: "antibiotic", CoveragePercentage: d("50")},
		{ID: "ov-item", ItemID: "amox-500", CoveragePercentage: d("100"), MaxAmount: dp("30.00")},
		{ID: "ov-cat-2", ItemType: "antibiotic", CoveragePercentage: d("10")},
		{ID: "ov-ctrl", ItemType: "controlled", CoveragePercentage: d("60"), RequiresApproval: true},
	}
	lines := []adjudication.LineItem{
		{ItemID: "amox-500", ItemType: "antibiotic", Quantity: d("1"), UnitPrice: d("40.00")},
		{ItemID: "cipro", ItemType: "antibiotic", Quantity: d("1"), UnitPrice: d("40.00")},
		{ItemID: "vit-c", ItemType: "supplement", Quantity: d("3"), UnitPrice: d("3.33")},
		{ItemID: "oxy", ItemType: "controlled", Quantity: d("1"), UnitPrice: d("10.00")},
	}

	result, err := adjudication.ComputeCoverage(plan, lines, adjudication.UnlimitedBenefit())
	require.NoError(t, err)

	assert.Equal(t, adjudication.ExactItemMatch, result.Lines[0].MatchKind)
	assert.True(t, d("30.00").Equal(result.Lines[0].CoveredAmount), "capped at override max")
	assert.True(t, result.Lines[0].Capped)

	assert.Equal(t, adjudication.CategoryMatch, result.Lines[1].MatchKind)
	assert.True(t, d("20.00").Equal(result.Lines[1].CoveredAmount), "first category override wins")

	assert.Equal(t, adjudication.DefaultMatch, result.Lines[2].MatchKind)
	assert.True(t, d("9.99").Equal(result.Lines[2].LineTotal))
	assert.True(t, d("7.99").Equal(result.Lines[2].CoveredAmount))

	assert.Equal(t, adjudication.CategoryMatch, result.Lines[3].MatchKind)
	assert.True(t, result.ApprovalRequired)

	assert.True(t, d("99.99").Equal(result.TotalAmount))
	assert.True(t, d("63.99").Equal(result.CoveredAmount))
	assert.True(t, d("36.00").Equal(result.PatientAmount))
}

func TestComputeCoverage_PlanApprovalFlag(t *testing.T) {
	plan := basicPlan()
	plan.RequiresApproval = true
	lines := []adjudication.LineItem{{ItemID: "x", Quantity: d("1"), UnitPrice: d("1.00")}}

	result, err := adjudication.ComputeCoverage(plan, lines, adjudication.UnlimitedBenefit())
	require.NoError(t, err)
	assert.True(t, result.ApprovalRequired)
}

func TestComputeCoverage_InvalidLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []adjudication.LineItem
	}{
		{"no lines", nil},
		{"zero quantity", []adjudication.LineItem{{ItemID: "x", Quantity: d("0"), UnitPrice: d("1")}}},
		{"negative quantity", []adjudication.LineItem{{ItemID: "x", Quantity: d("-1"), UnitPrice: d("1")}}},
		{"negative price", []adjudication.LineItem{
			{ItemID: "ok", Quantity: d("1"), UnitPrice: d("1")},
			{ItemID: "x", Quantity: d("1"), UnitPrice: d("-0.01")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := adjudication.ComputeCoverage(basicPlan(), tt.lines, adjudication.UnlimitedBenefit())
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, adjudication.ErrInvalidLineItem))
		})
	}
}

func TestComputeCoverage_ZeroPriceLineIsAllowed(t *testing.T) {
	lines := []adjudication.LineItem{{ItemID: "sample", Quantity: d("1"), UnitPrice: d("0")}}

	result, err := adjudication.ComputeCoverage(basicPlan(), lines, adjudication.UnlimitedBenefit())
	require.NoError(t, err)
	assert.True(t, result.CoveredAmount.IsZero())
}

func TestComputeCoverage_NilPlan(t *testing.T) {
	lines := []adjudication.LineItem{{ItemID: "x", Quantity: d("1"), UnitPrice: d("1")}}

	_, err := adjudication.ComputeCoverage(nil, lines, adjudication.UnlimitedBenefit())
	assert.True(t, errors.Is(err, adjudication.ErrPlanNotFound))
}

func TestValidatePlanForProvider(t *testing.T) {
	assert.NoError(t, adjudication.ValidatePlanForProvider(basicPlan(), "prov-1"))
	assert.True(t, errors.Is(adjudication.ValidatePlanForProvider(basicPlan(), "prov-2"), adjudication.ErrProviderMismatch))
	assert.True(t, errors.Is(adjudication.ValidatePlanForProvider(nil, "prov-1"), adjudication.ErrPlanNotFound))
}

func TestComputeCoverage_Bounds(t *testing.T) {
	plan := basicPlan()
	plan.CoverageItems = []entities.PlanCoverageItem{
		{ItemID: "capped", CoveragePercentage: d("100"), MaxAmount: dp("5.00")},
	}
	remaining := []adjudication.Benefit{
		adjudication.UnlimitedBenefit(),
		adjudication.LimitedBenefit(d("0")),
		adjudication.LimitedBenefit(d("12.34")),
		adjudication.LimitedBenefit(d("1000")),
	}
	prices := []string{"0.01", "0.99", "7.77", "19.99", "250.00"}

	for _, rem := range remaining {
		for _, price := range prices {
			lines := []adjudication.LineItem{
				{ItemID: "capped", Quantity: d("3"), UnitPrice: d(price)},
				{ItemID: "other", Quantity: d("1.5"), UnitPrice: d(price)},
			}
			result, err := adjudication.ComputeCoverage(plan, lines, rem)
			require.NoError(t, err)

			for _, line := range result.Lines {
				assert.True(t, line.CoveredAmount.LessThanOrEqual(line.LineTotal))
				assert.False(t, line.CoveredAmount.IsNegative())
			}
			assert.True(t, result.Lines[0].CoveredAmount.LessThanOrEqual(d("5.00")))
			assert.True(t, result.CoveredAmount.LessThanOrEqual(result.TotalAmount))
			if !rem.Unlimited {
				assert.True(t, result.CoveredAmount.LessThanOrEqual(rem.Amount))
			}
			assert.True(t, result.CoveredAmount.Equal(adjudication.SumLines(result.Lines)))
			assert.True(t, result.TotalAmount.Equal(result.CoveredAmount.Add(result.PatientAmount)))
		}
	}
}

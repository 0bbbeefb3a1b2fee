package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/database"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
	"github.com/zatekoja/pharmacyclaims/pkg/config"
	apperrors "github.com/zatekoja/pharmacyclaims/pkg/errors"
)

type seedPlan struct {
	plan  entities.InsurancePlan
	items []entities.PlanCoverageItem
}

type seedProvider struct {
	provider entities.InsuranceProvider
	plans    []seedPlan
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var catalogue = []seedProvider{
	{
		provider: entities.InsuranceProvider{
			Name:            "Hygeia HMO",
			Code:            "HYGEIA",
			ContactPerson:   "Claims Desk",
			Email:           "claims@hygeia.example",
			PhoneNumber:     "+234-1-555-0100",
			IsActive:        true,
			PaymentTermDays: 30,
			DiscountRate:    amount("5"),
		},
		plans: []seedPlan{
			{
				plan: entities.InsurancePlan{
					Name:               "Hygeia Gold",
					Code:               "GOLD",
					CoveragePercentage: pct("80"),
					PatientCopay:       pct("20"),
					AnnualLimit:        amount("500000"),
					IsActive:           true,
				},
				items: []entities.PlanCoverageItem{
					{ItemType: "antibiotic", CoveragePercentage: pct("100")},
					{ItemType: "supplement", CoveragePercentage: pct("0")},
					{ItemID: "insulin-glargine", CoveragePercentage: pct("90"), MaxAmount: amount("25000"), RequiresApproval: true},
				},
			},
			{
				plan: entities.InsurancePlan{
					Name:               "Hygeia Basic",
					Code:               "BASIC",
					CoveragePercentage: pct("50"),
					PatientCopay:       pct("50"),
					AnnualLimit:        amount("100000"),
					IsActive:           true,
				},
			},
		},
	},
	{
		provider: entities.InsuranceProvider{
			Name:             "AXA Mansard Health",
			Code:             "AXA",
			Email:            "pharmacy@axa.example",
			IsActive:         true,
			ApprovalRequired: true,
			PaymentTermDays:  45,
		},
		plans: []seedPlan{
			{
				plan: entities.InsurancePlan{
					Name:               "Corporate Unlimited",
					Code:               "CORP",
					CoveragePercentage: pct("90"),
					PatientCopay:       pct("10"),
					IsActive:           true,
				},
				items: []entities.PlanCoverageItem{
					{ItemType: "cosmetic", CoveragePercentage: pct("0")},
				},
			},
		},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("claims-seed", cfg.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				insurance_claim_items,
				insurance_claims,
				plan_coverage_items,
				insurance_plans,
				insurance_providers
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to truncate tables")
		}
	}

	service := services.NewInsuranceService(
		database.NewInsuranceAdapter(pgClient),
		database.NewPlanAdapter(pgClient),
		nil,
	)

	for _, sp := range catalogue {
		provider := sp.provider
		if err := service.CreateProvider(ctx, &provider); err != nil {
			if apperrors.IsConflict(err) {
				log.Info().Str("code", provider.Code).Msg("provider already seeded, skipping")
				continue
			}
			log.Fatal().Err(err).Str("code", provider.Code).Msg("failed to create provider")
		}

		for _, p := range sp.plans {
			plan := p.plan
			plan.ProviderID = provider.ID
			if err := service.CreatePlan(ctx, &plan); err != nil {
				log.Fatal().Err(err).Str("code", plan.Code).Msg("failed to create plan")
			}

			for _, it := range p.items {
				item := it
				item.PlanID = plan.ID
				if err := service.AddCoverageItem(ctx, &item); err != nil {
					log.Fatal().Err(err).Str("plan", plan.Code).Msg("failed to add coverage item")
				}
			}
			log.Info().Str("provider", provider.Code).Str("plan", plan.Code).Int("coverage_items", len(p.items)).Msg("seeded plan")
		}
	}

	log.Info().Msg("seeding complete")
}

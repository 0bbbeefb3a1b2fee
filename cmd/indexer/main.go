package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/cache"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/database"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/events"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/search"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/redis"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
	"github.com/zatekoja/pharmacyclaims/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "claims-indexer",
		Short:        "Maintenance jobs for the claim search index and caches",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(flushCacheCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func reindexCmd() *cobra.Command {
	var (
		reset     bool
		interval  time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the claim search index from PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return fmt.Errorf("interval must not be negative")
			}
			if interval == 0 {
				if v := os.Getenv("REINDEX_INTERVAL"); v != "" {
					d, err := time.ParseDuration(v)
					if err != nil || d <= 0 {
						return fmt.Errorf("invalid REINDEX_INTERVAL %q", v)
					}
					interval = d
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			for {
				if err := indexOnce(ctx, cfg, reset, batchSize); err != nil {
					log.Error().Err(err).Msg("reindex failed")
					if interval == 0 {
						return err
					}
				}
				if interval == 0 {
					return nil
				}

				reset = false
				log.Info().Dur("next_run_in", interval).Msg("reindex complete")

				select {
				case <-ctx.Done():
					log.Info().Msg("indexer shutting down")
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "drop the claims collection before reindexing")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the reindex at this interval (e.g. 6h, 30m)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 200, "claims loaded per page")
	return cmd
}

func flushCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop cached plans and catalogue responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			redisClient, err := redis.NewClient(&cfg.Redis)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			eventBus := events.NewRedisEventBus(redisClient)
			defer eventBus.Close()

			invalidation := services.NewCacheInvalidationService(cache.NewRedisAdapter(redisClient), eventBus)
			if err := invalidation.InvalidateAllPlans(cmd.Context()); err != nil {
				return err
			}
			return invalidation.InvalidateResponses(cmd.Context())
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	observability.InitLogger("claims-indexer", cfg.Env)
	return cfg, nil
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool, batchSize int) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset {
		log.Info().Str("collection", typesense.ClaimsCollection).Msg("dropping claims collection")
		if err := tsClient.DropSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to drop collection")
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	benefitYear, err := adjudication.NewBenefitYear(cfg.Claims.BenefitYearMode)
	if err != nil {
		return err
	}

	claimService := services.NewClaimService(
		database.NewClaimAdapter(pgClient),
		database.NewClaimStatisticsAdapter(pgClient),
		database.NewPlanAdapter(pgClient),
		database.NewInsuranceAdapter(pgClient),
		benefitYear,
		services.WithClaimSearch(search.NewTypesenseAdapter(tsClient)),
	)

	start := time.Now()
	indexed, err := claimService.ReindexClaims(ctx, batchSize)
	if err != nil {
		return err
	}
	log.Info().Int("claims", indexed).Dur("took", time.Since(start)).Msg("claims indexed")
	return nil
}

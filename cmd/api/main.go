package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/cache"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/database"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/events"
	"github.com/zatekoja/pharmacyclaims/internal/adapters/search"
	"github.com/zatekoja/pharmacyclaims/internal/api/handlers"
	"github.com/zatekoja/pharmacyclaims/internal/api/loaders"
	"github.com/zatekoja/pharmacyclaims/internal/api/middleware"
	"github.com/zatekoja/pharmacyclaims/internal/api/routes"
	"github.com/zatekoja/pharmacyclaims/internal/application/services"
	"github.com/zatekoja/pharmacyclaims/internal/domain/adjudication"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/redis"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
	"github.com/zatekoja/pharmacyclaims/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.EnableLogExport(cfg.OTEL.ServiceName)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	benefitYear, err := adjudication.NewBenefitYear(cfg.Claims.BenefitYearMode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid benefit year")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the plan cache, the response cache and the event bus. The API keeps
	// serving without it.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; caching and claim streams disabled")
	} else {
		defer redisClient.Close()
	}

	var searchRepo repositories.ClaimSearchRepository
	if typesenseClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable; claim search disabled")
	} else {
		if err := typesenseClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema")
		}
		searchRepo = search.NewTypesenseAdapter(typesenseClient)
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	// Repositories
	insuranceRepo := database.NewInsuranceAdapter(pgClient)
	claimRepo := database.NewClaimAdapter(pgClient)
	statsRepo := database.NewClaimStatisticsAdapter(pgClient)

	var planRepo repositories.PlanRepository = database.NewPlanAdapter(pgClient)
	if cacheProvider != nil {
		planRepo = database.NewCachedPlanAdapter(planRepo, cacheProvider, cfg.Claims.PlanCacheTTLSeconds, metrics)
	}

	// Services
	insuranceService := services.NewInsuranceService(insuranceRepo, planRepo, eventBus)

	claimOpts := []services.ClaimServiceOption{services.WithClaimMetrics(metrics)}
	if searchRepo != nil {
		claimOpts = append(claimOpts, services.WithClaimSearch(searchRepo))
	}
	if eventBus != nil {
		claimOpts = append(claimOpts, services.WithClaimEvents(eventBus))
	}
	claimService := services.NewClaimService(claimRepo, statsRepo, planRepo, insuranceRepo, benefitYear, claimOpts...)

	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
			cacheInvalidationService = nil
		}
	}

	// Handlers
	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
	}

	router := routes.NewRouter(
		handlers.NewInsuranceHandler(insuranceService),
		handlers.NewClaimHandler(claimService),
		sseHandler,
		cacheMiddleware,
		loaders.Middleware(insuranceRepo, planRepo),
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: claim streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("benefit_year", string(benefitYear.Mode)).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}

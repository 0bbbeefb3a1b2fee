package routes

import (
	"net/http"

	"github.com/zatekoja/pharmacyclaims/internal/api/handlers"
	"github.com/zatekoja/pharmacyclaims/internal/api/middleware"
	"github.com/zatekoja/pharmacyclaims/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	insuranceHandler *handlers.InsuranceHandler
	claimHandler     *handlers.ClaimHandler
	sseHandler       *handlers.SSEHandler

	cacheMiddleware  *middleware.CacheMiddleware
	loaderMiddleware func(http.Handler) http.Handler
	metrics          *observability.Metrics
	allowedOrigins   []string
}

// NewRouter creates a new router. sseHandler, cacheMiddleware and loaderMiddleware
// may be nil.
func NewRouter(
	insuranceHandler *handlers.InsuranceHandler,
	claimHandler *handlers.ClaimHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	loaderMiddleware func(http.Handler) http.Handler,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		insuranceHandler: insuranceHandler,
		claimHandler:     claimHandler,
		sseHandler:       sseHandler,
		cacheMiddleware:  cacheMiddleware,
		loaderMiddleware: loaderMiddleware,
		metrics:          metrics,
		allowedOrigins:   allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Insurance providers
	r.mux.HandleFunc("GET /api/insurance/providers", r.insuranceHandler.ListProviders)
	r.mux.HandleFunc("POST /api/insurance/providers", r.insuranceHandler.CreateProvider)
	r.mux.HandleFunc("GET /api/insurance/providers/{id}", r.insuranceHandler.GetProvider)
	r.mux.HandleFunc("PUT /api/insurance/providers/{id}", r.insuranceHandler.UpdateProvider)
	r.mux.HandleFunc("DELETE /api/insurance/providers/{id}", r.insuranceHandler.DeleteProvider)
	r.mux.HandleFunc("PATCH /api/insurance/providers/{id}/active", r.insuranceHandler.SetProviderActive)

	// Plans
	r.mux.HandleFunc("GET /api/insurance/providers/{id}/plans", r.insuranceHandler.ListPlans)
	r.mux.HandleFunc("POST /api/insurance/providers/{id}/plans", r.insuranceHandler.CreatePlan)
	r.mux.HandleFunc("GET /api/insurance/plans/{id}", r.insuranceHandler.GetPlan)
	r.mux.HandleFunc("PUT /api/insurance/plans/{id}", r.insuranceHandler.UpdatePlan)
	r.mux.HandleFunc("PATCH /api/insurance/plans/{id}/active", r.insuranceHandler.SetPlanActive)

	// Coverage items
	r.mux.HandleFunc("GET /api/insurance/plans/{id}/coverage-items", r.insuranceHandler.ListCoverageItems)
	r.mux.HandleFunc("POST /api/insurance/plans/{id}/coverage-items", r.insuranceHandler.AddCoverageItem)
	r.mux.HandleFunc("PUT /api/insurance/coverage-items/{id}", r.insuranceHandler.UpdateCoverageItem)
	r.mux.HandleFunc("DELETE /api/insurance/coverage-items/{id}", r.insuranceHandler.RemoveCoverageItem)

	// Eligibility
	r.mux.HandleFunc("GET /api/insurance/eligibility", r.claimHandler.VerifyEligibility)

	// Claims
	r.mux.HandleFunc("POST /api/claims", r.claimHandler.CreateClaim)
	r.mux.HandleFunc("GET /api/claims", r.claimHandler.ListClaims)
	r.mux.HandleFunc("GET /api/claims/search", r.claimHandler.SearchClaims)
	r.mux.HandleFunc("GET /api/claims/statistics", r.claimHandler.Statistics)
	r.mux.HandleFunc("GET /api/claims/by-number/{number}", r.claimHandler.GetClaimByNumber)
	r.mux.HandleFunc("GET /api/claims/{id}", r.claimHandler.GetClaim)
	r.mux.HandleFunc("POST /api/claims/{id}/transitions", r.claimHandler.TransitionClaim)
	r.mux.HandleFunc("PUT /api/claims/{id}/items", r.claimHandler.UpdateClaimItems)
	r.mux.HandleFunc("POST /api/claims/{id}/readjudicate", r.claimHandler.ReadjudicateClaim)

	// Claim event streams
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/claims/stream", r.sseHandler.StreamAllClaims)
		r.mux.HandleFunc("GET /api/claims/{id}/stream", r.sseHandler.StreamClaimUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	if r.loaderMiddleware != nil {
		handler = r.loaderMiddleware(handler)
	}
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

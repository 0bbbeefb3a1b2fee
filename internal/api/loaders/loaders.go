package loaders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders batches provider and plan lookups made while rendering one request
type Loaders struct {
	ProviderLoader *dataloader.Loader[string, *entities.InsuranceProvider]
	PlanLoader     *dataloader.Loader[string, *entities.InsurancePlan]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(providerRepo repositories.InsuranceRepository, planRepo repositories.PlanRepository) *Loaders {
	return &Loaders{
		ProviderLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.InsuranceProvider] {
			providers, err := providerRepo.GetByIDs(ctx, keys)
			return collect(keys, providers, err, func(p *entities.InsuranceProvider) string { return p.ID }, "insurance provider")
		}),
		PlanLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.InsurancePlan] {
			plans, err := planRepo.GetByIDs(ctx, keys)
			return collect(keys, plans, err, func(p *entities.InsurancePlan) string { return p.ID }, "plan")
		}),
	}
}

// collect lines up batch results with the requested keys
func collect[T any](keys []string, values []T, err error, id func(T) string, kind string) []*dataloader.Result[T] {
	results := make([]*dataloader.Result[T], len(keys))

	byID := make(map[string]T, len(values))
	if err == nil {
		for _, v := range values {
			byID[id(v)] = v
		}
	}

	for i, key := range keys {
		if err != nil {
			results[i] = &dataloader.Result[T]{Error: err}
		} else if v, ok := byID[key]; ok {
			results[i] = &dataloader.Result[T]{Data: v}
		} else {
			results[i] = &dataloader.Result[T]{Error: fmt.Errorf("%s %s not found", kind, key)}
		}
	}
	return results
}

// For returns the loaders for a given context, or nil when none were attached
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request so batches never leak across requests
func Middleware(providerRepo repositories.InsuranceRepository, planRepo repositories.PlanRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(providerRepo, planRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

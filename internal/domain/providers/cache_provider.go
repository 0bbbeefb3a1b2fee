package providers

import (
	"context"
)

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

// PlanCachePattern matches every cached plan entry
const PlanCachePattern = "plan:*"

// PlanCacheKey returns the cache key of a plan stored with its coverage items
func PlanCacheKey(planID string) string {
	return "plan:" + planID + ":coverage"
}

// InsuranceHTTPCachePrefix prefixes cached HTTP responses of the insurance catalogue routes
const InsuranceHTTPCachePrefix = "http:cache:insurance:"

// InsuranceHTTPCachePattern matches every cached insurance catalogue response
const InsuranceHTTPCachePattern = InsuranceHTTPCachePrefix + "*"

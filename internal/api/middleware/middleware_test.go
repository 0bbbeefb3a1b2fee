package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/api/middleware"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for key := range c.data {
		out = append(out, key)
	}
	return out
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"providers":[]}`))
	})
}

func TestCacheMiddleware_CachesCatalogueReads(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := middleware.NewCacheMiddleware(cache, nil).Middleware(countingHandler(&calls))

	for i, want := range []string{"MISS", "HIT"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insurance/providers?limit=10", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Header().Get("X-Cache"), "request %d", i)
		assert.JSONEq(t, `{"providers":[]}`, w.Body.String())
	}
	assert.Equal(t, 1, calls)

	keys := cache.keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], providers.InsuranceHTTPCachePrefix))

	require.NoError(t, cache.DeletePattern(context.Background(), providers.InsuranceHTTPCachePattern))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insurance/providers?limit=10", nil))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCacheMiddleware_SkipsClaimsAndWrites(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := middleware.NewCacheMiddleware(cache, nil).Middleware(countingHandler(&calls))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/claims", nil),
		httptest.NewRequest(http.MethodGet, "/api/insurance/eligibility?patient_id=p&plan_id=x", nil),
		httptest.NewRequest(http.MethodPost, "/api/insurance/providers", nil),
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("X-Cache"), req.URL.Path)
	}
	assert.Equal(t, 3, calls)
	assert.Empty(t, cache.keys())
}

func TestCacheMiddleware_DoesNotCacheErrors(t *testing.T) {
	cache := newMemoryCache()
	handler := middleware.NewCacheMiddleware(cache, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insurance/plans/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, cache.keys())
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("listed origin is echoed", func(t *testing.T) {
		handler := middleware.CORSMiddleware([]string{"https://pharmacy.example"})(next)
		req := httptest.NewRequest(http.MethodGet, "/api/claims", nil)
		req.Header.Set("Origin", "https://pharmacy.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "https://pharmacy.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("unlisted origin gets no grant", func(t *testing.T) {
		handler := middleware.CORSMiddleware([]string{"https://pharmacy.example"})(next)
		req := httptest.NewRequest(http.MethodGet, "/api/claims", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		handler := middleware.CORSMiddleware(nil)(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/claims", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := middleware.RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/claims", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"INTERNAL"}`, w.Body.String())
}

func TestResponseOptimization(t *testing.T) {
	body := `{"plans":[{"id":"plan-1"}]}`
	handler := middleware.ResponseOptimization(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))

	t.Run("etag round trip", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insurance/plans/plan-1", nil))
		etag := w.Header().Get("ETag")
		require.NotEmpty(t, etag)
		assert.Equal(t, "public, max-age=300, must-revalidate", w.Header().Get("Cache-Control"))

		req := httptest.NewRequest(http.MethodGet, "/api/insurance/plans/plan-1", nil)
		req.Header.Set("If-None-Match", etag)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotModified, w.Code)
	})

	t.Run("eligibility is never stored", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insurance/eligibility", nil))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("streams pass through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/claims/claim-1/stream", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("ETag"))
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, body, w.Body.String())
	})
}

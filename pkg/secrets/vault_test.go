package secrets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/pkg/retry"
	"github.com/zatekoja/pharmacyclaims/pkg/secrets"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		MaxTotalTimeout: time.Second,
	}
}

func TestFetch_KVv2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/pharmacy-claims", r.URL.Path)
		assert.Equal(t, "s.token", r.Header.Get("X-Vault-Token"))
		assert.Equal(t, "team-a", r.Header.Get("X-Vault-Namespace"))
		_, _ = w.Write([]byte(`{"data":{"data":{"DB_PASSWORD":"hunter2","DB_PORT":5433,"OTEL_ENABLED":true}}}`))
	}))
	defer server.Close()

	values, err := secrets.Fetch(context.Background(), secrets.VaultConfig{
		Addr:      server.URL,
		Token:     "s.token",
		Namespace: "team-a",
		Path:      "pharmacy-claims",
		Retry:     fastRetry(),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"DB_PASSWORD":  "hunter2",
		"DB_PORT":      "5433",
		"OTEL_ENABLED": "true",
	}, values)
}

func TestFetch_KVv1(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kv/claims", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"TYPESENSE_API_KEY":"abc"}}`))
	}))
	defer server.Close()

	values, err := secrets.Fetch(context.Background(), secrets.VaultConfig{
		Addr: server.URL, Token: "t", Mount: "kv", Path: "claims", KVVersion: 1, Retry: fastRetry(),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", values["TYPESENSE_API_KEY"])
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"data":{"K":"v"}}}`))
	}))
	defer server.Close()

	values, err := secrets.Fetch(context.Background(), secrets.VaultConfig{Addr: server.URL, Token: "t", Path: "p", Retry: fastRetry()})
	require.NoError(t, err)
	assert.Equal(t, "v", values["K"])
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetch_ForbiddenIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
	}))
	defer server.Close()

	_, err := secrets.Fetch(context.Background(), secrets.VaultConfig{Addr: server.URL, Token: "t", Path: "p", Retry: fastRetry()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetch_IncompleteConfig(t *testing.T) {
	_, err := secrets.Fetch(context.Background(), secrets.VaultConfig{Addr: "http://vault:8200"})
	assert.ErrorIs(t, err, secrets.ErrIncompleteConfig)
}

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-monitor-backend/config"
)

func testRemoteConfig(url string) *config.RemoteConfig {
	return &config.RemoteConfig{
		URL:         url,
		APIKey:      "secret",
		MaxAttempts: 2,
		Timeout:     50 * time.Millisecond,
		Backoff:     30 * time.Millisecond,
	}
}

func TestFetchLatest_RetriesTimeoutsWithBackoff(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		time.Sleep(200 * time.Millisecond) // Always longer than the client timeout
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	start := time.Now()
	_, err := client.FetchLatest(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 2 attempts")
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts), "a timing-out endpoint is retried exactly maxAttempts times")
	// One backoff sleep between the two attempts plus two timeouts.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestFetchLatest_NonTimeoutStatusIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestFetchLatest_TransportErrorPropagatesImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Connection refused from here on

	client := NewClient(testRemoteConfig(server.URL))

	start := time.Now()
	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	// No retry, so no backoff sleeps either.
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestFetchLatest_QueryAuthFallback(t *testing.T) {
	var attempts int32
	var sawHeaderOnFallback bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		if r.URL.Query().Get("api_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sawHeaderOnFallback = r.Header.Get("X-API-KEY") != ""
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := testRemoteConfig(server.URL)
	cfg.AllowQueryAuth = true
	cfg.QueryAuthParam = "api_key"
	client := NewClient(cfg)

	body, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts), "401 triggers exactly one extra attempt")
	assert.False(t, sawHeaderOnFallback, "the fallback attempt must strip the header credential")
}

func TestFetchLatest_QueryAuthFallbackDisabled(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestFetchLatest_NoFallbackWhenURLCarriesCredential(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := testRemoteConfig(server.URL + "/?api_key=stale")
	cfg.AllowQueryAuth = true
	cfg.QueryAuthParam = "api_key"
	client := NewClient(cfg)

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "a URL that already carries the credential gets no fallback attempt")
}

func TestFetchLatest_SendsAuthHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	_, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
}

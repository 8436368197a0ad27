package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"hydro-monitor-backend/config"
)

// Client fetches the latest reading from the remote device-reporting
// service. One instance is shared by all callers.
type Client struct {
	cfg    *config.RemoteConfig
	client *http.Client
}

// NewClient creates a client for the configured remote endpoint.
func NewClient(cfg *config.RemoteConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	// Per-attempt deadlines come from the request context, not a client-wide
	// timeout, so the retry loop stays in control of total latency.
	return &Client{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
	}
}

// FetchLatest performs the full fetch policy: bounded-timeout attempts with
// timeout-only retries, then at most one credential-fallback attempt when the
// service rejects the header key with a 401.
func (c *Client) FetchLatest(ctx context.Context) ([]byte, error) {
	body, status, err := c.fetchWithRetry(ctx, c.cfg.URL, true)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.canFallbackToQueryAuth() {
		authURL, uerr := withQueryKey(c.cfg.URL, c.cfg.QueryAuthParam, c.cfg.APIKey)
		if uerr != nil {
			return nil, fmt.Errorf("building query-credential URL: %w", uerr)
		}
		log.Printf("Remote rejected header credential (401); retrying once with query parameter auth")
		body, status, err = c.fetchOnce(ctx, authURL, false)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("remote returned status %d", status)
	}
	return body, nil
}

// fetchWithRetry issues up to MaxAttempts attempts against one URL. Only
// timeout-class failures are retried, with a linearly increasing backoff; any
// other transport failure propagates immediately.
func (c *Client) fetchWithRetry(ctx context.Context, rawURL string, headerAuth bool) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		body, status, err := c.fetchOnce(ctx, rawURL, headerAuth)
		if err == nil {
			return body, status, nil
		}
		if !isTimeout(err) {
			return nil, 0, err
		}
		lastErr = err
		log.Printf("Remote fetch attempt %d/%d timed out: %v", attempt, c.cfg.MaxAttempts, err)
		if attempt < c.cfg.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.cfg.Backoff):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}
	}
	return nil, 0, fmt.Errorf("remote fetch timed out after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// fetchOnce performs a single GET bounded by the configured timeout.
func (c *Client) fetchOnce(ctx context.Context, rawURL string, headerAuth bool) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if headerAuth && c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// canFallbackToQueryAuth reports whether the one-shot 401 fallback applies:
// the config must allow it and the URL must not already carry the credential
// parameter.
func (c *Client) canFallbackToQueryAuth() bool {
	if !c.cfg.AllowQueryAuth || c.cfg.APIKey == "" {
		return false
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return false
	}
	return !u.Query().Has(c.cfg.QueryAuthParam)
}

func withQueryKey(rawURL, param, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

package papers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStatus is returned when an API answers with an unexpected status code.
var ErrStatus = errors.New("unexpected api status")

// Waiter paces outbound requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// ClientConfig is shared by the API clients.
type ClientConfig struct {
	BaseURL   string
	Email     string
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	// Limiter, when set, is consulted before every request.
	Limiter Waiter
}

func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// getJSON issues a GET and decodes a 200 body into v. It returns the status
// code alongside any error so callers can treat specific codes as "unknown".
func getJSON(ctx context.Context, cfg ClientConfig, client *http.Client, rawURL string, v any) (int, error) {
	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return resp.StatusCode, nil
}

package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsEnforcer enforces robots.txt directives per host. Each host is fetched
// at most once per run; a host whose robots file cannot be fetched is
// remembered as unrestricted.
type RobotsEnforcer struct {
	client    *http.Client
	mu        sync.Mutex
	hosts     map[string]*robotstxt.RobotsData
	userAgent string
	logger    *zap.Logger
}

// NewRobotsEnforcer builds a RobotsPolicy. When respect is false every URL
// is allowed.
func NewRobotsEnforcer(respect bool, userAgent string, timeout time.Duration, logger *zap.Logger) RobotsPolicy {
	if !respect {
		return allowAllPolicy{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsEnforcer{
		client:    &http.Client{Timeout: timeout},
		hosts:     make(map[string]*robotstxt.RobotsData),
		userAgent: userAgent,
		logger:    logger.Named("robots"),
	}
}

// Allowed implements RobotsPolicy.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	hostKey := strings.ToLower(parsed.Scheme + "://" + parsed.Host)

	r.mu.Lock()
	data, seen := r.hosts[hostKey]
	r.mu.Unlock()
	if !seen {
		data, err = r.fetch(ctx, parsed)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			r.logger.Warn("robots fetch failed; allowing host", zap.String("host", parsed.Host), zap.Error(err))
		}
		r.mu.Lock()
		r.hosts[hostKey] = data
		r.mu.Unlock()
	}
	if data == nil {
		return true
	}
	return data.TestAgent(parsed.RequestURI(), r.userAgent)
}

func (r *RobotsEnforcer) fetch(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }

package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRobotsEnforcer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := zap.NewNop()

	allowAll := NewRobotsEnforcer(false, "test-agent", time.Second, logger)
	assert.True(t, allowAll.Allowed(ctx, "https://example.com/whatever"))

	var robotsHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			fmt.Fprintln(w, "User-agent: *\nDisallow: /blocked")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enforcer := NewRobotsEnforcer(true, "test-agent", time.Second, logger)
	assert.True(t, enforcer.Allowed(ctx, srv.URL+"/allowed"))
	assert.False(t, enforcer.Allowed(ctx, srv.URL+"/blocked"))
	assert.False(t, enforcer.Allowed(ctx, srv.URL+"/blocked/deeper?x=1"))
	assert.EqualValues(t, 1, robotsHits.Load(), "robots.txt is cached per host")
}

func TestRobotsEnforcerUnreachableAllows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	enforcer := NewRobotsEnforcer(true, "test-agent", time.Second, zap.NewNop())
	assert.True(t, enforcer.Allowed(context.Background(), addr+"/page"))
	assert.True(t, enforcer.Allowed(context.Background(), addr+"/other"))
}

func TestRobotsEnforcerFetchesFailingHostOnce(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enforcer := NewRobotsEnforcer(true, "test-agent", time.Second, zap.NewNop())
	for _, p := range []string{"/a", "/b", "/c"} {
		assert.True(t, enforcer.Allowed(context.Background(), srv.URL+p))
	}
	assert.EqualValues(t, 1, robotsHits.Load())
}

func TestRobotsEnforcerRejectsUnparseableURL(t *testing.T) {
	t.Parallel()

	enforcer := NewRobotsEnforcer(true, "test-agent", time.Second, zap.NewNop())
	assert.False(t, enforcer.Allowed(context.Background(), "://bad"))
}

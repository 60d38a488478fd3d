package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx
// responses are returned without error; transport failures return an error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// Sleeper pauses between fetches.
type Sleeper interface {
	Sleep(ctx context.Context, delay time.Duration) error
}

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// PageCache stores successfully fetched pages so resumed crawls can replay
// them without touching the network.
type PageCache interface {
	Get(ctx context.Context, rawURL string) (CachedPage, bool, error)
	Put(ctx context.Context, page CachedPage) error
}

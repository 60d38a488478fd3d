package crawler

import (
	"context"
	"time"
)

// visitTracker records visited URLs for a single crawl.
type visitTracker struct {
	seen  map[string]struct{}
	order []string
}

func newVisitTracker() *visitTracker {
	return &visitTracker{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *visitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := t.seen[url]; ok {
		return false
	}
	t.seen[url] = struct{}{}
	t.order = append(t.order, url)
	return true
}

func (t *visitTracker) Has(url string) bool {
	_, ok := t.seen[url]
	return ok
}

func (t *visitTracker) Len() int { return len(t.seen) }

// boundedQueue is the FIFO frontier. Push refuses entries once the crawl's
// visited plus pending count reaches capacity.
type boundedQueue struct {
	items    []string
	queued   map[string]struct{}
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{queued: make(map[string]struct{}), capacity: capacity}
}

func (q *boundedQueue) Push(url string, visited int) bool {
	if _, ok := q.queued[url]; ok {
		return false
	}
	if visited+len(q.items) >= q.capacity {
		return false
	}
	q.queued[url] = struct{}{}
	q.items = append(q.items, url)
	return true
}

func (q *boundedQueue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	next := q.items[0]
	q.items = q.items[1:]
	return next, true
}

func (q *boundedQueue) Len() int { return len(q.items) }

// pause waits for delay through sleeper; a nil sleeper falls back to a timer.
func pause(ctx context.Context, sleeper Sleeper, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if sleeper != nil {
		return sleeper.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

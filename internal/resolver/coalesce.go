package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/metrics"
)

// Coalescer guarantees at most one pipeline execution per slot key at a time.
// Concurrent callers on the same key attach to the in-flight run and receive
// its result; the slot frees again on every exit path, success or failure.
type Coalescer struct {
	group singleflight.Group
}

// Do runs fn under the slot identified by key and returns the shared
// snapshot. Callers must not mutate the returned slice; profile application
// clones it first. The shared flag from the underlying single-flight group
// marks callers that attached to another caller's run.
func (c *Coalescer) Do(key string, fn func() ([]domain.Candidate, error)) ([]domain.Candidate, error) {
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if shared {
		metrics.CoalescedRequestsTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return result.([]domain.Candidate), nil
}

// Debouncer absorbs rapid free-text query churn: a caller waits out a quiet
// period after the most recent registered query, and is abandoned outright if
// a newer query arrives while it waits.
type Debouncer struct {
	mu       sync.Mutex
	latest   string
	recorded time.Time
	quiet    time.Duration
}

func NewDebouncer(quiet time.Duration) *Debouncer {
	return &Debouncer{quiet: quiet}
}

// Wait registers query and blocks until no newer registration has happened
// for the quiet period. It returns false when the query was superseded or the
// context expired; only a true return should proceed to the pipeline.
func (d *Debouncer) Wait(ctx context.Context, query string) bool {
	d.mu.Lock()
	d.latest = query
	d.recorded = time.Now()
	d.mu.Unlock()

	timer := time.NewTimer(d.quiet)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}

		d.mu.Lock()
		latest, recorded := d.latest, d.recorded
		d.mu.Unlock()

		if latest != query {
			metrics.SupersededSearchesTotal.Inc()
			return false
		}
		remaining := d.quiet - time.Since(recorded)
		if remaining <= 0 {
			return true
		}
		timer.Reset(remaining)
	}
}

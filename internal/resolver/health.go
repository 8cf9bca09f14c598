package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"debridstream/resolverservice/internal/metrics"
)

// UpstreamDiagnostics is the externally visible health summary for one
// upstream service.
type UpstreamDiagnostics struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs"`
	LastTimeout         bool       `json:"lastTimeout"`
	TotalRequests       int64      `json:"totalRequests"`
	TotalFailures       int64      `json:"totalFailures"`
}

type upstreamHealth struct {
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
}

// healthTracker records the outcome of every upstream call so operators can
// see which collaborator is degrading resolutions.
type healthTracker struct {
	mu    sync.Mutex
	state map[string]*upstreamHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{state: make(map[string]*upstreamHealth)}
}

func (h *healthTracker) record(service string, err error, latency time.Duration, now time.Time) {
	name := strings.ToLower(strings.TrimSpace(service))
	if name == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.state[name]
	if state == nil {
		state = &upstreamHealth{}
		h.state[name] = state
	}
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
	}
	state.lastTimeout = isTimeoutLikeError(err)

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.UpstreamAvailable.WithLabelValues(name).Set(1)
		return
	}
	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()
	metrics.UpstreamAvailable.WithLabelValues(name).Set(0)
}

func (h *healthTracker) diagnostics() []UpstreamDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()

	items := make([]UpstreamDiagnostics, 0, len(h.state))
	for name, state := range h.state {
		item := UpstreamDiagnostics{
			Name:                name,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			LastTimeout:         state.lastTimeout,
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

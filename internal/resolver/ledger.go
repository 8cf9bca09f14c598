package resolver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/metrics"
)

// ErrHandleNotFound is returned for unknown handles and out-of-range offsets.
var ErrHandleNotFound = errors.New("resolution handle not found")

const (
	defaultLedgerTTL        = 2 * time.Hour
	defaultLedgerMaxEntries = 500
)

type ledgerEntry struct {
	candidates []domain.Candidate
	storedAt   time.Time
	expiresAt  time.Time
}

// Ledger retains ranked result sets behind opaque handles for later
// single-item selection. Entries are write-once; retention is bounded by both
// TTL and entry count so long-running deployments do not grow without limit.
// An optional Redis backend mirrors entries so handles survive restarts.
type Ledger struct {
	mu         sync.Mutex
	entries    map[string]*ledgerEntry
	ttl        time.Duration
	maxEntries int
	backend    *RedisLedgerBackend
}

func NewLedger(ttl time.Duration, maxEntries int, backend *RedisLedgerBackend) *Ledger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultLedgerMaxEntries
	}
	return &Ledger{
		entries:    make(map[string]*ledgerEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		backend:    backend,
	}
}

// Put stores one ranked candidate list and returns its new opaque handle.
func (l *Ledger) Put(ctx context.Context, candidates []domain.Candidate) string {
	handle := uuid.NewString()
	now := time.Now()

	if l.backend != nil {
		_ = l.backend.Set(ctx, handle, candidates, l.ttl)
	}

	l.mu.Lock()
	l.entries[handle] = &ledgerEntry{
		candidates: domain.CloneCandidates(candidates),
		storedAt:   now,
		expiresAt:  now.Add(l.ttl),
	}
	l.trimLocked(now)
	metrics.LedgerEntries.Set(float64(len(l.entries)))
	l.mu.Unlock()

	return handle
}

// Get returns the candidate at offset within the set stored under handle.
func (l *Ledger) Get(ctx context.Context, handle string, offset int) (domain.Candidate, error) {
	l.mu.Lock()
	entry, ok := l.entries[handle]
	if ok && time.Now().After(entry.expiresAt) {
		delete(l.entries, handle)
		metrics.LedgerEntries.Set(float64(len(l.entries)))
		ok = false
	}
	var candidates []domain.Candidate
	if ok {
		candidates = entry.candidates
	}
	l.mu.Unlock()

	if !ok && l.backend != nil {
		stored, found, err := l.backend.Get(ctx, handle)
		if err == nil && found {
			candidates = stored
			ok = true
		}
	}
	if !ok {
		return domain.Candidate{}, ErrHandleNotFound
	}
	if offset < 0 || offset >= len(candidates) {
		return domain.Candidate{}, ErrHandleNotFound
	}
	return candidates[offset].Clone(), nil
}

// Len reports how many result sets are currently retained in memory.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) trimLocked(now time.Time) {
	for handle, entry := range l.entries {
		if now.After(entry.expiresAt) {
			delete(l.entries, handle)
		}
	}
	if len(l.entries) <= l.maxEntries {
		return
	}

	type pair struct {
		handle string
		entry  *ledgerEntry
	}
	items := make([]pair, 0, len(l.entries))
	for handle, entry := range l.entries {
		items = append(items, pair{handle: handle, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.storedAt.Before(items[j].entry.storedAt)
	})
	for i := 0; i < len(items)-l.maxEntries; i++ {
		delete(l.entries, items[i].handle)
	}
}

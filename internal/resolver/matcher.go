package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/metrics"
)

// CacheClient checks which content hashes a debrid service already holds.
// CheckAvailability returns, for each cached hash, every stored file-set
// variant; hashes absent from the cache are simply missing from the map.
type CacheClient interface {
	ProviderCode() string
	CheckAvailability(ctx context.Context, hashes []string) (map[string][]domain.FileGroup, error)
}

// Matcher narrows parsed candidates down to the ones the debrid cache can
// serve instantly, attaching the cached file-set versions to each survivor.
type Matcher struct {
	cache  CacheClient
	logger *slog.Logger
}

func NewMatcher(cache CacheClient, logger *slog.Logger) *Matcher {
	return &Matcher{cache: cache, logger: logger}
}

// Match checks the whole batch against the cache in one call and keeps only
// candidates with at least one non-empty cached version. Survivors come back
// in the input order with their versions sorted best-first and the primary
// version's aggregates promoted onto the candidate.
func (m *Matcher) Match(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	hashes := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		hashes = append(hashes, candidate.InfoHash)
	}

	available, err := m.cache.CheckAvailability(ctx, hashes)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(m.cache.ProviderCode(), "availability").Inc()
		return nil, fmt.Errorf("check availability: %w", err)
	}

	matched := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		groups := available[candidate.InfoHash]
		versions := make([]domain.Version, 0, len(groups))
		for _, group := range groups {
			if len(group) == 0 {
				continue
			}
			versions = append(versions, BuildVersion(group))
		}
		if len(versions) == 0 {
			continue
		}
		sortVersions(versions)

		candidate.CachedOn = append(candidate.CachedOn, m.cache.ProviderCode())
		candidate.Versions = versions
		candidate.SizeGB = versions[0].TotalSizeGB
		candidate.VideoCount = versions[0].VideoCount
		candidate.EpisodeCount = versions[0].EpisodeCount
		candidate.Seasons = versions[0].Seasons
		matched = append(matched, candidate)
	}

	m.logger.Debug("cache availability matched",
		slog.String("provider", m.cache.ProviderCode()),
		slog.Int("checked", len(candidates)),
		slog.Int("cached", len(matched)))
	return matched, nil
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/metrics"
)

// ErrUnknownProfile is returned when a caller names a ranking profile that is
// not configured.
var ErrUnknownProfile = errors.New("unknown ranking profile")

// ErrResolutionFailed wraps pipeline failures so the transport layer can map
// them uniformly. The resolution published no snapshot; callers re-issue.
var ErrResolutionFailed = errors.New("resolution failed")

// SourceAdapter supplies raw release entries for a media target and resolves
// free-text queries into targets.
type SourceAdapter interface {
	Name() string
	Search(ctx context.Context, target domain.MediaTarget) ([]domain.RawEntry, error)
	Identify(ctx context.Context, query string) (domain.MediaTarget, error)
}

// Service runs the resolution pipeline: source fetch, title parsing, cache
// matching, target filtering, then per-profile ranking into the selection
// ledger. Concurrent resolutions of the same target or query share one
// pipeline execution.
type Service struct {
	source    SourceAdapter
	matcher   *Matcher
	ledger    *Ledger
	profiles  map[string]domain.RankingProfile
	coalescer Coalescer
	debouncer *Debouncer
	health    *healthTracker
	logger    *slog.Logger
}

type ServiceConfig struct {
	Profiles      []domain.RankingProfile
	DebounceQuiet time.Duration
}

func NewService(source SourceAdapter, matcher *Matcher, ledger *Ledger, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	profiles := make(map[string]domain.RankingProfile, len(cfg.Profiles)+1)
	fallback := domain.DefaultRankingProfile()
	profiles[fallback.Name] = fallback
	for _, profile := range cfg.Profiles {
		if err := profile.Validate(); err != nil {
			return nil, err
		}
		profiles[profile.Name] = profile
	}
	quiet := cfg.DebounceQuiet
	if quiet <= 0 {
		quiet = time.Second
	}
	return &Service{
		source:    source,
		matcher:   matcher,
		ledger:    ledger,
		profiles:  profiles,
		debouncer: NewDebouncer(quiet),
		health:    newHealthTracker(),
		logger:    logger,
	}, nil
}

// Profiles lists the configured ranking profiles sorted by name.
func (s *Service) Profiles() []domain.RankingProfile {
	profiles := make([]domain.RankingProfile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}

// Resolve produces one ranked result set per requested profile for the
// target. An empty profileNames list means every configured profile.
// Concurrent calls for the same target share a single source fetch and cache
// check.
func (s *Service) Resolve(ctx context.Context, target domain.MediaTarget, profileNames []string) (map[string]domain.Resolution, error) {
	requested, err := s.selectProfiles(profileNames)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.coalescer.Do(target.Key(), func() ([]domain.Candidate, error) {
		return s.runPipeline(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return s.applyProfiles(ctx, snapshot, requested), nil
}

// ResolveSearch resolves a free-text query. The call waits out the debounce
// quiet period first; a query superseded while waiting returns an empty map
// and touches no upstream.
func (s *Service) ResolveSearch(ctx context.Context, query string, profileNames []string) (map[string]domain.Resolution, error) {
	requested, err := s.selectProfiles(profileNames)
	if err != nil {
		return nil, err
	}

	if !s.debouncer.Wait(ctx, query) {
		s.logger.Debug("search superseded", slog.String("query", query))
		return map[string]domain.Resolution{}, nil
	}

	snapshot, err := s.coalescer.Do("search:"+query, func() ([]domain.Candidate, error) {
		target, err := s.source.Identify(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: identify %q: %v", ErrResolutionFailed, query, err)
		}
		return s.runPipeline(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return s.applyProfiles(ctx, snapshot, requested), nil
}

// SelectForDownload returns the candidate at offset in the result set stored
// under handle. The download collaborator iterates offsets on failure.
func (s *Service) SelectForDownload(ctx context.Context, handle string, offset int) (domain.Candidate, error) {
	return s.ledger.Get(ctx, handle, offset)
}

// Diagnostics reports per-upstream health for the status endpoint.
func (s *Service) Diagnostics() []UpstreamDiagnostics {
	return s.health.diagnostics()
}

// runPipeline is the coalesced part of a resolution: everything up to, but
// not including, profile application.
func (s *Service) runPipeline(ctx context.Context, target domain.MediaTarget) ([]domain.Candidate, error) {
	start := time.Now()

	fetchStart := time.Now()
	entries, err := s.source.Search(ctx, target)
	s.health.record(s.source.Name(), err, time.Since(fetchStart), time.Now())
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("source_error").Inc()
		return nil, fmt.Errorf("%w: source fetch: %v", ErrResolutionFailed, err)
	}

	candidates := ParseEntries(entries)

	matchStart := time.Now()
	matched, err := s.matcher.Match(ctx, candidates)
	s.health.record(s.matcher.cache.ProviderCode(), err, time.Since(matchStart), time.Now())
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("cache_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	filtered := FilterByTarget(matched, target)

	metrics.ResolutionsTotal.WithLabelValues("ok").Inc()
	metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("resolution pipeline complete",
		slog.String("target", target.Key()),
		slog.Int("raw", len(entries)),
		slog.Int("parsed", len(candidates)),
		slog.Int("cached", len(matched)),
		slog.Int("eligible", len(filtered)),
		slog.Duration("elapsed", time.Since(start)))
	return filtered, nil
}

func (s *Service) applyProfiles(ctx context.Context, snapshot []domain.Candidate, profiles []domain.RankingProfile) map[string]domain.Resolution {
	results := make(map[string]domain.Resolution, len(profiles))
	for _, profile := range profiles {
		ranked := Rank(domain.CloneCandidates(snapshot), profile)
		handle := s.ledger.Put(ctx, ranked)
		results[profile.Name] = domain.Resolution{Handle: handle, Candidates: ranked}
	}
	return results
}

func (s *Service) selectProfiles(names []string) ([]domain.RankingProfile, error) {
	if len(names) == 0 {
		return s.Profiles(), nil
	}
	selected := make([]domain.RankingProfile, 0, len(names))
	for _, name := range names {
		profile, ok := s.profiles[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
		}
		selected = append(selected, profile)
	}
	return selected, nil
}

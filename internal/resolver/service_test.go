package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"debridstream/resolverservice/internal/domain"
)

type fakeSource struct {
	entries     []domain.RawEntry
	searchErr   error
	identified  domain.MediaTarget
	identifyErr error
	searches    atomic.Int32
	gate        chan struct{}
}

func (f *fakeSource) Name() string { return "fakesource" }

func (f *fakeSource) Search(_ context.Context, _ domain.MediaTarget) ([]domain.RawEntry, error) {
	f.searches.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.entries, nil
}

func (f *fakeSource) Identify(_ context.Context, _ string) (domain.MediaTarget, error) {
	if f.identifyErr != nil {
		return domain.MediaTarget{}, f.identifyErr
	}
	return f.identified, nil
}

func newTestService(t *testing.T, source *fakeSource, cache *fakeCacheClient, profiles ...domain.RankingProfile) *Service {
	t.Helper()
	service, err := NewService(
		source,
		NewMatcher(cache, testLogger()),
		NewLedger(time.Minute, 50, nil),
		ServiceConfig{Profiles: profiles, DebounceQuiet: 10 * time.Millisecond},
		testLogger(),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func movieFixture() (*fakeSource, *fakeCacheClient) {
	source := &fakeSource{
		entries: []domain.RawEntry{
			{Title: "Great Movie 2024\n👤 80 💾 4.0 GB ⚙️ SourceA\n1080p", InfoHash: hashOf("a")},
			{Title: "Great Movie 2024\n👤 20 💾 9.0 GB ⚙️ SourceB\n2160p", InfoHash: hashOf("b")},
			{Title: "Uncached Movie\n👤 500\n2160p", InfoHash: hashOf("c")},
		},
	}
	cache := &fakeCacheClient{
		available: map[string][]domain.FileGroup{
			hashOf("a"): {{"1": {Filename: "great.movie.1080p.mkv", Filesize: 4 * fileSizeDivisor}}},
			hashOf("b"): {{"1": {Filename: "great.movie.2160p.mkv", Filesize: 9 * fileSizeDivisor}}},
		},
	}
	return source, cache
}

func TestResolveEndToEnd(t *testing.T) {
	source, cache := movieFixture()
	service := newTestService(t, source, cache)
	target := domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt100"}

	results, err := service.Resolve(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	resolution, ok := results["default"]
	if !ok {
		t.Fatalf("missing default profile, got %v", results)
	}
	if len(resolution.Candidates) != 2 {
		t.Fatalf("candidates = %d, want the 2 cached ones", len(resolution.Candidates))
	}
	// Default profile sorts by resolution first.
	if resolution.Candidates[0].Resolution != 2160 {
		t.Errorf("top candidate resolution = %d, want 2160", resolution.Candidates[0].Resolution)
	}
	if resolution.Handle == "" {
		t.Error("resolution has no handle")
	}

	selected, err := service.SelectForDownload(context.Background(), resolution.Handle, 0)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if selected.InfoHash != resolution.Candidates[0].InfoHash {
		t.Errorf("selected %q, want top ranked candidate", selected.InfoHash)
	}
}

func TestResolveCoalescesConcurrentCallers(t *testing.T) {
	source, cache := movieFixture()
	source.gate = make(chan struct{})
	service := newTestService(t, source, cache)
	target := domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt100"}

	const callers = 6
	var started, done sync.WaitGroup
	errs := make([]error, callers)
	counts := make([]int, callers)

	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results, err := service.Resolve(context.Background(), target, []string{"default"})
			errs[i] = err
			if err == nil {
				counts[i] = len(results["default"].Candidates)
			}
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	done.Wait()

	if got := source.searches.Load(); got != 1 {
		t.Errorf("source fetches = %d, want 1", got)
	}
	if cache.calls != 1 {
		t.Errorf("cache checks = %d, want 1", cache.calls)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if counts[i] != 2 {
			t.Errorf("caller %d saw %d candidates, want 2", i, counts[i])
		}
	}
}

func TestResolveUnknownProfile(t *testing.T) {
	source, cache := movieFixture()
	service := newTestService(t, source, cache)

	_, err := service.Resolve(context.Background(), domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt1"}, []string{"nope"})
	if !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("err = %v, want ErrUnknownProfile", err)
	}
	if source.searches.Load() != 0 {
		t.Error("unknown profile must not reach the source")
	}
}

func TestResolveSourceFailurePublishesNothing(t *testing.T) {
	source := &fakeSource{searchErr: errors.New("upstream down")}
	cache := &fakeCacheClient{}
	service := newTestService(t, source, cache)
	target := domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt1"}

	_, err := service.Resolve(context.Background(), target, nil)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("err = %v, want ErrResolutionFailed", err)
	}
	if cache.calls != 0 {
		t.Error("cache must not be consulted after source failure")
	}

	// The slot must be usable again after the failure.
	source.searchErr = nil
	source.entries = nil
	if _, err := service.Resolve(context.Background(), target, nil); err != nil {
		t.Fatalf("slot stuck after failure: %v", err)
	}
}

func TestResolveCustomProfiles(t *testing.T) {
	source, cache := movieFixture()
	small := domain.RankingProfile{
		Name:        "small",
		ResultLimit: 10,
		Filters: []domain.Predicate{
			{Field: domain.FieldSizeGB, Op: domain.OpLe, Value: "5"},
		},
		SortRules: []domain.SortRule{{Field: domain.FieldSeeders}},
	}
	service := newTestService(t, source, cache, small)

	results, err := service.Resolve(context.Background(), domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt100"}, []string{"small", "default"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d profiles, want 2", len(results))
	}
	if got := len(results["small"].Candidates); got != 1 {
		t.Errorf("small profile kept %d, want 1", got)
	}
	if got := len(results["default"].Candidates); got != 2 {
		t.Errorf("default profile kept %d, want 2", got)
	}
	if results["small"].Handle == results["default"].Handle {
		t.Error("profiles must get distinct handles")
	}
}

func TestResolveSearchSuperseded(t *testing.T) {
	source, cache := movieFixture()
	source.identified = domain.MediaTarget{Kind: domain.MediaKindMovie, ExternalID: "tt100"}
	service, err := NewService(
		source,
		NewMatcher(cache, testLogger()),
		NewLedger(time.Minute, 50, nil),
		ServiceConfig{DebounceQuiet: 80 * time.Millisecond},
		testLogger(),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	outcome := make(chan map[string]domain.Resolution, 1)
	go func() {
		results, _ := service.ResolveSearch(context.Background(), "great mov", nil)
		outcome <- results
	}()

	time.Sleep(20 * time.Millisecond)
	latest, err := service.ResolveSearch(context.Background(), "great movie", nil)
	if err != nil {
		t.Fatalf("latest search: %v", err)
	}

	superseded := <-outcome
	if len(superseded) != 0 {
		t.Errorf("superseded search returned %d profiles, want empty", len(superseded))
	}
	if len(latest) == 0 {
		t.Error("latest search should produce results")
	}
	if source.searches.Load() != 1 {
		t.Errorf("source fetches = %d, want only the surviving query", source.searches.Load())
	}
}

func TestResolveSearchInvalidProfile(t *testing.T) {
	source, cache := movieFixture()
	service := newTestService(t, source, cache)

	_, err := service.ResolveSearch(context.Background(), "query", []string{"missing"})
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile", err)
	}
	if source.searches.Load() != 0 {
		t.Error("invalid profile must not reach the source")
	}
}

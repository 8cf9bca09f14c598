package torrentio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"debridstream/resolverservice/internal/domain"
)

func newTestProvider(streamURL, catalogURL string) *Provider {
	return NewProvider(Config{
		StreamEndpoint:  streamURL,
		CatalogEndpoint: catalogURL,
		Timeout:         2 * time.Second,
		MaxAttempts:     1,
	})
}

func TestSearchMovie(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"streams":[
			{"title":"Movie 2024 1080p\n👤 50 💾 4.2 GB ⚙️ SourceA","infoHash":"` + strings.Repeat("a", 40) + `"},
			{"title":"Movie 2024 2160p\n👤 10 💾 12 GB ⚙️ SourceB","infoHash":"` + strings.Repeat("b", 40) + `"}
		]}`))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	entries, err := provider.Search(context.Background(), domain.MediaTarget{
		Kind:       domain.MediaKindMovie,
		ExternalID: "tt0111161",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if !strings.HasSuffix(requestedPath, "/stream/movie/tt0111161.json") {
		t.Errorf("path = %q, want movie stream path", requestedPath)
	}
	if entries[0].InfoHash != strings.Repeat("a", 40) {
		t.Errorf("first hash = %q", entries[0].InfoHash)
	}
}

func TestSearchShowEncodesSeasonEpisode(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"streams":[]}`))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	_, err := provider.Search(context.Background(), domain.MediaTarget{
		Kind:       domain.MediaKindShow,
		ExternalID: "tt0903747",
		Seasons:    []int{2},
		Episode:    5,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(requestedPath, "tt0903747:2:5.json") {
		t.Errorf("path = %q, want series path with season and episode", requestedPath)
	}
}

func TestIdentifyExtractsTokensFromQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("catalog must not be called when the query carries an imdb id")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	target, err := provider.Identify(context.Background(), "tt0903747 s02 e05")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if target.ExternalID != "tt0903747" {
		t.Errorf("id = %q, want tt0903747", target.ExternalID)
	}
	if target.Kind != domain.MediaKindShow {
		t.Errorf("kind = %q, want show", target.Kind)
	}
	if len(target.Seasons) != 1 || target.Seasons[0] != 2 {
		t.Errorf("seasons = %v, want [2]", target.Seasons)
	}
	if target.Episode != 5 {
		t.Errorf("episode = %d, want 5", target.Episode)
	}
}

func TestIdentifyViaCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/catalog/series/top/") {
			t.Errorf("path = %q, want series catalog search", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"metas":[{"id":"tt0903747","type":"series","name":"Breaking Bad"}]}`))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	target, err := provider.Identify(context.Background(), "breaking bad season 2")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if target.ExternalID != "tt0903747" {
		t.Errorf("id = %q, want tt0903747", target.ExternalID)
	}
	if target.Kind != domain.MediaKindShow {
		t.Errorf("kind = %q, want show", target.Kind)
	}
}

func TestIdentifyFallsBackToSeriesCatalog(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/catalog/movie/") {
			_, _ = w.Write([]byte(`{"metas":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"metas":[{"id":"tt0903747","type":"series","name":"Breaking Bad"}]}`))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	target, err := provider.Identify(context.Background(), "breaking bad")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(paths) != 2 || !strings.Contains(paths[0], "/catalog/movie/") || !strings.Contains(paths[1], "/catalog/series/") {
		t.Fatalf("paths = %v, want movie catalog then series catalog", paths)
	}
	if target.Kind != domain.MediaKindShow {
		t.Errorf("kind = %q, want show", target.Kind)
	}
	if len(target.Seasons) != 1 || target.Seasons[0] != 1 {
		t.Errorf("seasons = %v, want [1]", target.Seasons)
	}
}

func TestIdentifyNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"metas":[]}`))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	if _, err := provider.Identify(context.Background(), "no such thing"); err == nil {
		t.Fatal("expected error for empty catalog result")
	}
}

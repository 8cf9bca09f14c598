package torrentio

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/providers/common"
)

const (
	defaultStreamEndpoint  = "https://torrentio.strem.fun"
	defaultCatalogEndpoint = "https://v3-cinemeta.strem.io"
	defaultOptions         = "sort=qualitysize|qualityfilter=480p,scr,cam,unknown"
)

var (
	imdbIDPattern  = regexp.MustCompile(`tt\d+`)
	seasonPattern  = regexp.MustCompile(`(?i)(?:season|s)[.\-_ ]?(\d+)`)
	episodePattern = regexp.MustCompile(`(?i)(?:episode|e)[.\-_ ]?(\d+)`)
)

type Config struct {
	StreamEndpoint  string
	CatalogEndpoint string
	Options         string
	Timeout         time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
}

// Provider fetches raw release entries from a stremio-style stream endpoint
// and identifies free-text queries through a cinemeta-style catalog search.
type Provider struct {
	client    *common.Client
	catalog   *common.Client
	streamURL string
	catURL    string
	options   string
}

type streamItem struct {
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
}

type streamResponse struct {
	Streams []streamItem `json:"streams"`
}

type catalogMeta struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type catalogResponse struct {
	Metas []catalogMeta `json:"metas"`
}

func NewProvider(cfg Config) *Provider {
	streamURL := strings.TrimSpace(cfg.StreamEndpoint)
	if streamURL == "" {
		streamURL = defaultStreamEndpoint
	}
	catURL := strings.TrimSpace(cfg.CatalogEndpoint)
	if catURL == "" {
		catURL = defaultCatalogEndpoint
	}
	options := strings.TrimSpace(cfg.Options)
	if options == "" {
		options = defaultOptions
	}
	return &Provider{
		client: common.NewClient(common.ClientConfig{
			Service:           "torrentio",
			Timeout:           cfg.Timeout,
			MaxAttempts:       cfg.MaxAttempts,
			RetryBackoff:      cfg.RetryBackoff,
			RequestsPerSecond: 1,
			RetryableStatuses: []int{429, 503},
		}),
		catalog: common.NewClient(common.ClientConfig{
			Service:           "cinemeta",
			Timeout:           cfg.Timeout,
			MaxAttempts:       cfg.MaxAttempts,
			RetryBackoff:      cfg.RetryBackoff,
			RequestsPerSecond: 2,
			RetryableStatuses: []int{429, 503},
		}),
		streamURL: strings.TrimRight(streamURL, "/"),
		catURL:    strings.TrimRight(catURL, "/"),
		options:   options,
	}
}

func (p *Provider) Name() string {
	return "torrentio"
}

// Search fetches the raw entry list for one target. For a show target the
// stream path carries season and episode; a season pack request uses episode 1
// as the probe episode the way stremio addons expect.
func (p *Provider) Search(ctx context.Context, target domain.MediaTarget) ([]domain.RawEntry, error) {
	var path string
	switch target.Kind {
	case domain.MediaKindMovie:
		path = fmt.Sprintf("%s/%s/stream/movie/%s.json", p.streamURL, p.options, url.PathEscape(target.ExternalID))
	case domain.MediaKindShow:
		season, episode := 1, 1
		if len(target.Seasons) > 0 {
			season = target.Seasons[0]
		}
		if target.Episode > 0 {
			episode = target.Episode
		}
		path = fmt.Sprintf("%s/%s/stream/series/%s.json", p.streamURL, p.options,
			url.PathEscape(fmt.Sprintf("%s:%d:%d", target.ExternalID, season, episode)))
	default:
		return nil, fmt.Errorf("unsupported media kind %q", target.Kind)
	}

	var payload streamResponse
	if err := p.client.GetJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("torrentio stream fetch: %w", err)
	}

	entries := make([]domain.RawEntry, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		entries = append(entries, domain.RawEntry{
			Title:    stream.Title,
			InfoHash: stream.InfoHash,
		})
	}
	return entries, nil
}

// Identify turns a free-text query into a media target. Season and episode
// tokens and an explicit imdb id are lifted from the query first; the
// remaining words go to the catalog search, and the first hit decides kind
// and id.
func (p *Provider) Identify(ctx context.Context, query string) (domain.MediaTarget, error) {
	text := strings.TrimSpace(query)
	target := domain.MediaTarget{Kind: domain.MediaKindMovie}

	if match := seasonPattern.FindStringSubmatch(text); match != nil {
		season, _ := strconv.Atoi(match[1])
		target.Seasons = []int{season}
		target.Kind = domain.MediaKindShow
		text = strings.Replace(text, match[0], "", 1)
	}
	if match := episodePattern.FindStringSubmatch(text); match != nil {
		episode, _ := strconv.Atoi(match[1])
		target.Episode = episode
		target.Kind = domain.MediaKindShow
		text = strings.Replace(text, match[0], "", 1)
	}
	if id := imdbIDPattern.FindString(text); id != "" {
		target.ExternalID = id
		return target, nil
	}

	kind := "movie"
	if target.Kind == domain.MediaKindShow {
		kind = "series"
	}
	metas, err := p.searchCatalog(ctx, kind, text)
	if err != nil {
		return domain.MediaTarget{}, err
	}
	if len(metas) == 0 && kind == "movie" {
		// A bare query may still name a show; retry the series catalog.
		metas, err = p.searchCatalog(ctx, "series", text)
		if err != nil {
			return domain.MediaTarget{}, err
		}
	}
	if len(metas) == 0 {
		return domain.MediaTarget{}, fmt.Errorf("no catalog match for %q", query)
	}

	meta := metas[0]
	target.ExternalID = meta.ID
	if meta.Type == "series" {
		target.Kind = domain.MediaKindShow
		if len(target.Seasons) == 0 {
			target.Seasons = []int{1}
		}
	}
	return target, nil
}

func (p *Provider) searchCatalog(ctx context.Context, kind, text string) ([]catalogMeta, error) {
	searchURL := fmt.Sprintf("%s/catalog/%s/top/search=%s.json", p.catURL, kind, url.PathEscape(strings.TrimSpace(text)))
	var payload catalogResponse
	if err := p.catalog.GetJSON(ctx, searchURL, &payload); err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	return payload.Metas, nil
}

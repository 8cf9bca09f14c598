package realdebrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/providers/common"
)

const (
	defaultEndpoint   = "https://api.real-debrid.com/rest/1.0"
	availabilityChunk = 40
	maxParallelChunks = 4
)

// ErrNoUsableVersion means every cached version of a candidate turned out to
// be undownloadable, typically because each one was a rar archive.
var ErrNoUsableVersion = errors.New("no usable cached version")

type Config struct {
	Endpoint     string
	APIToken     string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Client talks to a real-debrid style API: batched instant-availability
// lookups during resolution and the add/select/unrestrict flow at download
// time.
type Client struct {
	client   *common.Client
	endpoint string
	logger   *slog.Logger
}

// Download is the outcome of a successful selection: direct links for every
// selected file of the version that worked.
type Download struct {
	TorrentID string   `json:"torrentId"`
	Links     []string `json:"links"`
}

type addMagnetResponse struct {
	ID string `json:"id"`
}

type torrentInfoFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type torrentInfo struct {
	ID    string            `json:"id"`
	Links []string          `json:"links"`
	Files []torrentInfoFile `json:"files"`
}

type unrestrictResponse struct {
	Download string `json:"download"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		client: common.NewClient(common.ClientConfig{
			Service:           "realdebrid",
			Timeout:           cfg.Timeout,
			MaxAttempts:       cfg.MaxAttempts,
			RetryBackoff:      cfg.RetryBackoff,
			RequestsPerSecond: 4,
			RetryableStatuses: []int{400, 404, 429, 500, 503},
			Headers: map[string]string{
				"Authorization": "Bearer " + strings.TrimSpace(cfg.APIToken),
			},
		}),
		endpoint: strings.TrimRight(endpoint, "/"),
		logger:   logger,
	}
}

func (c *Client) ProviderCode() string {
	return "RD"
}

// CheckAvailability looks up which hashes are instantly available, fanning
// the batch out in fixed-size URL chunks with bounded parallelism. The result
// maps each cached hash to its reported file groupings; uncached hashes are
// absent.
func (c *Client) CheckAvailability(ctx context.Context, hashes []string) (map[string][]domain.FileGroup, error) {
	if len(hashes) == 0 {
		return map[string][]domain.FileGroup{}, nil
	}

	chunks := make([][]string, 0, (len(hashes)+availabilityChunk-1)/availabilityChunk)
	for start := 0; start < len(hashes); start += availabilityChunk {
		end := start + availabilityChunk
		if end > len(hashes) {
			end = len(hashes)
		}
		chunks = append(chunks, hashes[start:end])
	}

	sem := semaphore.NewWeighted(maxParallelChunks)
	var wg sync.WaitGroup
	var mu sync.Mutex
	available := make(map[string][]domain.FileGroup, len(hashes))
	var firstErr error

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			partial, err := c.checkChunk(ctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for hash, groups := range partial {
				available[hash] = groups
			}
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return available, nil
}

func (c *Client) checkChunk(ctx context.Context, hashes []string) (map[string][]domain.FileGroup, error) {
	endpoint := c.endpoint + "/torrents/instantAvailability/" + strings.Join(hashes, "/")

	var payload map[string]json.RawMessage
	if err := c.client.GetJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	result := make(map[string][]domain.FileGroup, len(payload))
	for hash, raw := range payload {
		var entry struct {
			RD []domain.FileGroup `json:"rd"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			// Uncached hashes come back as an empty array, not an object.
			continue
		}
		if len(entry.RD) == 0 {
			continue
		}
		result[strings.ToLower(hash)] = entry.RD
	}
	return result, nil
}

// Download walks the candidate's versions best-first and returns direct links
// for the first version that is not a rar archive. A version whose link count
// does not match its selected files is an archive; its torrent is deleted and
// the next version is tried.
func (c *Client) Download(ctx context.Context, candidate domain.Candidate) (Download, error) {
	for _, version := range candidate.Versions {
		fileIDs := make([]string, 0, version.VideoCount)
		for _, file := range version.Files {
			if file.IsVideo || file.IsSubtitle {
				fileIDs = append(fileIDs, file.ID)
			}
		}
		if len(fileIDs) == 0 {
			continue
		}

		download, err := c.downloadVersion(ctx, candidate.Magnet, fileIDs)
		if err != nil {
			if errors.Is(err, errRarArchive) {
				c.logger.Info("cached version is an archive, trying next",
					slog.String("hash", candidate.InfoHash))
				continue
			}
			return Download{}, err
		}
		return download, nil
	}
	return Download{}, fmt.Errorf("%w: %s", ErrNoUsableVersion, candidate.InfoHash)
}

var errRarArchive = errors.New("cached version is a rar archive")

func (c *Client) downloadVersion(ctx context.Context, magnet string, fileIDs []string) (Download, error) {
	var added addMagnetResponse
	form := url.Values{"magnet": {magnet}}
	if err := c.client.PostFormJSON(ctx, c.endpoint+"/torrents/addMagnet", form, &added); err != nil {
		return Download{}, fmt.Errorf("add magnet: %w", err)
	}

	selectForm := url.Values{"files": {strings.Join(fileIDs, ",")}}
	if err := c.client.PostFormJSON(ctx, c.endpoint+"/torrents/selectFiles/"+added.ID, selectForm, nil); err != nil {
		return Download{}, fmt.Errorf("select files: %w", err)
	}

	var info torrentInfo
	if err := c.client.GetJSON(ctx, c.endpoint+"/torrents/info/"+added.ID, &info); err != nil {
		return Download{}, fmt.Errorf("torrent info: %w", err)
	}

	if len(info.Links) != len(fileIDs) {
		_ = c.client.Delete(ctx, c.endpoint+"/torrents/delete/"+added.ID)
		return Download{}, errRarArchive
	}

	links := make([]string, 0, len(info.Links))
	for _, link := range info.Links {
		var unrestricted unrestrictResponse
		unrestrictForm := url.Values{"link": {link}}
		if err := c.client.PostFormJSON(ctx, c.endpoint+"/unrestrict/link", unrestrictForm, &unrestricted); err != nil {
			return Download{}, fmt.Errorf("unrestrict link: %w", err)
		}
		links = append(links, unrestricted.Download)
	}
	return Download{TorrentID: added.ID, Links: links}, nil
}

package domain

import (
	"sort"
	"strconv"
	"strings"
)

type MediaKind string

const (
	MediaKindMovie MediaKind = "movie"
	MediaKindShow  MediaKind = "show"
)

// MediaTarget describes what is being resolved: a movie, or a show with a
// season set and an optional episode. It is immutable for the duration of a
// resolution.
type MediaTarget struct {
	Kind       MediaKind `json:"kind"`
	ExternalID string    `json:"externalId"`
	Seasons    []int     `json:"seasons,omitempty"`
	Episode    int       `json:"episode,omitempty"`
}

// Key returns the coalescer slot identity for the target. Two targets with the
// same key share one in-flight pipeline execution.
func (t MediaTarget) Key() string {
	seasons := append([]int(nil), t.Seasons...)
	sort.Ints(seasons)
	parts := make([]string, 0, len(seasons)+3)
	parts = append(parts, string(t.Kind), strings.ToLower(strings.TrimSpace(t.ExternalID)))
	for _, season := range seasons {
		parts = append(parts, "s"+strconv.Itoa(season))
	}
	if t.Episode > 0 {
		parts = append(parts, "e"+strconv.Itoa(t.Episode))
	}
	return strings.Join(parts, ":")
}

// RawEntry is one unprocessed search-adapter result.
type RawEntry struct {
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
}

// FileEntry is one classified file inside a reported cache grouping. All
// fields derive from the filename alone.
type FileEntry struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	SizeGB     float64 `json:"sizeGb"`
	IsVideo    bool    `json:"isVideo"`
	IsSubtitle bool    `json:"isSubtitle"`
	Season     int     `json:"season,omitempty"`
	Episode    int     `json:"episode,omitempty"`
}

// Version aggregates one reported file grouping for a candidate's hash.
// Aggregate fields are always recomputed from Files, never set directly.
type Version struct {
	Files         []FileEntry `json:"files"`
	TotalSizeGB   float64     `json:"totalSizeGb"`
	VideoCount    int         `json:"videoCount"`
	SubtitleCount int         `json:"subtitleCount"`
	EpisodeCount  int         `json:"episodeCount"`
	Seasons       []int       `json:"seasons,omitempty"`
}

// CoversSeason reports whether the version contains video for the season.
func (v Version) CoversSeason(season int) bool {
	for _, s := range v.Seasons {
		if s == season {
			return true
		}
	}
	return false
}

// MissingSeasons counts how many of the requested seasons the version fails
// to cover.
func (v Version) MissingSeasons(requested []int) int {
	missing := 0
	for _, season := range requested {
		if !v.CoversSeason(season) {
			missing++
		}
	}
	return missing
}

// Candidate is one release under consideration, identified by its content
// hash. After cache matching it carries the primary version's aggregates.
type Candidate struct {
	Title        string    `json:"title"`
	Languages    []string  `json:"languages"`
	Resolution   int       `json:"resolution"`
	SizeGB       float64   `json:"sizeGb"`
	Seeders      int       `json:"seeders"`
	SourceGroup  string    `json:"sourceGroup"`
	InfoHash     string    `json:"infoHash"`
	Magnet       string    `json:"magnet"`
	Kind         MediaKind `json:"kind,omitempty"`
	CachedOn     []string  `json:"cachedOn,omitempty"`
	Versions     []Version `json:"versions,omitempty"`
	VideoCount   int       `json:"videoCount"`
	EpisodeCount int       `json:"episodeCount"`
	Seasons      []int     `json:"seasons,omitempty"`
}

// Clone returns a deep copy. Filtering and ranking mutate version lists and
// aggregates, so every profile application works on its own copy.
func (c Candidate) Clone() Candidate {
	cloned := c
	cloned.Languages = append([]string(nil), c.Languages...)
	cloned.CachedOn = append([]string(nil), c.CachedOn...)
	cloned.Seasons = append([]int(nil), c.Seasons...)
	if c.Versions != nil {
		cloned.Versions = make([]Version, len(c.Versions))
		for i, version := range c.Versions {
			copied := version
			copied.Files = append([]FileEntry(nil), version.Files...)
			copied.Seasons = append([]int(nil), version.Seasons...)
			cloned.Versions[i] = copied
		}
	}
	return cloned
}

// CloneCandidates deep-copies a ranked snapshot.
func CloneCandidates(candidates []Candidate) []Candidate {
	if candidates == nil {
		return nil
	}
	cloned := make([]Candidate, len(candidates))
	for i, candidate := range candidates {
		cloned[i] = candidate.Clone()
	}
	return cloned
}

// FileInfo is one file as reported by the cache-availability service.
type FileInfo struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// FileGroup maps reported file ids to their metadata within one grouping.
type FileGroup map[string]FileInfo

// Resolution is one ranked view of a resolved target, addressable later
// through its handle.
type Resolution struct {
	Handle     string      `json:"handle"`
	Candidates []Candidate `json:"candidates"`
}

package resolver

import (
	"regexp"
	"sort"
	"strconv"

	"debridstream/resolverservice/internal/domain"
)

// Cache listings report file sizes as bit counts, so a gigabyte is 8·2^30.
const fileSizeDivisor = 8 << 30

var (
	videoExtPattern    = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|wmv|flv|webm|m4v|mpg|mpeg|ts)$`)
	subtitleExtPattern = regexp.MustCompile(`(?i)\.(srt|sub|ass|ssa|vtt|idx)$`)
	samplePattern      = regexp.MustCompile(`(?i)\bsample\b`)
	seasonPattern      = regexp.MustCompile(`(?i)(?:season|s)[.\-_ ]?(\d+)`)
	episodePattern     = regexp.MustCompile(`(?i)(?:episode|e)[.\-_ ]?(\d+)`)
)

// ClassifyFile derives per-file attributes from a debrid cache listing entry.
// A file matching the sample heuristic is never treated as video, regardless
// of extension; its other attributes still classify normally.
func ClassifyFile(id string, info domain.FileInfo) domain.FileEntry {
	entry := domain.FileEntry{
		ID:      id,
		Name:    info.Filename,
		SizeGB:  float64(info.Filesize) / float64(fileSizeDivisor),
		Season:  -1,
		Episode: -1,
	}
	entry.IsVideo = videoExtPattern.MatchString(info.Filename) && !samplePattern.MatchString(info.Filename)
	entry.IsSubtitle = subtitleExtPattern.MatchString(info.Filename)
	if match := seasonPattern.FindStringSubmatch(info.Filename); match != nil {
		entry.Season, _ = strconv.Atoi(match[1])
	}
	if match := episodePattern.FindStringSubmatch(info.Filename); match != nil {
		entry.Episode, _ = strconv.Atoi(match[1])
	}
	return entry
}

// BuildVersion classifies every file in one cached variant and recomputes the
// version aggregates. Seasons and episode counts are drawn from video files
// only, so a stray subtitle named S02 does not mark a season as present.
func BuildVersion(group domain.FileGroup) domain.Version {
	ids := make([]string, 0, len(group))
	for id := range group {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	version := domain.Version{Files: make([]domain.FileEntry, 0, len(group))}
	seasons := make(map[int]struct{})
	for _, id := range ids {
		entry := ClassifyFile(id, group[id])
		version.Files = append(version.Files, entry)
		version.TotalSizeGB += entry.SizeGB
		switch {
		case entry.IsVideo:
			version.VideoCount++
			if entry.Season >= 0 {
				seasons[entry.Season] = struct{}{}
			}
			if entry.Episode >= 0 {
				version.EpisodeCount++
			}
		case entry.IsSubtitle:
			version.SubtitleCount++
		}
	}
	version.Seasons = make([]int, 0, len(seasons))
	for season := range seasons {
		version.Seasons = append(version.Seasons, season)
	}
	sort.Ints(version.Seasons)
	return version
}

// VideoDensity is the ratio used to break ties between versions with the same
// video count: fewer non-video files means a cleaner release.
func VideoDensity(v domain.Version) float64 {
	if len(v.Files) == 0 {
		return 0
	}
	return float64(v.VideoCount) / float64(len(v.Files))
}

// sortVersions orders versions best-first: most videos, then highest video
// density. The sort is stable so equally good versions keep backend order.
func sortVersions(versions []domain.Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].VideoCount != versions[j].VideoCount {
			return versions[i].VideoCount > versions[j].VideoCount
		}
		return VideoDensity(versions[i]) > VideoDensity(versions[j])
	})
}

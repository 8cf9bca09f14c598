package resolver

import (
	"reflect"
	"testing"

	"debridstream/resolverservice/internal/domain"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		isVideo    bool
		isSubtitle bool
		season     int
		episode    int
	}{
		{name: "plain video", filename: "Film.2024.1080p.mkv", isVideo: true, season: -1, episode: -1},
		// The short episode token is greedy: a trailing "e" before the year
		// reads as an episode marker.
		{name: "trailing e before year", filename: "Movie.2024.1080p.mkv", isVideo: true, season: -1, episode: 2024},
		{name: "episode video", filename: "Show.S02E05.720p.mp4", isVideo: true, season: 2, episode: 5},
		{name: "long tokens", filename: "Show Season 3 Episode 12.avi", isVideo: true, season: 3, episode: 12},
		{name: "subtitle", filename: "Show.S01E01.srt", isSubtitle: true, season: 1, episode: 1},
		{name: "sample never video", filename: "sample.mkv", season: -1, episode: -1},
		{name: "sample keeps tokens", filename: "Show.S01E01.sample.mkv", season: 1, episode: 1},
		{name: "sample subtitle still subtitle", filename: "Show.S01E01.sample.srt", isSubtitle: true, season: 1, episode: 1},
		{name: "nfo is neither", filename: "release.nfo", season: -1, episode: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyFile("1", domain.FileInfo{Filename: tt.filename})
			if got.IsVideo != tt.isVideo {
				t.Errorf("isVideo = %v, want %v", got.IsVideo, tt.isVideo)
			}
			if got.IsSubtitle != tt.isSubtitle {
				t.Errorf("isSubtitle = %v, want %v", got.IsSubtitle, tt.isSubtitle)
			}
			if got.Season != tt.season {
				t.Errorf("season = %d, want %d", got.Season, tt.season)
			}
			if got.Episode != tt.episode {
				t.Errorf("episode = %d, want %d", got.Episode, tt.episode)
			}
		})
	}
}

func TestBuildVersionAggregates(t *testing.T) {
	group := domain.FileGroup{
		"1": {Filename: "Show.S01E01.mkv", Filesize: 2 * fileSizeDivisor},
		"2": {Filename: "Show.S01E02.mkv", Filesize: 2 * fileSizeDivisor},
		"3": {Filename: "Show.S02E01.mkv", Filesize: 2 * fileSizeDivisor},
		"4": {Filename: "Show.S03E01.srt", Filesize: fileSizeDivisor / 1000},
		"5": {Filename: "cover.jpg", Filesize: fileSizeDivisor / 1000},
	}

	version := BuildVersion(group)
	if version.VideoCount != 3 {
		t.Errorf("videoCount = %d, want 3", version.VideoCount)
	}
	if version.EpisodeCount != 3 {
		t.Errorf("episodeCount = %d, want 3", version.EpisodeCount)
	}
	if version.SubtitleCount != 1 {
		t.Errorf("subtitleCount = %d, want 1", version.SubtitleCount)
	}
	// The S03 subtitle must not register season 3.
	if !reflect.DeepEqual(version.Seasons, []int{1, 2}) {
		t.Errorf("seasons = %v, want [1 2]", version.Seasons)
	}
	if version.TotalSizeGB < 6 || version.TotalSizeGB > 6.01 {
		t.Errorf("totalSizeGb = %v, want about 6", version.TotalSizeGB)
	}
	if len(version.Files) != 5 {
		t.Errorf("files = %d, want 5", len(version.Files))
	}
}

func TestSortVersionsPrefersMoreVideosThenDensity(t *testing.T) {
	twoVideosClean := BuildVersion(domain.FileGroup{
		"1": {Filename: "a.mkv"},
		"2": {Filename: "b.mkv"},
	})
	twoVideosNoisy := BuildVersion(domain.FileGroup{
		"1": {Filename: "a.mkv"},
		"2": {Filename: "b.mkv"},
		"3": {Filename: "extras.nfo"},
		"4": {Filename: "cover.jpg"},
	})
	oneVideo := BuildVersion(domain.FileGroup{
		"1": {Filename: "a.mkv"},
	})

	versions := []domain.Version{oneVideo, twoVideosNoisy, twoVideosClean}
	sortVersions(versions)

	if versions[0].VideoCount != 2 || len(versions[0].Files) != 2 {
		t.Errorf("primary should be the clean two-video version, got %+v", versions[0])
	}
	if versions[1].VideoCount != 2 || len(versions[1].Files) != 4 {
		t.Errorf("second should be the noisy two-video version, got %+v", versions[1])
	}
	if versions[2].VideoCount != 1 {
		t.Errorf("last should be the single-video version, got %+v", versions[2])
	}
}

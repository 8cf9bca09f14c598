package resolver

import (
	"debridstream/resolverservice/internal/domain"
)

// FilterByTarget prunes candidates and their versions down to what can serve
// the requested target. A version that structurally cannot serve the request
// is removed from the candidate; a candidate left without versions is dropped
// outright. Surviving candidates get their aggregates re-promoted from the
// best remaining version and are tagged with the target kind.
func FilterByTarget(candidates []domain.Candidate, target domain.MediaTarget) []domain.Candidate {
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		versions := make([]domain.Version, 0, len(candidate.Versions))
		for _, version := range candidate.Versions {
			if versionFits(version, target) {
				versions = append(versions, version)
			}
		}
		if len(versions) == 0 {
			continue
		}
		candidate.Kind = target.Kind
		candidate.Versions = versions
		candidate.SizeGB = versions[0].TotalSizeGB
		candidate.VideoCount = versions[0].VideoCount
		candidate.EpisodeCount = versions[0].EpisodeCount
		candidate.Seasons = versions[0].Seasons
		kept = append(kept, candidate)
	}
	return kept
}

func versionFits(version domain.Version, target domain.MediaTarget) bool {
	if target.Kind == domain.MediaKindMovie {
		return version.VideoCount > 0
	}

	switch {
	case len(target.Seasons) > 1:
		// A season pack may miss at most half of the requested seasons.
		missing := version.MissingSeasons(target.Seasons)
		return missing*2 <= len(target.Seasons) && version.EpisodeCount > 1
	case len(target.Seasons) == 1 && target.Episode > 0:
		return version.CoversSeason(target.Seasons[0]) && version.EpisodeCount == 1
	case len(target.Seasons) == 1:
		return version.CoversSeason(target.Seasons[0]) && version.EpisodeCount > 1
	case target.Episode > 0:
		return version.EpisodeCount == 1
	default:
		return version.EpisodeCount > 1
	}
}

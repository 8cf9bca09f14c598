package resolver

import (
	"sort"
	"strconv"
	"strings"

	"debridstream/resolverservice/internal/domain"
)

// Rank applies one profile to a candidate list: predicate filtering, the
// fixed episode-count pre-sort, then each profile sort rule as a stable
// descending pass. Stability makes later rules dominate tie-breaking among
// candidates an earlier rule left equal. The input slice is reordered in
// place and the truncated head is returned.
func Rank(candidates []domain.Candidate, profile domain.RankingProfile) []domain.Candidate {
	ranked := candidates[:0]
	for _, candidate := range candidates {
		if satisfiesAll(candidate, profile.Filters) {
			ranked = append(ranked, candidate)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EpisodeCount > ranked[j].EpisodeCount
	})
	for _, rule := range profile.SortRules {
		key := numericField(rule.Field)
		sort.SliceStable(ranked, func(i, j int) bool {
			return key(ranked[i]) > key(ranked[j])
		})
	}

	if profile.ResultLimit > 0 && len(ranked) > profile.ResultLimit {
		ranked = ranked[:profile.ResultLimit]
	}
	return ranked
}

func satisfiesAll(candidate domain.Candidate, predicates []domain.Predicate) bool {
	for _, predicate := range predicates {
		if !satisfies(candidate, predicate) {
			return false
		}
	}
	return true
}

func satisfies(candidate domain.Candidate, predicate domain.Predicate) bool {
	if _, ok := textValues(candidate, predicate.Field); ok {
		return satisfiesText(candidate, predicate)
	}
	left := numericField(predicate.Field)(candidate)
	right, err := strconv.ParseFloat(strings.TrimSpace(predicate.Value), 64)
	if err != nil {
		return false
	}
	switch predicate.Op {
	case domain.OpEq:
		return left == right
	case domain.OpNe:
		return left != right
	case domain.OpGt:
		return left > right
	case domain.OpGe:
		return left >= right
	case domain.OpLt:
		return left < right
	case domain.OpLe:
		return left <= right
	default:
		return false
	}
}

func satisfiesText(candidate domain.Candidate, predicate domain.Predicate) bool {
	values, _ := textValues(candidate, predicate.Field)
	want := strings.ToLower(strings.TrimSpace(predicate.Value))
	found := false
	for _, value := range values {
		if strings.ToLower(value) == want {
			found = true
			break
		}
	}
	switch predicate.Op {
	case domain.OpEq, domain.OpContains:
		return found
	case domain.OpNe:
		return !found
	default:
		return false
	}
}

// textValues returns the candidate's values for a text field, or ok=false for
// numeric fields.
func textValues(candidate domain.Candidate, field string) ([]string, bool) {
	switch field {
	case domain.FieldLanguage:
		return candidate.Languages, true
	case domain.FieldSourceGroup:
		return []string{candidate.SourceGroup}, true
	case domain.FieldCached:
		return candidate.CachedOn, true
	default:
		return nil, false
	}
}

func numericField(field string) func(domain.Candidate) float64 {
	switch field {
	case domain.FieldResolution:
		return func(c domain.Candidate) float64 { return float64(c.Resolution) }
	case domain.FieldSizeGB:
		return func(c domain.Candidate) float64 { return c.SizeGB }
	case domain.FieldSeeders:
		return func(c domain.Candidate) float64 { return float64(c.Seeders) }
	case domain.FieldEpisodeCount:
		return func(c domain.Candidate) float64 { return float64(c.EpisodeCount) }
	case domain.FieldVideoCount:
		return func(c domain.Candidate) float64 { return float64(c.VideoCount) }
	default:
		return func(domain.Candidate) float64 { return 0 }
	}
}

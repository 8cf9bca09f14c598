package resolver

import (
	"reflect"
	"testing"

	"debridstream/resolverservice/internal/domain"
)

func rankInput() []domain.Candidate {
	return []domain.Candidate{
		{Title: "A", Resolution: 1080, Seeders: 10, SizeGB: 4, Languages: []string{"EN"}},
		{Title: "B", Resolution: 2160, Seeders: 5, SizeGB: 20, Languages: []string{"EN", "FR"}},
		{Title: "C", Resolution: 1080, Seeders: 50, SizeGB: 8, Languages: []string{"DE"}},
		{Title: "D", Resolution: 720, Seeders: 100, SizeGB: 1, Languages: []string{"EN"}},
	}
}

func titles(candidates []domain.Candidate) []string {
	out := make([]string, len(candidates))
	for i, candidate := range candidates {
		out[i] = candidate.Title
	}
	return out
}

func TestRankFiltersThenSorts(t *testing.T) {
	profile := domain.RankingProfile{
		Name:        "hd-english",
		ResultLimit: 10,
		Filters: []domain.Predicate{
			{Field: domain.FieldResolution, Op: domain.OpGe, Value: "1080"},
			{Field: domain.FieldLanguage, Op: domain.OpContains, Value: "en"},
		},
		SortRules: []domain.SortRule{{Field: domain.FieldResolution}},
	}

	got := titles(Rank(rankInput(), profile))
	if !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("order = %v, want [B A]", got)
	}
}

func TestRankLaterRuleWinsTies(t *testing.T) {
	candidates := []domain.Candidate{
		{Title: "A", Resolution: 1080, Seeders: 10},
		{Title: "B", Resolution: 1080, Seeders: 90},
		{Title: "C", Resolution: 720, Seeders: 500},
	}
	// Seeders sorts first, then resolution; among equal resolutions the
	// seeders pass decides because the resolution pass is stable.
	profile := domain.RankingProfile{
		Name:        "quality",
		ResultLimit: 10,
		SortRules: []domain.SortRule{
			{Field: domain.FieldSeeders},
			{Field: domain.FieldResolution},
		},
	}

	got := titles(Rank(candidates, profile))
	if !reflect.DeepEqual(got, []string{"B", "A", "C"}) {
		t.Errorf("order = %v, want [B A C]", got)
	}
}

func TestRankDefaultProfileResolutionDominates(t *testing.T) {
	candidates := []domain.Candidate{
		{Title: "A", Resolution: 1080, Seeders: 500},
		{Title: "B", Resolution: 2160, Seeders: 5},
		{Title: "C", Resolution: 1080, Seeders: 900},
	}

	got := titles(Rank(candidates, domain.DefaultRankingProfile()))
	if !reflect.DeepEqual(got, []string{"B", "C", "A"}) {
		t.Errorf("order = %v, want [B C A]", got)
	}
}

func TestRankEpisodeCountPreSort(t *testing.T) {
	candidates := []domain.Candidate{
		{Title: "A", EpisodeCount: 1, Resolution: 1080},
		{Title: "B", EpisodeCount: 8, Resolution: 1080},
		{Title: "C", EpisodeCount: 4, Resolution: 1080},
	}
	profile := domain.RankingProfile{
		Name:        "default",
		ResultLimit: 10,
		SortRules:   []domain.SortRule{{Field: domain.FieldResolution}},
	}

	got := titles(Rank(candidates, profile))
	if !reflect.DeepEqual(got, []string{"B", "C", "A"}) {
		t.Errorf("order = %v, want [B C A]", got)
	}
}

func TestRankTruncatesToLimit(t *testing.T) {
	profile := domain.RankingProfile{
		Name:        "top-two",
		ResultLimit: 2,
		SortRules:   []domain.SortRule{{Field: domain.FieldSeeders}},
	}

	got := Rank(rankInput(), profile)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "D" || got[1].Title != "C" {
		t.Errorf("order = %v, want [D C]", titles(got))
	}
}

func TestRankDeterministic(t *testing.T) {
	profile := domain.RankingProfile{
		Name:        "repeat",
		ResultLimit: 10,
		SortRules: []domain.SortRule{
			{Field: domain.FieldSizeGB},
			{Field: domain.FieldResolution},
		},
	}

	first := titles(Rank(rankInput(), profile))
	second := titles(Rank(rankInput(), profile))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ: %v vs %v", first, second)
	}
}

func TestRankNumericPredicates(t *testing.T) {
	tests := []struct {
		name      string
		predicate domain.Predicate
		want      []string
	}{
		{
			name:      "size upper bound",
			predicate: domain.Predicate{Field: domain.FieldSizeGB, Op: domain.OpLe, Value: "8"},
			want:      []string{"A", "C", "D"},
		},
		{
			name:      "exact resolution",
			predicate: domain.Predicate{Field: domain.FieldResolution, Op: domain.OpEq, Value: "720"},
			want:      []string{"D"},
		},
		{
			name:      "language excluded",
			predicate: domain.Predicate{Field: domain.FieldLanguage, Op: domain.OpNe, Value: "EN"},
			want:      []string{"C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := domain.RankingProfile{Name: "t", ResultLimit: 10, Filters: []domain.Predicate{tt.predicate}}
			got := titles(Rank(rankInput(), profile))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("kept = %v, want %v", got, tt.want)
			}
		})
	}
}

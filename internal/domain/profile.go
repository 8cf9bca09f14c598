package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PredicateOp is one comparison operator in the closed predicate vocabulary.
type PredicateOp string

const (
	OpEq       PredicateOp = "eq"
	OpNe       PredicateOp = "ne"
	OpGt       PredicateOp = "gt"
	OpGe       PredicateOp = "ge"
	OpLt       PredicateOp = "lt"
	OpLe       PredicateOp = "le"
	OpContains PredicateOp = "contains"
)

// Candidate fields addressable by predicates and sort rules. The set is
// closed: profiles reference fields by name and never execute code.
const (
	FieldResolution   = "resolution"
	FieldSizeGB       = "sizeGb"
	FieldSeeders      = "seeders"
	FieldEpisodeCount = "episodeCount"
	FieldVideoCount   = "videoCount"
	FieldLanguage     = "language"
	FieldSourceGroup  = "sourceGroup"
	FieldCached       = "cached"
)

// Predicate is one declarative filter over candidate attributes. A candidate
// survives a profile's filter stage only if every predicate holds.
type Predicate struct {
	Field string      `json:"field"`
	Op    PredicateOp `json:"op"`
	Value string      `json:"value"`
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Value)
}

// SortRule names a candidate field used as a stable descending sort key.
type SortRule struct {
	Field string `json:"field"`
}

// RankingProfile is one named, read-only output configuration: which
// candidates to keep, how to order them, and how many to return.
type RankingProfile struct {
	Name        string      `json:"name"`
	ResultLimit int         `json:"resultLimit"`
	Filters     []Predicate `json:"filters,omitempty"`
	SortRules   []SortRule  `json:"sortRules,omitempty"`
}

// DefaultRankingProfile orders by resolution first, seeders as a tiebreak.
// Sort rules apply back to front, so the dominant key goes last.
func DefaultRankingProfile() RankingProfile {
	return RankingProfile{
		Name:        "default",
		ResultLimit: 10,
		SortRules: []SortRule{
			{Field: FieldSeeders},
			{Field: FieldResolution},
		},
	}
}

var numericFields = map[string]struct{}{
	FieldResolution:   {},
	FieldSizeGB:       {},
	FieldSeeders:      {},
	FieldEpisodeCount: {},
	FieldVideoCount:   {},
}

var stringFields = map[string]struct{}{
	FieldLanguage:    {},
	FieldSourceGroup: {},
	FieldCached:      {},
}

// Validate rejects profiles that reference unknown fields or operators, or
// pair a numeric operator with a non-numeric value. Validation happens once at
// configuration load so ranking itself never fails.
func (p RankingProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.ResultLimit <= 0 {
		return fmt.Errorf("profile %q: resultLimit must be > 0", p.Name)
	}
	for _, predicate := range p.Filters {
		_, numeric := numericFields[predicate.Field]
		_, text := stringFields[predicate.Field]
		if !numeric && !text {
			return fmt.Errorf("profile %q: unknown filter field %q", p.Name, predicate.Field)
		}
		switch predicate.Op {
		case OpEq, OpNe:
		case OpGt, OpGe, OpLt, OpLe:
			if !numeric {
				return fmt.Errorf("profile %q: operator %s requires a numeric field, got %q", p.Name, predicate.Op, predicate.Field)
			}
		case OpContains:
			if !text {
				return fmt.Errorf("profile %q: operator contains requires a text field, got %q", p.Name, predicate.Field)
			}
		default:
			return fmt.Errorf("profile %q: unknown operator %q", p.Name, predicate.Op)
		}
		if numeric {
			if _, err := strconv.ParseFloat(strings.TrimSpace(predicate.Value), 64); err != nil {
				return fmt.Errorf("profile %q: predicate %q needs a numeric value: %w", p.Name, predicate.String(), err)
			}
		}
	}
	for _, rule := range p.SortRules {
		if _, ok := numericFields[rule.Field]; !ok {
			return fmt.Errorf("profile %q: unknown sort field %q", p.Name, rule.Field)
		}
	}
	return nil
}

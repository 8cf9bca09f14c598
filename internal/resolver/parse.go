package resolver

import (
	"regexp"
	"strconv"
	"strings"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/providers/common"
)

var (
	flagPairPattern   = regexp.MustCompile(`[\x{1F1E6}-\x{1F1FF}][\x{1F1E6}-\x{1F1FF}]`)
	resolutionPattern = regexp.MustCompile(`(?i)(2160|1080|720|480)[pi]`)
	sizePattern       = regexp.MustCompile(`💾 ([0-9]+(?:\.[0-9]+)?) (GB|MB)`)
	seedersPattern    = regexp.MustCompile(`👤 ([0-9]+)`)
	sourcePattern     = regexp.MustCompile(`⚙️ (.*)`)
	infoHashPattern   = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// flagToLanguage maps a flag-emoji pair to the primary language spoken where
// the flag flies. Unmapped flags pass through verbatim.
var flagToLanguage = map[string]string{
	"🇦🇷": "ES", "🇦🇹": "DE", "🇦🇺": "EN", "🇧🇩": "BN", "🇧🇪": "NL",
	"🇧🇬": "BG", "🇧🇷": "PT", "🇨🇦": "EN", "🇨🇳": "ZH", "🇨🇴": "ES",
	"🇨🇺": "ES", "🇨🇿": "CS", "🇩🇪": "DE", "🇩🇰": "DA", "🇪🇦": "ES",
	"🇪🇪": "ET", "🇪🇬": "AR", "🇪🇸": "ES", "🇪🇹": "AM", "🇫🇮": "FI",
	"🇫🇷": "FR", "🇬🇧": "EN", "🇬🇷": "EL", "🇭🇰": "ZH", "🇭🇷": "HR",
	"🇭🇺": "HU", "🇮🇩": "ID", "🇮🇱": "HE", "🇮🇳": "HI", "🇮🇷": "FA",
	"🇮🇸": "IS", "🇮🇹": "IT", "🇯🇵": "JA", "🇰🇷": "KO", "🇱🇹": "LT",
	"🇱🇻": "LV", "🇲🇦": "AR", "🇲🇽": "ES", "🇲🇾": "MS", "🇳🇱": "NL",
	"🇳🇴": "NO", "🇳🇿": "EN", "🇵🇪": "ES", "🇵🇭": "TL", "🇵🇰": "UR",
	"🇵🇱": "PL", "🇵🇹": "PT", "🇷🇴": "RO", "🇷🇺": "RU", "🇸🇦": "AR",
	"🇸🇪": "SE", "🇸🇬": "EN", "🇸🇰": "SK", "🇹🇭": "TH", "🇹🇷": "TR",
	"🇹🇼": "ZH", "🇺🇦": "UK", "🇺🇸": "EN", "🇻🇳": "VI", "🇿🇦": "ZU",
}

// ParseTitle extracts the structured candidate attributes encoded in one raw
// search-result title. Each rule is independent; a missing marker falls back
// to its documented default.
func ParseTitle(raw string) domain.Candidate {
	firstLine := raw
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}

	languages := []string{"EN"}
	if flags := flagPairPattern.FindAllString(raw, -1); len(flags) > 0 {
		languages = make([]string, len(flags))
		for i, flag := range flags {
			if code, ok := flagToLanguage[flag]; ok {
				languages[i] = code
			} else {
				languages[i] = flag
			}
		}
	}

	resolution := 0
	if match := resolutionPattern.FindStringSubmatch(raw); match != nil {
		resolution, _ = strconv.Atoi(match[1])
	}

	sizeGB := 0.0
	if match := sizePattern.FindStringSubmatch(raw); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			if match[2] == "MB" {
				value /= 1000
			}
			sizeGB = value
		}
	}

	seeders := 0
	if match := seedersPattern.FindStringSubmatch(raw); match != nil {
		seeders, _ = strconv.Atoi(match[1])
	}

	sourceGroup := "unknown"
	if match := sourcePattern.FindStringSubmatch(raw); match != nil && strings.TrimSpace(match[1]) != "" {
		sourceGroup = strings.TrimSpace(match[1])
	}

	return domain.Candidate{
		Title:       strings.ReplaceAll(firstLine, " ", "."),
		Languages:   languages,
		Resolution:  resolution,
		SizeGB:      sizeGB,
		Seeders:     seeders,
		SourceGroup: sourceGroup,
	}
}

// ParseEntries turns raw adapter entries into candidates, deduplicated by
// content hash in first-seen order. Malformed entries are skipped; the rest of
// the batch still processes.
func ParseEntries(entries []domain.RawEntry) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		hash := common.NormalizeInfoHash(entry.InfoHash)
		if !infoHashPattern.MatchString(hash) {
			continue
		}
		if strings.TrimSpace(entry.Title) == "" {
			continue
		}
		if _, exists := seen[hash]; exists {
			continue
		}
		seen[hash] = struct{}{}

		candidate := ParseTitle(entry.Title)
		candidate.InfoHash = hash
		candidate.Magnet = common.BuildMagnet(hash)
		candidates = append(candidates, candidate)
	}
	return candidates
}

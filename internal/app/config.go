package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"debridstream/resolverservice/internal/domain"
)

type Config struct {
	HTTPAddr            string
	RequestTimeout      time.Duration
	LogLevel            string
	LogFormat           string
	TorrentioEndpoint   string
	TorrentioOptions    string
	CatalogEndpoint     string
	DebridEndpoint      string
	DebridAPIToken      string
	UpstreamMaxAttempts int
	UpstreamBackoff     time.Duration
	DebounceQuiet       time.Duration
	LedgerTTL           time.Duration
	LedgerMaxEntries    int
	RedisURL            string
	Profiles            []domain.RankingProfile
}

// LoadConfig reads configuration from the environment, loading a local .env
// file first when present. Ranking profiles come from RESOLVER_PROFILES as a
// JSON array and are validated before the service starts.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	profiles, err := parseProfiles(os.Getenv("RESOLVER_PROFILES"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout:      time.Duration(getEnvInt("RESOLVER_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TorrentioEndpoint:   getEnv("TORRENTIO_ENDPOINT", "https://torrentio.strem.fun"),
		TorrentioOptions:    getEnv("TORRENTIO_OPTIONS", ""),
		CatalogEndpoint:     getEnv("CATALOG_ENDPOINT", "https://v3-cinemeta.strem.io"),
		DebridEndpoint:      getEnv("DEBRID_ENDPOINT", "https://api.real-debrid.com/rest/1.0"),
		DebridAPIToken:      strings.TrimSpace(os.Getenv("DEBRID_API_TOKEN")),
		UpstreamMaxAttempts: getEnvInt("UPSTREAM_MAX_ATTEMPTS", 3),
		UpstreamBackoff:     time.Duration(getEnvInt("UPSTREAM_BACKOFF_MS", 1000)) * time.Millisecond,
		DebounceQuiet:       time.Duration(getEnvInt("SEARCH_DEBOUNCE_MS", 1000)) * time.Millisecond,
		LedgerTTL:           time.Duration(getEnvInt("LEDGER_TTL_MINUTES", 120)) * time.Minute,
		LedgerMaxEntries:    getEnvInt("LEDGER_MAX_ENTRIES", 500),
		RedisURL:            getEnv("REDIS_URL", ""),
		Profiles:            profiles,
	}, nil
}

func parseProfiles(raw string) ([]domain.RankingProfile, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var profiles []domain.RankingProfile
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil {
		return nil, fmt.Errorf("parse RESOLVER_PROFILES: %w", err)
	}
	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("RESOLVER_PROFILES: %w", err)
		}
	}
	return profiles, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

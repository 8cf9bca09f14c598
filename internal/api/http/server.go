package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"debridstream/resolverservice/internal/domain"
	"debridstream/resolverservice/internal/resolver"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ResolverService interface {
	Resolve(ctx context.Context, target domain.MediaTarget, profiles []string) (map[string]domain.Resolution, error)
	ResolveSearch(ctx context.Context, query string, profiles []string) (map[string]domain.Resolution, error)
	SelectForDownload(ctx context.Context, handle string, offset int) (domain.Candidate, error)
	Profiles() []domain.RankingProfile
	Diagnostics() []resolver.UpstreamDiagnostics
}

type Server struct {
	resolver ResolverService
	logger   *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(resolverService ResolverService, options ...ServerOption) *Server {
	server := &Server{
		resolver: resolverService,
		logger:   slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve/search", s.handleResolveSearch)
	mux.HandleFunc("/resolve/select", s.handleSelect)
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/profiles", s.handleProfiles)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "release-resolver",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"upstreams": s.resolver.Diagnostics(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	target, err := parseTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	profiles := parseCSV(r.URL.Query().Get("profiles"))

	results, err := s.resolver.Resolve(r.Context(), target, profiles)
	if err != nil {
		s.writeResolveError(w, r, err)
		return
	}
	s.logger.Info("resolve completed",
		slog.String("target", target.Key()),
		slog.Int("profiles", len(results)))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleResolveSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	profiles := parseCSV(r.URL.Query().Get("profiles"))

	results, err := s.resolver.ResolveSearch(r.Context(), query, profiles)
	if err != nil {
		s.writeResolveError(w, r, err)
		return
	}
	superseded := len(results) == 0
	s.logger.Info("search resolve completed",
		slog.String("query", truncate(query, 80)),
		slog.Bool("superseded", superseded))
	writeJSON(w, http.StatusOK, map[string]any{
		"results":    results,
		"superseded": superseded,
	})
}

type selectRequest struct {
	Handle string `json:"handle"`
	Offset int    `json:"offset"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var request selectRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(request.Handle) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "handle is required")
		return
	}
	if request.Offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "offset must be >= 0")
		return
	}

	candidate, err := s.resolver.SelectForDownload(r.Context(), request.Handle, request.Offset)
	if err != nil {
		if errors.Is(err, resolver.ErrHandleNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown handle or offset out of range")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "selection failed")
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": s.resolver.Profiles()})
}

func (s *Server) writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("resolve request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, resolver.ErrUnknownProfile):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, resolver.ErrResolutionFailed):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "resolution failed")
	}
}

func parseTarget(r *http.Request) (domain.MediaTarget, error) {
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		return domain.MediaTarget{}, errors.New("id is required")
	}

	target := domain.MediaTarget{ExternalID: id}
	switch kind {
	case "movie", "":
		target.Kind = domain.MediaKindMovie
	case "show", "series":
		target.Kind = domain.MediaKindShow
	default:
		return domain.MediaTarget{}, fmt.Errorf("unknown kind %q", kind)
	}
	if target.Kind == domain.MediaKindMovie {
		return target, nil
	}

	for _, raw := range parseCSV(r.URL.Query().Get("seasons")) {
		season, err := strconv.Atoi(raw)
		if err != nil || season < 0 {
			return domain.MediaTarget{}, fmt.Errorf("invalid season %q", raw)
		}
		target.Seasons = append(target.Seasons, season)
	}
	if len(target.Seasons) == 0 {
		return domain.MediaTarget{}, errors.New("show requests need at least one season")
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("episode")); raw != "" {
		episode, err := strconv.Atoi(raw)
		if err != nil || episode <= 0 {
			return domain.MediaTarget{}, fmt.Errorf("invalid episode %q", raw)
		}
		if len(target.Seasons) > 1 {
			return domain.MediaTarget{}, errors.New("episode requests need exactly one season")
		}
		target.Episode = episode
	}
	return target, nil
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/mediatype"
	"tierboard/searchservice/internal/search"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SearchService is the orchestrator surface the HTTP layer depends on.
type SearchService interface {
	Search(ctx context.Context, mediaType domain.MediaType, filters map[string]any, page int, sort string) (domain.SearchResult, error)
	SearchCategory(ctx context.Context, category domain.Category, filters map[string]any, page int, sort string) (domain.CategorySearchResult, error)
	Details(ctx context.Context, mediaType domain.MediaType, id string) (domain.MediaItem, error)
	ActiveBackend(category domain.Category) (string, error)
	Adapters() []domain.AdapterInfo
	AdapterDiagnostics() []domain.AdapterDiagnostics
}

type Server struct {
	search   SearchService
	registry *mediatype.Registry
	logger   *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(searchService SearchService, registry *mediatype.Registry, options ...ServerOption) *Server {
	server := &Server{
		search:   searchService,
		registry: registry,
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
	mux.HandleFunc("/api/search/category", s.handleSearchCategory)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/details", s.handleDetails)
	mux.HandleFunc("/api/mediatypes", s.handleMediaTypes)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/adapters/health", s.handleAdaptersHealth)
	mux.HandleFunc("/api/adapters", s.handleAdapters)
	mux.HandleFunc("/api/image", s.handleImageProxy)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "tierboard-search",
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
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	mediaType := domain.MediaType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if mediaType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}
	def, err := s.registry.Get(mediaType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	page, err := parsePositiveInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}
	filters, err := parseFilterState(def, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sortBy := strings.TrimSpace(r.URL.Query().Get("sort"))

	result, err := s.search.Search(r.Context(), mediaType, filters, page, sortBy)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("type", string(mediaType)),
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		writeSearchError(w, err)
		return
	}

	s.logger.Info("search completed",
		slog.String("type", string(mediaType)),
		slog.Int("page", page),
		slog.Int("results", len(result.Results)),
	)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchCategory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/search/category" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	category := domain.Category(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))))
	if category == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "category is required")
		return
	}
	if _, err := s.registry.Category(category); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	page, err := parsePositiveInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}

	// Category fan-out only carries filters shared by every type, so plain
	// text params are enough here.
	filters := map[string]any{}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		if len(q) > maxQueryLength {
			writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
			return
		}
		filters["q"] = q
	}
	sortBy := strings.TrimSpace(r.URL.Query().Get("sort"))

	result, err := s.search.SearchCategory(r.Context(), category, filters, page, sortBy)
	if err != nil {
		s.logger.Warn("category search failed",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		writeSearchError(w, err)
		return
	}

	failed := make([]string, 0, len(result.Statuses))
	for _, status := range result.Statuses {
		if !status.OK {
			failed = append(failed, status.Name)
		}
	}
	s.logger.Info("category search completed",
		slog.String("category", string(category)),
		slog.Int64("elapsedMs", result.ElapsedMS),
		slog.Int("failedTypes", len(failed)),
	)
	if len(failed) > 0 {
		s.logger.Warn("category search partially failed",
			slog.String("category", string(category)),
			slog.Any("failed", failed),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/details" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	mediaType := domain.MediaType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if mediaType == "" || id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "type and id are required")
		return
	}

	item, err := s.search.Details(r.Context(), mediaType, id)
	if err != nil {
		s.logger.Warn("details request failed",
			slog.String("type", string(mediaType)),
			slog.String("id", truncate(id, 80)),
			slog.String("error", err.Error()),
		)
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMediaTypes(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/mediatypes" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	defs := s.registry.Definitions()
	items := make([]mediaTypePayload, 0, len(defs))
	for _, def := range defs {
		items = append(items, describeMediaType(def))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/categories" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type categoryPayload struct {
		mediatype.CategoryConfig
		ActiveService string `json:"activeService,omitempty"`
	}
	configs := s.registry.Categories()
	items := make([]categoryPayload, 0, len(configs))
	for _, cfg := range configs {
		payload := categoryPayload{CategoryConfig: cfg}
		if s.search != nil {
			if active, err := s.search.ActiveBackend(cfg.ID); err == nil {
				payload.ActiveService = active
			}
		}
		items = append(items, payload)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/adapters" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Adapters(),
	})
}

func (s *Server) handleAdaptersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/adapters/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.AdapterDiagnostics(),
	})
}

// parseFilterState reconstructs typed filter state from query parameters,
// driven by the type's filter definitions. Range ends arrive under the
// definition's min/max parameter names; pickers arrive as the referenced
// item's id.
func parseFilterState(def mediatype.Definition, values url.Values) (map[string]any, error) {
	state := make(map[string]any, len(def.Filters))
	for _, filter := range def.Filters {
		switch f := filter.(type) {
		case mediatype.TextFilter:
			if v := strings.TrimSpace(values.Get(f.Param())); v != "" {
				if len(v) > maxQueryLength {
					return nil, errors.New("query too long (max 500 characters)")
				}
				state[f.ID] = v
			}
		case mediatype.SelectFilter:
			if v := strings.TrimSpace(values.Get(f.Param())); v != "" {
				state[f.ID] = v
			}
		case mediatype.RangeFilter:
			var window mediatype.Range
			if v := strings.TrimSpace(values.Get(f.MinParam)); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return nil, errors.New("invalid " + f.MinParam)
				}
				window.Min = n
			}
			if v := strings.TrimSpace(values.Get(f.MaxParam)); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return nil, errors.New("invalid " + f.MaxParam)
				}
				window.Max = n
			}
			if window.Min > 0 || window.Max > 0 {
				state[f.ID] = window
			}
		case mediatype.PickerFilter:
			if v := strings.TrimSpace(values.Get(f.Param())); v != "" {
				state[f.ID] = domain.MediaItem{ID: v, Type: f.RefType}
			}
		case mediatype.ToggleGroupFilter:
			if selected := parseCSV(values.Get(f.Param())); len(selected) > 0 {
				state[f.ID] = selected
			}
		}
	}
	return state, nil
}

type filterPayload struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Param    string   `json:"param"`
	Label    string   `json:"label,omitempty"`
	Choices  []string `json:"choices,omitempty"`
	RefType  string   `json:"refType,omitempty"`
	MinParam string   `json:"minParam,omitempty"`
	MaxParam string   `json:"maxParam,omitempty"`
}

type mediaTypePayload struct {
	ID              domain.MediaType             `json:"id"`
	Category        domain.Category              `json:"category"`
	Label           string                       `json:"label"`
	Filters         []filterPayload              `json:"filters"`
	SortOptions     []mediatype.SortOptionConfig `json:"sortOptions"`
	Searchable      bool                         `json:"searchable"`
	SupportsDetails bool                         `json:"supportsDetails"`
}

func describeMediaType(def mediatype.Definition) mediaTypePayload {
	filters := make([]filterPayload, 0, len(def.Filters))
	for _, filter := range def.Filters {
		switch f := filter.(type) {
		case mediatype.TextFilter:
			filters = append(filters, filterPayload{ID: f.ID, Kind: "text", Param: f.Param(), Label: f.Label})
		case mediatype.SelectFilter:
			filters = append(filters, filterPayload{ID: f.ID, Kind: "select", Param: f.Param(), Label: f.Label, Choices: f.Choices})
		case mediatype.RangeFilter:
			filters = append(filters, filterPayload{ID: f.ID, Kind: "range", Param: f.ID, Label: f.Label, MinParam: f.MinParam, MaxParam: f.MaxParam})
		case mediatype.PickerFilter:
			filters = append(filters, filterPayload{ID: f.ID, Kind: "picker", Param: f.Param(), Label: f.Label, RefType: string(f.RefType)})
		case mediatype.ToggleGroupFilter:
			filters = append(filters, filterPayload{ID: f.ID, Kind: "toggleGroup", Param: f.Param(), Label: f.Label, Choices: f.Choices})
		}
	}
	return mediaTypePayload{
		ID:              def.ID,
		Category:        def.Category,
		Label:           def.Label,
		Filters:         filters,
		SortOptions:     def.SortOptions,
		Searchable:      def.Searchable,
		SupportsDetails: def.SupportsDetails,
	}
}

// writeSearchError maps orchestrator errors onto HTTP statuses: caller
// mistakes are 4xx, upstream faults are 502, slow backends are 504.
func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, search.ErrInvalidPage),
		errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, search.ErrUnknownAdapter):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, search.ErrNoAdapters):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream_timeout", "backend did not respond in time")
	case errors.Is(err, domain.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		if _, ok := domain.IsUpstreamError(err); ok {
			writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
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

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
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

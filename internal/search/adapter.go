package search

import (
	"context"
	"errors"

	"tierboard/searchservice/internal/domain"
)

var (
	ErrInvalidQuery   = errors.New("query parameters are required")
	ErrNoAdapters     = errors.New("no search adapters configured")
	ErrUnknownAdapter = errors.New("unknown adapter")
	ErrInvalidPage    = errors.New("page must be >= 1")
)

// Query is the adapter-facing form of a search: the media type, the
// serialized filter parameters produced by the registry, and paging/sort
// hints. Params keys are adapter wire-parameter names, not filter IDs.
type Query struct {
	Type   domain.MediaType
	Params map[string][]string
	Page   int
	Limit  int
	Sort   domain.SortOption
}

// Param returns the first value for key, or "".
func (q Query) Param(key string) string {
	values := q.Params[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Adapter is one upstream media service. Implementations normalize
// provider records into domain.MediaItem and report honest paging data.
type Adapter interface {
	Name() string
	Info() domain.AdapterInfo
	SupportedTypes() []domain.MediaType
	Search(ctx context.Context, query Query) (domain.SearchResult, error)
}

// Detailer is an optional interface for adapters that can fetch a single
// item with enrichment data. Adapters without detail lookups (flat search
// APIs) simply do not implement it.
type Detailer interface {
	Details(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error)
}

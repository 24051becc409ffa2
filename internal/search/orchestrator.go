package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/semaphore"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/lucene"
	"tierboard/searchservice/internal/mediatype"
)

// maxConcurrentAdapters bounds category fan-out so one request cannot open
// unbounded upstream connections.
const maxConcurrentAdapters = 4

// Search runs one typed search through the active backend of the type's
// category. Filters arrive as raw filter state and are serialized through
// the registry; results are normalized, sorted, cached, and registered in
// the item cache.
func (s *Service) Search(ctx context.Context, mediaType domain.MediaType, filters map[string]any, page int, sortRaw string) (domain.SearchResult, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return domain.SearchResult{}, ErrInvalidPage
	}

	adapter, def, err := s.adapterFor(mediaType)
	if err != nil {
		return domain.SearchResult{}, err
	}
	if !def.Searchable {
		return domain.SearchResult{}, fmt.Errorf("media type %s is not searchable", mediaType)
	}

	params, err := s.registry.SerializeFilters(mediaType, filters)
	if err != nil {
		return domain.SearchResult{}, err
	}

	query := Query{
		Type:   mediaType,
		Params: params,
		Page:   page,
		Limit:  s.pageSize,
		Sort:   domain.NormalizeSort(sortRaw),
	}

	cacheKey := buildCacheKey(adapter.Name(), query)
	if !s.cacheDisabled {
		if cached, ok := s.cacheLookup(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	result, err := s.searchOne(ctx, adapter, query)
	if err != nil {
		return domain.SearchResult{}, err
	}

	if !s.cacheDisabled {
		s.cacheStore(ctx, cacheKey, result)
	}
	return result, nil
}

// searchOne is the single-adapter search path shared by Search and
// SearchCategory: health gate, transient retry, result recording, client-side
// sort, and item cache registration.
func (s *Service) searchOne(ctx context.Context, adapter Adapter, query Query) (domain.SearchResult, error) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := strings.ToLower(strings.TrimSpace(adapter.Name()))
	now := time.Now()
	if blocked, until, lastErr := s.isAdapterBlocked(name, now); blocked {
		return domain.SearchResult{}, fmt.Errorf("adapter %s temporarily unhealthy until %s: %s", name, until.UTC().Format(time.RFC3339), lastErr)
	}

	startedAt := time.Now()
	var result domain.SearchResult
	searchErr := RetryWithBackoff(runCtx, DefaultRetryConfig(), func() error {
		var err error
		result, err = adapter.Search(runCtx, query)
		return err
	})

	if errors.Is(searchErr, domain.ErrCredentialUnavailable) {
		// Missing credentials are a configuration gap, not an outage:
		// degrade to an empty page instead of failing the request and
		// leave the adapter's health untouched.
		s.logger.Warn("adapter credentials unavailable",
			slog.String("adapter", name),
			slog.String("mediaType", string(query.Type)),
		)
		return domain.SearchResult{Results: []domain.MediaItem{}, Page: query.Page}, nil
	}
	if errors.Is(searchErr, ErrInvalidQuery) {
		// A request the adapter cannot form a query from is a caller
		// mistake. It never counts against adapter health; otherwise a
		// handful of empty searches would block the backend for everyone.
		return domain.SearchResult{}, searchErr
	}
	s.recordAdapterResult(name, searchErr, time.Since(startedAt), time.Now())
	if searchErr != nil {
		return domain.SearchResult{}, searchErr
	}

	if !result.IsServerSorted && query.Sort != domain.SortRelevance {
		sortItems(result.Results, query.Sort)
	}
	if result.Page == 0 {
		result.Page = query.Page
	}

	if s.itemCache != nil {
		s.itemCache.RegisterItems(result.Results)
	}
	return result, nil
}

// SearchCategory fans one filter state out across every searchable type in
// a category, bounded by a semaphore, and reports per-type adapter statuses.
func (s *Service) SearchCategory(ctx context.Context, category domain.Category, filters map[string]any, page int, sortRaw string) (domain.CategorySearchResult, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return domain.CategorySearchResult{}, ErrInvalidPage
	}

	defs, err := s.registry.ByCategory(category)
	if err != nil {
		return domain.CategorySearchResult{}, err
	}

	startedAt := time.Now()
	pages := make(map[domain.MediaType]domain.SearchResult, len(defs))
	statuses := make([]domain.AdapterStatus, len(defs))

	sem := semaphore.NewWeighted(maxConcurrentAdapters)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, def := range defs {
		if !def.Searchable {
			statuses[i] = domain.AdapterStatus{Name: string(def.ID), OK: true}
			continue
		}
		wg.Add(1)
		go func(index int, def mediatype.Definition) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				statuses[index] = domain.AdapterStatus{Name: string(def.ID), OK: false, Error: "context cancelled"}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			result, status := s.searchCategoryType(ctx, def, filters, page, sortRaw)
			mu.Lock()
			statuses[index] = status
			if status.OK {
				pages[def.ID] = result
			}
			mu.Unlock()
		}(i, def)
	}
	wg.Wait()

	return domain.CategorySearchResult{
		Category:  category,
		Pages:     pages,
		Statuses:  statuses,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
	}, nil
}

func (s *Service) searchCategoryType(ctx context.Context, def mediatype.Definition, filters map[string]any, page int, sortRaw string) (domain.SearchResult, domain.AdapterStatus) {
	adapter, _, err := s.adapterFor(def.ID)
	if err != nil {
		return domain.SearchResult{}, domain.AdapterStatus{Name: string(def.ID), OK: false, Error: err.Error()}
	}

	result, err := s.Search(ctx, def.ID, filters, page, sortRaw)
	status := domain.AdapterStatus{Name: adapter.Name(), OK: err == nil}
	if err != nil {
		status.Error = err.Error()
		return domain.SearchResult{}, status
	}
	status.Count = len(result.Results)
	return result, status
}

// Details fetches the enriched form of one item. A failed or unsupported
// detail lookup never fails the request; it degrades to the cached item, or
// as a last resort to a minimal identity-only record.
func (s *Service) Details(ctx context.Context, mediaType domain.MediaType, id string) (domain.MediaItem, error) {
	def, err := s.registry.Get(mediaType)
	if err != nil {
		return domain.MediaItem{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.MediaItem{}, ErrInvalidQuery
	}
	if !def.SupportsDetails {
		return s.fallbackItem(id, mediaType), nil
	}

	adapter, _, err := s.adapterFor(mediaType)
	if err != nil {
		return domain.MediaItem{}, err
	}
	detailer, ok := adapter.(Detailer)
	if !ok {
		return s.fallbackItem(id, mediaType), nil
	}

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := strings.ToLower(strings.TrimSpace(adapter.Name()))
	startedAt := time.Now()
	var item domain.MediaItem
	detailErr := RetryWithBackoff(runCtx, DefaultRetryConfig(), func() error {
		var err error
		item, err = detailer.Details(runCtx, id, mediaType)
		return err
	})
	if !errors.Is(detailErr, domain.ErrCredentialUnavailable) {
		s.recordAdapterResult(name, detailErr, time.Since(startedAt), time.Now())
	}
	if detailErr != nil {
		s.logger.Warn("detail lookup failed, serving fallback",
			slog.String("adapter", name),
			slog.String("id", id),
			slog.String("error", detailErr.Error()),
		)
		return s.fallbackItem(id, mediaType), nil
	}

	if s.itemCache != nil {
		s.itemCache.RegisterItem(item)
	}
	return item, nil
}

func (s *Service) fallbackItem(id string, mediaType domain.MediaType) domain.MediaItem {
	if s.itemCache != nil {
		if cached, ok := s.itemCache.Item(id); ok {
			return cached
		}
	}
	return domain.MediaItem{ID: id, Type: mediaType}
}

// sortItems orders one page client-side for backends that cannot sort
// server-side. Ties keep the upstream relevance order (stable sort).
func sortItems(items []domain.MediaItem, by domain.SortOption) {
	var less func(left, right domain.MediaItem) bool
	switch by {
	case domain.SortDateDesc:
		less = func(left, right domain.MediaItem) bool { return compareDates(left, right) > 0 }
	case domain.SortDateAsc:
		less = func(left, right domain.MediaItem) bool { return compareDates(left, right) < 0 }
	case domain.SortTitleAsc:
		less = func(left, right domain.MediaItem) bool {
			return sortTitle(left) < sortTitle(right)
		}
	case domain.SortTitleDesc:
		less = func(left, right domain.MediaItem) bool {
			return sortTitle(left) > sortTitle(right)
		}
	case domain.SortRatingDesc:
		less = func(left, right domain.MediaItem) bool { return ratingOf(left) > ratingOf(right) }
	case domain.SortDurationAsc:
		less = func(left, right domain.MediaItem) bool { return durationOf(left) < durationOf(right) }
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// compareDates prefers the full date string when both sides carry one and
// falls back to the year.
func compareDates(left, right domain.MediaItem) int {
	if left.Date != "" && right.Date != "" {
		return strings.Compare(left.Date, right.Date)
	}
	switch {
	case left.Year < right.Year:
		return -1
	case left.Year > right.Year:
		return 1
	default:
		return 0
	}
}

// sortTitle folds case and accents so "Étienne" and "etienne" collate
// together.
func sortTitle(item domain.MediaItem) string {
	return strings.ToLower(lucene.FoldDiacritics(item.Title))
}

func ratingOf(item domain.MediaItem) float64 {
	if item.Details == nil {
		return 0
	}
	return item.Details.Rating
}

func durationOf(item domain.MediaItem) int64 {
	if item.Details == nil {
		return 0
	}
	return item.Details.DurationMS
}

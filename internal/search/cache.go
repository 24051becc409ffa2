package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/metrics"
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultCacheMaxEntries = 400
	janitorInterval        = time.Minute
)

type cachedResult struct {
	result    domain.SearchResult
	updatedAt time.Time
	expiresAt time.Time
}

// buildCacheKey derives a stable key from everything that changes the page:
// adapter, type, serialized params, page, and sort.
func buildCacheKey(adapterName string, query Query) string {
	keys := make([]string, 0, len(query.Params))
	for key := range query.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+4)
	parts = append(parts,
		"a="+strings.ToLower(strings.TrimSpace(adapterName)),
		"t="+string(query.Type),
		"p="+strconv.Itoa(query.Page),
		"s="+string(query.Sort),
	)
	for _, key := range keys {
		parts = append(parts, key+"="+strings.Join(query.Params[key], ","))
	}
	return strings.Join(parts, "|")
}

func (s *Service) cacheLookup(ctx context.Context, key string) (domain.SearchResult, bool) {
	if s.redisCache != nil {
		if result, found, err := s.redisCache.Get(ctx, key); err == nil && found {
			metrics.CacheHitsTotal.Inc()
			return result, true
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.SearchResult{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.cache, key)
		metrics.CacheMissesTotal.Inc()
		return domain.SearchResult{}, false
	}
	metrics.CacheHitsTotal.Inc()
	return cloneResult(entry.result), true
}

func (s *Service) cacheStore(ctx context.Context, key string, result domain.SearchResult) {
	ttl := s.cacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(ctx, key, result, ttl)
	}

	now := time.Now()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[key] = &cachedResult{
		result:    cloneResult(result),
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
	s.trimCacheLocked(now)
}

func (s *Service) trimCacheLocked(now time.Time) {
	for key, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, key)
		}
	}
	if len(s.cache) <= defaultCacheMaxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedResult
	}
	entries := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		entries = append(entries, pair{key: key, entry: entry})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.updatedAt.Before(entries[j].entry.updatedAt)
	})
	for i := 0; i < len(entries)-defaultCacheMaxEntries; i++ {
		delete(s.cache, entries[i].key)
	}
}

// StartBackground launches the cache janitor. Safe to call once; subsequent
// calls are no-ops.
func (s *Service) StartBackground(ctx context.Context) {
	if s.janitorRun.CompareAndSwap(false, true) {
		go s.runJanitor(ctx)
	}
}

func (s *Service) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.cacheMu.Lock()
			s.trimCacheLocked(now)
			s.cacheMu.Unlock()
		}
	}
}

func cloneResult(result domain.SearchResult) domain.SearchResult {
	cloned := result
	if result.Results != nil {
		cloned.Results = make([]domain.MediaItem, len(result.Results))
		for i, item := range result.Results {
			cloned.Results[i] = item.Clone()
		}
	}
	return cloned
}

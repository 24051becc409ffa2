package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/itemcache"
	"tierboard/searchservice/internal/mediatype"
)

const defaultPageSize = 25

// Service routes searches to the active adapter for each category,
// normalizes paging and sorting, and feeds every result through the item
// cache so the board can heal sparse records.
type Service struct {
	registry *mediatype.Registry
	adapters map[string]Adapter
	backends map[domain.Category]string
	timeout  time.Duration
	pageSize int

	itemCache *itemcache.Cache
	logger    *slog.Logger

	cacheDisabled bool
	cacheMu       sync.Mutex
	cache         map[string]*cachedResult
	cacheTTL      time.Duration
	redisCache    *RedisCacheBackend
	janitorRun    atomic.Bool

	healthMu sync.Mutex
	health   map[string]*adapterHealth
}

type ServiceOption func(*Service)

// WithActiveBackend pins the adapter used for one category, overriding the
// registry's first configured service.
func WithActiveBackend(category domain.Category, name string) ServiceOption {
	return func(s *Service) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			s.backends[category] = name
		}
	}
}

func WithItemCache(cache *itemcache.Cache) ServiceOption {
	return func(s *Service) {
		s.itemCache = cache
	}
}

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithPageSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(registry *mediatype.Registry, adapters []Adapter, timeout time.Duration, opts ...ServiceOption) *Service {
	byName := make(map[string]Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(adapter.Name()))
		if name == "" {
			continue
		}
		byName[name] = adapter
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		registry: registry,
		adapters: byName,
		backends: make(map[domain.Category]string),
		timeout:  timeout,
		pageSize: defaultPageSize,
		logger:   slog.Default(),
		cache:    make(map[string]*cachedResult),
		cacheTTL: defaultCacheTTL,
		health:   make(map[string]*adapterHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ActiveBackend resolves the adapter name serving a category: an explicit
// override first, otherwise the first enabled service the registry lists.
func (s *Service) ActiveBackend(category domain.Category) (string, error) {
	if name, ok := s.backends[category]; ok {
		if _, exists := s.adapters[name]; exists {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownAdapter, name)
	}

	cfg, err := s.registry.Category(category)
	if err != nil {
		return "", err
	}
	fallback := ""
	for _, service := range cfg.Services {
		name := strings.ToLower(strings.TrimSpace(service))
		adapter, ok := s.adapters[name]
		if !ok {
			continue
		}
		if fallback == "" {
			fallback = name
		}
		if adapter.Info().Enabled {
			return name, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: no adapter for category %s", ErrNoAdapters, category)
}

func (s *Service) adapterFor(mediaType domain.MediaType) (Adapter, mediatype.Definition, error) {
	def, err := s.registry.Get(mediaType)
	if err != nil {
		return nil, mediatype.Definition{}, err
	}
	name, err := s.ActiveBackend(def.Category)
	if err != nil {
		return nil, mediatype.Definition{}, err
	}
	adapter := s.adapters[name]
	if !supportsType(adapter, mediaType) {
		return nil, mediatype.Definition{}, fmt.Errorf("%w: adapter %s does not serve %s", ErrUnknownAdapter, name, mediaType)
	}
	return adapter, def, nil
}

func supportsType(adapter Adapter, mediaType domain.MediaType) bool {
	for _, supported := range adapter.SupportedTypes() {
		if supported == mediaType {
			return true
		}
	}
	return false
}

// Adapters lists every registered adapter, sorted by name.
func (s *Service) Adapters() []domain.AdapterInfo {
	if len(s.adapters) == 0 {
		return nil
	}
	items := make([]domain.AdapterInfo, 0, len(s.adapters))
	for name, adapter := range s.adapters {
		info := adapter.Info()
		if info.Name == "" {
			info.Name = name
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

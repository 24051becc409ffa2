// Package itemcache keeps the richest known version of every MediaItem the
// UI has seen, so sparse search results can be healed in place without
// redundant upstream fetches. The cache is bounded, merge-only, and persisted
// through a pluggable key-value store.
package itemcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/metrics"
)

const (
	defaultMaxEntries = 2000
	defaultEvictBatch = 200
	defaultSaveDelay  = 2 * time.Second
)

// Store is the persistence collaborator: a simple async key-value store
// holding the serialized item list under a fixed key. The cache loads it on
// start and saves on change, debounced.
type Store interface {
	Load(ctx context.Context) ([]domain.MediaItem, error)
	Save(ctx context.Context, items []domain.MediaItem) error
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]domain.MediaItem
	order   []string

	maxEntries int
	evictBatch int

	store      Store
	saveDelay  time.Duration
	saveCh     chan struct{}
	flusherRun atomic.Bool
	logger     *slog.Logger
}

type Option func(*Cache)

func WithStore(store Store) Option {
	return func(c *Cache) { c.store = store }
}

func WithMaxEntries(maxEntries int) Option {
	return func(c *Cache) {
		if maxEntries > 0 {
			c.maxEntries = maxEntries
		}
	}
}

func WithEvictBatch(batch int) Option {
	return func(c *Cache) {
		if batch > 0 {
			c.evictBatch = batch
		}
	}
}

func WithSaveDelay(delay time.Duration) Option {
	return func(c *Cache) {
		if delay > 0 {
			c.saveDelay = delay
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func New(opts ...Option) *Cache {
	cache := &Cache{
		entries:    make(map[string]domain.MediaItem),
		maxEntries: defaultMaxEntries,
		evictBatch: defaultEvictBatch,
		saveDelay:  defaultSaveDelay,
		saveCh:     make(chan struct{}, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Load replaces the cache contents with the persisted snapshot. Insertion
// order survives the round-trip so eviction stays stable across restarts.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	items, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.MediaItem, len(items))
	c.order = make([]string, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, exists := c.entries[item.ID]; !exists {
			c.order = append(c.order, item.ID)
		}
		c.entries[item.ID] = item
	}
	metrics.CacheItems.Set(float64(len(c.entries)))
	return nil
}

// RegisterItem merges one item. Equivalent to RegisterItems with one element.
func (c *Cache) RegisterItem(item domain.MediaItem) {
	c.RegisterItems([]domain.MediaItem{item})
}

// RegisterItems merges a batch in a single pass: one lock acquisition, one
// prune, and at most one persistence trigger. Each merge is computed against
// the current entry and applied atomically relative to other merges.
func (c *Cache) RegisterItems(items []domain.MediaItem) {
	if len(items) == 0 {
		return
	}

	c.mu.Lock()
	changed := 0
	for _, incoming := range items {
		if incoming.ID == "" {
			continue
		}
		existing, ok := c.entries[incoming.ID]
		if !ok {
			c.entries[incoming.ID] = incoming.Clone()
			c.order = append(c.order, incoming.ID)
			changed++
			continue
		}
		merged := merge(existing, incoming)
		if merged.Equal(existing) {
			metrics.CacheMergeNoopsTotal.Inc()
			continue
		}
		c.entries[incoming.ID] = merged
		changed++
	}
	c.pruneLocked()
	metrics.CacheItems.Set(float64(len(c.entries)))
	c.mu.Unlock()

	if changed > 0 {
		c.markDirty()
	}
}

// Item returns a copy of the cached item, if known.
func (c *Cache) Item(id string) (domain.MediaItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[id]
	if !ok {
		return domain.MediaItem{}, false
	}
	return item.Clone(), true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// merge applies the enrichment rule: display fields follow the incoming
// item unconditionally; imageUrl and details are only replaced by a present
// value, never cleared by an absent one.
func merge(existing, incoming domain.MediaItem) domain.MediaItem {
	merged := incoming.Clone()
	if merged.ImageURL == "" {
		merged.ImageURL = existing.ImageURL
	}
	if merged.Details == nil && existing.Details != nil {
		details := *existing.Details
		details.Genres = append([]string(nil), existing.Details.Genres...)
		merged.Details = &details
	}
	if merged.Year == 0 {
		merged.Year = existing.Year
	}
	if merged.Date == "" {
		merged.Date = existing.Date
	}
	return merged
}

// pruneLocked evicts the oldest entries in batches once the ceiling is
// exceeded, in the same operation that caused the overflow.
func (c *Cache) pruneLocked() {
	for len(c.entries) > c.maxEntries {
		batch := c.evictBatch
		if batch > len(c.order) {
			batch = len(c.order)
		}
		for _, id := range c.order[:batch] {
			delete(c.entries, id)
		}
		c.order = append(c.order[:0:0], c.order[batch:]...)
		metrics.CacheEvictionsTotal.Add(float64(batch))
	}
}

// StartBackground launches the debounced save loop. Safe to call once;
// subsequent calls are no-ops.
func (c *Cache) StartBackground(ctx context.Context) {
	if c.store == nil {
		return
	}
	if c.flusherRun.CompareAndSwap(false, true) {
		go c.runFlusher(ctx)
	}
}

func (c *Cache) markDirty() {
	select {
	case c.saveCh <- struct{}{}:
	default:
	}
}

func (c *Cache) runFlusher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.flushFinal()
			return
		case <-c.saveCh:
		}

		timer := time.NewTimer(c.saveDelay)
	debounce:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				c.flushFinal()
				return
			case <-c.saveCh:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(c.saveDelay)
			case <-timer.C:
				break debounce
			}
		}

		if err := c.Flush(ctx); err != nil {
			c.logger.Warn("item cache save failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Cache) flushFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		c.logger.Warn("final item cache save failed", slog.String("error", err.Error()))
	}
}

// Flush writes the current snapshot through the store immediately.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(ctx, c.Snapshot())
}

// Snapshot returns all entries in insertion order.
func (c *Cache) Snapshot() []domain.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]domain.MediaItem, 0, len(c.order))
	for _, id := range c.order {
		if item, ok := c.entries[id]; ok {
			items = append(items, item.Clone())
		}
	}
	return items
}

// Package mediatype holds the static catalog of searchable media type
// definitions: their filters, sort options, and serialization rules.
// A Registry is constructed once at startup and read-only afterward.
package mediatype

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tierboard/searchservice/internal/domain"
)

// SortOptionConfig pairs a normalized sort value with its UI label.
type SortOptionConfig struct {
	Value domain.SortOption `json:"value"`
	Label string            `json:"label"`
}

// Definition describes one searchable concept. Registered once, never
// mutated afterward.
type Definition struct {
	ID              domain.MediaType   `json:"id"`
	Category        domain.Category    `json:"category"`
	Label           string             `json:"label"`
	Filters         []Filter           `json:"-"`
	SortOptions     []SortOptionConfig `json:"sortOptions"`
	DefaultFilters  map[string]any     `json:"-"`
	Searchable      bool               `json:"searchable"`
	SupportsDetails bool               `json:"supportsDetails"`
}

// CategoryConfig groups media types under a board category and lists the
// interchangeable backend adapters that can serve it.
type CategoryConfig struct {
	ID       domain.Category    `json:"id"`
	Label    string             `json:"label"`
	Types    []domain.MediaType `json:"types"`
	Services []string           `json:"services"`
}

// Registry is an explicit, constructed catalog passed by reference to every
// consumer. No hidden module-level state.
type Registry struct {
	byID       map[domain.MediaType]Definition
	categories map[domain.Category]CategoryConfig
}

func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[domain.MediaType]Definition),
		categories: make(map[domain.Category]CategoryConfig),
	}
}

// Register adds a definition. Duplicate ids fail loudly: registration is a
// one-time composition step, silently replacing a definition is a bug.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("definition has empty id")
	}
	if _, exists := r.byID[def.ID]; exists {
		return fmt.Errorf("media type %q already registered", def.ID)
	}
	r.byID[def.ID] = def
	return nil
}

func (r *Registry) RegisterCategory(cfg CategoryConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("category has empty id")
	}
	if _, exists := r.categories[cfg.ID]; exists {
		return fmt.Errorf("category %q already registered", cfg.ID)
	}
	r.categories[cfg.ID] = cfg
	return nil
}

// Get returns the definition for a media type, failing with
// domain.ErrNotRegistered for unknown ids rather than a silent default.
func (r *Registry) Get(mediaType domain.MediaType) (Definition, error) {
	def, ok := r.byID[mediaType]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", domain.ErrNotRegistered, mediaType)
	}
	return def, nil
}

func (r *Registry) Category(category domain.Category) (CategoryConfig, error) {
	cfg, ok := r.categories[category]
	if !ok {
		return CategoryConfig{}, fmt.Errorf("%w: category %s", domain.ErrNotRegistered, category)
	}
	return cfg, nil
}

// ByCategory returns all definitions belonging to a category, in the order
// the category config lists them.
func (r *Registry) ByCategory(category domain.Category) ([]Definition, error) {
	cfg, err := r.Category(category)
	if err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(cfg.Types))
	for _, mediaType := range cfg.Types {
		if def, ok := r.byID[mediaType]; ok {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.byID))
	for _, def := range r.byID {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

func (r *Registry) Categories() []CategoryConfig {
	configs := make([]CategoryConfig, 0, len(r.categories))
	for _, cfg := range r.categories {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

func (r *Registry) SortOptions(mediaType domain.MediaType) ([]SortOptionConfig, error) {
	def, err := r.Get(mediaType)
	if err != nil {
		return nil, err
	}
	return append([]SortOptionConfig(nil), def.SortOptions...), nil
}

// DefaultFilters returns a fresh deep copy of the type's default filter
// state. Callers may mutate the result without affecting subsequent calls.
func (r *Registry) DefaultFilters(mediaType domain.MediaType) (map[string]any, error) {
	def, err := r.Get(mediaType)
	if err != nil {
		return nil, err
	}
	defaults := make(map[string]any, len(def.DefaultFilters))
	for key, value := range def.DefaultFilters {
		defaults[key] = cloneFilterValue(value)
	}
	return defaults, nil
}

func cloneFilterValue(value any) any {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case domain.MediaItem:
		return v.Clone()
	default:
		return value
	}
}

// SerializeFilters turns filter state into serialized query parameters.
// Absent and empty values are never emitted. The value shape is dictated by
// the filter variant; values of an unexpected shape are skipped.
func (r *Registry) SerializeFilters(mediaType domain.MediaType, state map[string]any) (map[string][]string, error) {
	def, err := r.Get(mediaType)
	if err != nil {
		return nil, err
	}

	params := make(map[string][]string)
	for _, filter := range def.Filters {
		value, ok := state[filter.FilterID()]
		if !ok || value == nil {
			continue
		}
		switch f := filter.(type) {
		case TextFilter:
			if text, ok := value.(string); ok && strings.TrimSpace(text) != "" {
				params[f.Param()] = []string{text}
			}
		case RangeFilter:
			window, ok := value.(Range)
			if !ok {
				continue
			}
			if window.Min > 0 {
				params[f.MinParam] = []string{strconv.Itoa(window.Min)}
			}
			if window.Max > 0 {
				params[f.MaxParam] = []string{strconv.Itoa(window.Max)}
			}
		case SelectFilter:
			if choice, ok := value.(string); ok && strings.TrimSpace(choice) != "" {
				params[f.Param()] = []string{choice}
			}
		case PickerFilter:
			item, ok := value.(domain.MediaItem)
			if !ok {
				continue
			}
			if extracted := f.extract(item); extracted != "" {
				params[f.Param()] = []string{extracted}
			}
		case ToggleGroupFilter:
			if values, ok := value.([]string); ok && len(values) > 0 {
				params[f.Param()] = append([]string(nil), values...)
			}
		}
	}
	return params, nil
}

package mediatype

import (
	"strings"

	"tierboard/searchservice/internal/domain"
)

// Filter is the closed set of filter variants a media type definition can
// carry. Each variant owns exactly the configuration its value shape needs;
// the serializer matches exhaustively on the concrete type.
type Filter interface {
	// FilterID is the internal id the UI state is keyed by.
	FilterID() string
	// Param is the serialized parameter name, defaulting to the filter id.
	Param() string
}

// TextFilter holds a free-text value.
type TextFilter struct {
	ID        string
	ParamName string
	Label     string
}

func (f TextFilter) FilterID() string { return f.ID }
func (f TextFilter) Param() string    { return paramOr(f.ParamName, f.ID) }

// Range is the value shape of a RangeFilter. Zero means unset on either end.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RangeFilter holds a numeric window. The two ends serialize separately
// under fixed parameter names.
type RangeFilter struct {
	ID       string
	Label    string
	MinParam string
	MaxParam string
}

func (f RangeFilter) FilterID() string { return f.ID }
func (f RangeFilter) Param() string    { return f.ID }

// SelectFilter holds one value out of a fixed choice list.
type SelectFilter struct {
	ID        string
	ParamName string
	Label     string
	Choices   []string
}

func (f SelectFilter) FilterID() string { return f.ID }
func (f SelectFilter) Param() string    { return paramOr(f.ParamName, f.ID) }

// PickerFilter references another MediaItem (e.g. an album search scoped to
// a picked artist). Serialization extracts a single key from the referenced
// item, by default its id.
type PickerFilter struct {
	ID        string
	ParamName string
	Label     string
	Key       string
	RefType   domain.MediaType
}

func (f PickerFilter) FilterID() string { return f.ID }
func (f PickerFilter) Param() string    { return paramOr(f.ParamName, f.ID) }

func (f PickerFilter) extract(item domain.MediaItem) string {
	switch strings.ToLower(strings.TrimSpace(f.Key)) {
	case "", "id":
		return item.ID
	case "title":
		return item.Title
	case "artist":
		return item.Artist
	default:
		return item.ID
	}
}

// ToggleGroupFilter holds a set of enabled string values.
type ToggleGroupFilter struct {
	ID        string
	ParamName string
	Label     string
	Choices   []string
}

func (f ToggleGroupFilter) FilterID() string { return f.ID }
func (f ToggleGroupFilter) Param() string    { return paramOr(f.ParamName, f.ID) }

func paramOr(param, fallback string) string {
	if strings.TrimSpace(param) != "" {
		return param
	}
	return fallback
}

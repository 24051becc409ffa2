package domain

// MediaType identifies one searchable concept. Every type belongs to exactly
// one Category; the registry owns the mapping.
type MediaType string

const (
	MediaTypeAlbum  MediaType = "album"
	MediaTypeArtist MediaType = "artist"
	MediaTypeSong   MediaType = "song"
	MediaTypeMovie  MediaType = "movie"
	MediaTypeGame   MediaType = "game"
	MediaTypeBook   MediaType = "book"
)

type Category string

const (
	CategoryMusic  Category = "music"
	CategoryMovies Category = "movies"
	CategoryGames  Category = "games"
	CategoryBooks  Category = "books"
)

// MediaItem is the canonical normalized record for a searchable entity.
// ID is the stable identity key across the whole system; adapters may see
// several upstream identifiers but always pick one canonical ID.
type MediaItem struct {
	ID        string       `json:"id"`
	Type      MediaType    `json:"type"`
	Title     string       `json:"title"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	Year      int          `json:"year,omitempty"`
	Date      string       `json:"date,omitempty"`
	Artist    string       `json:"artist,omitempty"`
	Author    string       `json:"author,omitempty"`
	Developer string       `json:"developer,omitempty"`
	Details   *ItemDetails `json:"details,omitempty"`
}

// ItemDetails carries enrichment learned from a detail fetch. It is optional
// on search results and filled in lazily.
type ItemDetails struct {
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	TrackCount  int      `json:"trackCount,omitempty"`
	DurationMS  int64    `json:"durationMs,omitempty"`
	Country     string   `json:"country,omitempty"`
	Label       string   `json:"label,omitempty"`
}

// Equal reports whether two items carry exactly the same information.
// The item cache uses it to detect no-op merges.
func (m MediaItem) Equal(other MediaItem) bool {
	if m.ID != other.ID ||
		m.Type != other.Type ||
		m.Title != other.Title ||
		m.ImageURL != other.ImageURL ||
		m.Year != other.Year ||
		m.Date != other.Date ||
		m.Artist != other.Artist ||
		m.Author != other.Author ||
		m.Developer != other.Developer {
		return false
	}
	if (m.Details == nil) != (other.Details == nil) {
		return false
	}
	if m.Details == nil {
		return true
	}
	return m.Details.Equal(*other.Details)
}

func (d ItemDetails) Equal(other ItemDetails) bool {
	if d.Description != other.Description ||
		d.Rating != other.Rating ||
		d.TrackCount != other.TrackCount ||
		d.DurationMS != other.DurationMS ||
		d.Country != other.Country ||
		d.Label != other.Label {
		return false
	}
	if len(d.Genres) != len(other.Genres) {
		return false
	}
	for i, genre := range d.Genres {
		if other.Genres[i] != genre {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so cache internals never alias caller memory.
func (m MediaItem) Clone() MediaItem {
	cloned := m
	if m.Details != nil {
		details := *m.Details
		details.Genres = append([]string(nil), m.Details.Genres...)
		cloned.Details = &details
	}
	return cloned
}

// SearchResult is one page of normalized results.
type SearchResult struct {
	Results        []MediaItem `json:"results"`
	Page           int         `json:"page"`
	TotalPages     int         `json:"totalPages"`
	TotalCount     int         `json:"totalCount"`
	IsServerSorted bool        `json:"isServerSorted,omitempty"`
}

// SortOption is the closed set of normalized sort values. Adapters map these
// to upstream sort keywords; unsupported combinations degrade to no explicit
// ordering rather than failing.
type SortOption string

const (
	SortRelevance    SortOption = "relevance"
	SortDateDesc     SortOption = "date_desc"
	SortDateAsc      SortOption = "date_asc"
	SortTitleAsc     SortOption = "title_asc"
	SortTitleDesc    SortOption = "title_desc"
	SortRatingDesc   SortOption = "rating_desc"
	SortDurationAsc  SortOption = "duration_asc"
)

func NormalizeSort(raw string) SortOption {
	switch SortOption(raw) {
	case SortDateDesc:
		return SortDateDesc
	case SortDateAsc:
		return SortDateAsc
	case SortTitleAsc:
		return SortTitleAsc
	case SortTitleDesc:
		return SortTitleDesc
	case SortRatingDesc:
		return SortRatingDesc
	case SortDurationAsc:
		return SortDurationAsc
	default:
		return SortRelevance
	}
}

// AdapterInfo describes one backend adapter for listings and diagnostics.
type AdapterInfo struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Enabled  bool     `json:"enabled"`
}

// AdapterStatus reports the outcome of one adapter call inside a fan-out.
type AdapterStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// AdapterDiagnostics exposes health-tracking state per adapter.
type AdapterDiagnostics struct {
	Name                string   `json:"name"`
	Label               string   `json:"label"`
	Category            Category `json:"category"`
	Enabled             bool     `json:"enabled"`
	ConsecutiveFailures int      `json:"consecutiveFailures"`
	BlockedUntilRFC3339 string   `json:"blockedUntil,omitempty"`
	LastError           string   `json:"lastError,omitempty"`
	LastLatencyMS       int64    `json:"lastLatencyMs,omitempty"`
	TotalRequests       int64    `json:"totalRequests,omitempty"`
	TotalFailures       int64    `json:"totalFailures,omitempty"`
}

// CategorySearchResult is the aggregate of a category-wide fan-out: one page
// per searchable type plus per-type adapter statuses.
type CategorySearchResult struct {
	Category  Category                   `json:"category"`
	Pages     map[MediaType]SearchResult `json:"pages"`
	Statuses  []AdapterStatus            `json:"statuses"`
	ElapsedMS int64                      `json:"elapsedMs"`
}

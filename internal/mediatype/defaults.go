package mediatype

import "tierboard/searchservice/internal/domain"

// AlbumSecondaryTypes is the full set of known secondary release-group
// classifications. Album searches exclude all of them by default ("clean"
// mode) unless the caller explicitly opts into one or more.
var AlbumSecondaryTypes = []string{
	"Audio drama",
	"Audiobook",
	"Compilation",
	"DJ-mix",
	"Demo",
	"Field recording",
	"Interview",
	"Live",
	"Mixtape/Street",
	"Remix",
	"Soundtrack",
	"Spokenword",
}

var defaultSorts = []SortOptionConfig{
	{Value: domain.SortRelevance, Label: "Relevance"},
	{Value: domain.SortDateDesc, Label: "Newest first"},
	{Value: domain.SortDateAsc, Label: "Oldest first"},
	{Value: domain.SortTitleAsc, Label: "Title A-Z"},
	{Value: domain.SortTitleDesc, Label: "Title Z-A"},
}

// BuildDefaultRegistry constructs the catalog the board UI searches against.
// This is the single composition step; nothing registers itself implicitly.
func BuildDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()

	definitions := []Definition{
		{
			ID:       domain.MediaTypeAlbum,
			Category: domain.CategoryMusic,
			Label:    "Album",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Album title"},
				PickerFilter{ID: "artist", ParamName: "arid", Key: "id", Label: "Artist", RefType: domain.MediaTypeArtist},
				RangeFilter{ID: "year", Label: "Release year", MinParam: "yearMin", MaxParam: "yearMax"},
				ToggleGroupFilter{ID: "albumSecondaryTypes", ParamName: "secondaryTypes", Label: "Include special releases", Choices: AlbumSecondaryTypes},
			},
			SortOptions:     defaultSorts,
			DefaultFilters:  map[string]any{"albumSecondaryTypes": []string{}},
			Searchable:      true,
			SupportsDetails: true,
		},
		{
			ID:       domain.MediaTypeArtist,
			Category: domain.CategoryMusic,
			Label:    "Artist",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Artist name"},
				RangeFilter{ID: "year", Label: "Active year", MinParam: "yearMin", MaxParam: "yearMax"},
			},
			SortOptions:     defaultSorts,
			DefaultFilters:  map[string]any{},
			Searchable:      true,
			SupportsDetails: true,
		},
		{
			ID:       domain.MediaTypeSong,
			Category: domain.CategoryMusic,
			Label:    "Song",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Song title"},
				PickerFilter{ID: "artist", ParamName: "arid", Key: "id", Label: "Artist", RefType: domain.MediaTypeArtist},
			},
			SortOptions:     defaultSorts,
			DefaultFilters:  map[string]any{},
			Searchable:      true,
			SupportsDetails: true,
		},
		{
			ID:       domain.MediaTypeMovie,
			Category: domain.CategoryMovies,
			Label:    "Movie",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Movie title"},
				RangeFilter{ID: "year", Label: "Release year", MinParam: "yearMin", MaxParam: "yearMax"},
				SelectFilter{ID: "genre", Label: "Genre", Choices: []string{"Action", "Comedy", "Drama", "Horror", "Sci-Fi"}},
			},
			SortOptions: append(append([]SortOptionConfig(nil), defaultSorts...),
				SortOptionConfig{Value: domain.SortRatingDesc, Label: "Highest rated"},
			),
			DefaultFilters:  map[string]any{},
			Searchable:      true,
			SupportsDetails: true,
		},
		{
			ID:       domain.MediaTypeGame,
			Category: domain.CategoryGames,
			Label:    "Game",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Game title"},
				RangeFilter{ID: "year", Label: "Release year", MinParam: "yearMin", MaxParam: "yearMax"},
			},
			SortOptions: append(append([]SortOptionConfig(nil), defaultSorts...),
				SortOptionConfig{Value: domain.SortRatingDesc, Label: "Highest rated"},
			),
			DefaultFilters:  map[string]any{},
			Searchable:      true,
			SupportsDetails: true,
		},
		{
			ID:       domain.MediaTypeBook,
			Category: domain.CategoryBooks,
			Label:    "Book",
			Filters: []Filter{
				TextFilter{ID: "q", Label: "Book title"},
				TextFilter{ID: "author", Label: "Author"},
				RangeFilter{ID: "year", Label: "Publication year", MinParam: "yearMin", MaxParam: "yearMax"},
			},
			SortOptions:     defaultSorts,
			DefaultFilters:  map[string]any{},
			Searchable:      true,
			SupportsDetails: false,
		},
	}

	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}

	categories := []CategoryConfig{
		{ID: domain.CategoryMusic, Label: "Music", Types: []domain.MediaType{domain.MediaTypeAlbum, domain.MediaTypeArtist, domain.MediaTypeSong}, Services: []string{"musicbrainz", "discogs"}},
		{ID: domain.CategoryMovies, Label: "Movies & TV", Types: []domain.MediaType{domain.MediaTypeMovie}, Services: []string{"tmdb"}},
		{ID: domain.CategoryGames, Label: "Games", Types: []domain.MediaType{domain.MediaTypeGame}, Services: []string{"igdb"}},
		{ID: domain.CategoryBooks, Label: "Books", Types: []domain.MediaType{domain.MediaTypeBook}, Services: []string{"openlibrary"}},
	}
	for _, cfg := range categories {
		if err := registry.RegisterCategory(cfg); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

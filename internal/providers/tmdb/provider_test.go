package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/search"
)

func TestSearchFreeTextUsesSearchEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("path = %s, want /search/movie", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "alien" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("primary_release_year"); got != "1979" {
			t.Errorf("primary_release_year = %q", got)
		}
		w.Write([]byte(`{
			"page": 1, "total_pages": 2, "total_results": 22,
			"results": [
				{"id": 348, "title": "Alien", "release_date": "1979-05-25", "poster_path": "/alien.jpg", "vote_average": 8.1},
				{"id": 349, "title": "Aliens", "release_date": "1986-07-18", "backdrop_path": "/aliens-bd.jpg"}
			]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "key", Endpoint: server.URL})
	result, err := provider.Search(context.Background(), search.Query{
		Type: domain.MediaTypeMovie,
		Params: map[string][]string{
			"q":       {"alien"},
			"yearMin": {"1979"},
			"yearMax": {"1979"},
		},
		Page: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.IsServerSorted {
		t.Fatal("free-text search cannot be server-sorted")
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	if result.Results[0].ImageURL != posterBaseURL+"/alien.jpg" {
		t.Fatalf("poster url = %s", result.Results[0].ImageURL)
	}
	if result.Results[1].ImageURL != backdropBaseURL+"/aliens-bd.jpg" {
		t.Fatalf("expected backdrop fallback, got %s", result.Results[1].ImageURL)
	}
	if result.Results[0].Year != 1979 {
		t.Fatalf("year = %d", result.Results[0].Year)
	}
	if result.Results[0].Details == nil || result.Results[0].Details.Rating != 8.1 {
		t.Fatalf("list entry rating not mapped: %+v", result.Results[0].Details)
	}
	if result.Results[1].Details != nil {
		t.Fatalf("entry without overview or rating should carry no details: %+v", result.Results[1].Details)
	}
}

func TestSearchFilterOnlyUsesDiscover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/movie" {
			t.Errorf("path = %s, want /discover/movie", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("sort_by"); got != "vote_average.desc" {
			t.Errorf("sort_by = %q", got)
		}
		if got := q.Get("with_genres"); got != "27" {
			t.Errorf("with_genres = %q, want 27 (Horror)", got)
		}
		if got := q.Get("primary_release_date.gte"); got != "1980-01-01" {
			t.Errorf("gte = %q", got)
		}
		w.Write([]byte(`{"page": 1, "total_pages": 1, "total_results": 1, "results": [{"id": 694, "title": "The Shining", "release_date": "1980-05-23"}]}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "key", Endpoint: server.URL})
	result, err := provider.Search(context.Background(), search.Query{
		Type: domain.MediaTypeMovie,
		Params: map[string][]string{
			"yearMin": {"1980"},
			"genre":   {"Horror"},
		},
		Page: 1,
		Sort: domain.SortRatingDesc,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.IsServerSorted {
		t.Fatal("discover should report server-sorted")
	}
	if len(result.Results) != 1 || result.Results[0].Title != "The Shining" {
		t.Fatalf("results = %+v", result.Results)
	}
}

func TestSearchWithoutKeyDegrades(t *testing.T) {
	provider := NewProvider(Config{})
	_, err := provider.Search(context.Background(), search.Query{Type: domain.MediaTypeMovie, Page: 1})
	if !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}
}

func TestSearchRejectedKeyIsCredentialError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status_message": "Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "stale", Endpoint: server.URL})
	_, err := provider.Search(context.Background(), search.Query{Type: domain.MediaTypeMovie, Page: 1})
	if !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}
}

func TestDetailsMapsRuntimeAndGenres(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/348" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"title": "Alien",
			"overview": "In deep space...",
			"release_date": "1979-05-25",
			"vote_average": 8.1,
			"runtime": 117,
			"genres": [{"name": "Horror"}, {"name": "Science Fiction"}],
			"production_countries": [{"name": "United Kingdom"}]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "key", Endpoint: server.URL})
	item, err := provider.Details(context.Background(), "348", domain.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if item.Details == nil {
		t.Fatal("details missing")
	}
	if item.Details.DurationMS != 117*60*1000 {
		t.Fatalf("durationMs = %d", item.Details.DurationMS)
	}
	if len(item.Details.Genres) != 2 || item.Details.Country != "United Kingdom" {
		t.Fatalf("details = %+v", item.Details)
	}
	if item.Details.Rating != 8.1 {
		t.Fatalf("rating = %v", item.Details.Rating)
	}
}

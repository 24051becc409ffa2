package discogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/search"
)

func TestSearchWithoutTokenDegrades(t *testing.T) {
	provider := NewProvider(Config{})
	_, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeAlbum,
		Params: map[string][]string{"q": {"loveless"}},
		Page:   1,
	})
	if !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}
}

func TestSearchSendsTokenAndMapsMasters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Discogs token=secret" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("type"); got != "master" {
			t.Errorf("type = %q, want master", got)
		}
		if got := r.URL.Query().Get("sort"); got != "year" {
			t.Errorf("sort = %q, want year", got)
		}
		w.Write([]byte(`{
			"pagination": {"page": 1, "pages": 4, "items": 100},
			"results": [
				{"id": 9800, "title": "My Bloody Valentine - Loveless", "year": "1991", "cover_image": "", "thumb": "thumb.jpg"},
				{"id": 0, "title": "dropped"}
			]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Token: "secret", Endpoint: server.URL})
	result, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeAlbum,
		Params: map[string][]string{"q": {"loveless"}},
		Page:   1,
		Sort:   domain.SortDateDesc,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Results))
	}
	item := result.Results[0]
	if item.ID != "9800" || item.Artist != "My Bloody Valentine" || item.Title != "Loveless" {
		t.Fatalf("title split failed: %+v", item)
	}
	if item.ImageURL != "thumb.jpg" {
		t.Fatalf("expected thumb fallback, got %q", item.ImageURL)
	}
	if item.Year != 1991 {
		t.Fatalf("year = %d", item.Year)
	}
	if !result.IsServerSorted {
		t.Fatal("mapped sort should report server-sorted")
	}
	if result.TotalPages != 4 || result.TotalCount != 100 {
		t.Fatalf("paging = %+v", result)
	}
}

func TestSearchRejectedTokenIsCredentialError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewProvider(Config{Token: "stale", Endpoint: server.URL})
	_, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeArtist,
		Params: map[string][]string{"q": {"slowdive"}},
		Page:   1,
	})
	if !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}
}

func TestDetailsMasterCarriesTracklistAndGenres(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/masters/9800" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"title": "Loveless",
			"year": 1991,
			"genres": ["Rock"],
			"styles": ["Shoegaze"],
			"artists": [{"name": "My Bloody Valentine"}],
			"images": [{"uri": "cover.jpg", "uri150": "small.jpg"}],
			"tracklist": [{"title": "Only Shallow"}, {"title": "Loomer"}]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Token: "secret", Endpoint: server.URL})
	item, err := provider.Details(context.Background(), "9800", domain.MediaTypeAlbum)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if item.ImageURL != "cover.jpg" || item.Artist != "My Bloody Valentine" {
		t.Fatalf("item = %+v", item)
	}
	if item.Details == nil || item.Details.TrackCount != 2 {
		t.Fatalf("details = %+v", item.Details)
	}
	if len(item.Details.Genres) != 2 || item.Details.Genres[1] != "Shoegaze" {
		t.Fatalf("genres+styles = %v", item.Details.Genres)
	}
}

package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/search"
)

func testProvider(apiURL, caaURL string) *Provider {
	return NewProvider(Config{
		Endpoint:         apiURL,
		CoverArtEndpoint: caaURL,
		RequestsPerSec:   1000,
	})
}

// ---------------------------------------------------------------------------
// query building
// ---------------------------------------------------------------------------

func TestBuildQueryAlbumDefaultsToCleanMode(t *testing.T) {
	query, err := BuildQuery(domain.MediaTypeAlbum, map[string][]string{
		"q": {"dark side"},
	})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(query, "releasegroup:(dark~1 AND (side* OR side~1))") {
		t.Fatalf("missing compiled title clause: %s", query)
	}
	if !strings.Contains(query, "primarytype:(Album)") {
		t.Fatalf("missing primary type clause: %s", query)
	}
	if !strings.Contains(query, `NOT secondarytype:("Audio drama" OR `) {
		t.Fatalf("missing clean-mode exclusion clause: %s", query)
	}
	if !strings.Contains(query, `"Live"`) || !strings.Contains(query, `"Soundtrack"`) {
		t.Fatalf("exclusion clause incomplete: %s", query)
	}
}

func TestBuildQuerySecondaryTypeOptInSwitchesToInclusive(t *testing.T) {
	query, err := BuildQuery(domain.MediaTypeAlbum, map[string][]string{
		"q":              {"abbey road"},
		"secondaryTypes": {"Live", "Demo"},
	})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(query, `secondarytype:("Live" OR "Demo")`) {
		t.Fatalf("missing inclusive clause: %s", query)
	}
	if strings.Contains(query, "NOT secondarytype") {
		t.Fatalf("clean-mode exclusion should be off: %s", query)
	}
}

func TestBuildQueryYearRangeOpenEnds(t *testing.T) {
	query, err := BuildQuery(domain.MediaTypeAlbum, map[string][]string{
		"q":       {"ok computer"},
		"yearMin": {"1990"},
	})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(query, "firstreleasedate:[1990 TO *]") {
		t.Fatalf("missing open-ended range: %s", query)
	}
}

func TestBuildQueryArtistIDClause(t *testing.T) {
	query, err := BuildQuery(domain.MediaTypeSong, map[string][]string{
		"arid": {"f27ec8db-af05-4f36-916e-3d57f91ecf5e"},
	})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(query, "arid:(f27ec8db\\-af05\\-4f36\\-916e\\-3d57f91ecf5e)") {
		t.Fatalf("arid clause not escaped: %s", query)
	}
}

func TestBuildQueryEmptyFails(t *testing.T) {
	_, err := BuildQuery(domain.MediaTypeAlbum, nil)
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	// Empty queries are a caller mistake, not an adapter fault.
	if !errors.Is(err, search.ErrInvalidQuery) {
		t.Fatalf("ErrEmptyQuery must wrap ErrInvalidQuery, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// search
// ---------------------------------------------------------------------------

func TestSearchAlbumNormalizesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/release-group" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fmt"); got != "json" {
			t.Errorf("fmt = %q, want json", got)
		}
		if got := r.URL.Query().Get("offset"); got != "25" {
			t.Errorf("offset = %q, want 25 for page 2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"count": 51,
			"release-groups": [
				{
					"id": "rg-1",
					"title": "The Dark Side of the Moon",
					"first-release-date": "1973-03-01",
					"artist-credit": [{"name": "Pink Floyd"}]
				},
				{"id": "", "title": "dropped"}
			]
		}`))
	}))
	defer server.Close()

	provider := testProvider(server.URL, "https://caa.example")
	result, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeAlbum,
		Params: map[string][]string{"q": {"dark side"}},
		Page:   2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Results))
	}
	item := result.Results[0]
	if item.ID != "rg-1" || item.Type != domain.MediaTypeAlbum {
		t.Fatalf("unexpected identity: %+v", item)
	}
	if item.Artist != "Pink Floyd" || item.Year != 1973 {
		t.Fatalf("unexpected normalization: %+v", item)
	}
	if item.ImageURL != "https://caa.example/release-group/rg-1/front-250" {
		t.Fatalf("imageUrl = %s", item.ImageURL)
	}
	if result.TotalCount != 51 || result.TotalPages != 3 || result.Page != 2 {
		t.Fatalf("paging = %+v", result)
	}
}

func TestSearchUpstreamErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := testProvider(server.URL, server.URL)
	_, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeArtist,
		Params: map[string][]string{"q": {"adele"}},
		Page:   1,
	})
	upstream, ok := domain.IsUpstreamError(err)
	if !ok {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusServiceUnavailable || upstream.Backend != "musicbrainz" {
		t.Fatalf("unexpected upstream error: %+v", upstream)
	}
}

func TestSearchMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	provider := testProvider(server.URL, server.URL)
	_, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeSong,
		Params: map[string][]string{"q": {"yesterday"}},
		Page:   1,
	})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// details / cover art fallback
// ---------------------------------------------------------------------------

func TestDetailsFallsBackToReleaseCover(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/release-group/rg-1") {
			t.Errorf("unexpected api path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "rg-1",
			"title": "Loveless",
			"first-release-date": "1991-11-04",
			"artist-credit": [{"name": "My Bloody Valentine"}],
			"genres": [{"name": "shoegaze"}],
			"releases": [{"id": "rel-1"}]
		}`))
	}))
	defer api.Close()

	caa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release-group/rg-1":
			http.NotFound(w, r)
		case "/release/rel-1":
			w.Write([]byte(`{"images": [{"front": true, "image": "full.jpg", "thumbnails": {"250": "thumb250.jpg"}}]}`))
		default:
			t.Errorf("unexpected caa path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer caa.Close()

	provider := testProvider(api.URL, caa.URL)
	item, err := provider.Details(context.Background(), "rg-1", domain.MediaTypeAlbum)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if item.ImageURL != "thumb250.jpg" {
		t.Fatalf("imageUrl = %q, want release fallback thumb", item.ImageURL)
	}
	if item.Details == nil || len(item.Details.Genres) != 1 || item.Details.Genres[0] != "shoegaze" {
		t.Fatalf("details = %+v", item.Details)
	}
	if item.Artist != "My Bloody Valentine" || item.Year != 1991 {
		t.Fatalf("normalization = %+v", item)
	}
}

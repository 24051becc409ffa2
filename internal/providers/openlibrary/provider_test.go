package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/search"
)

func TestSearchNormalizesWorks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("title"); got != "dune" {
			t.Errorf("title = %q", got)
		}
		if got := q.Get("author"); got != "herbert" {
			t.Errorf("author = %q", got)
		}
		if got := q.Get("sort"); got != "new" {
			t.Errorf("sort = %q", got)
		}
		w.Write([]byte(`{
			"numFound": 52,
			"docs": [
				{
					"key": "/works/OL893415W",
					"title": "Dune",
					"author_name": ["Frank Herbert"],
					"first_publish_year": 1965,
					"cover_i": 11481354
				},
				{
					"key": "/works/OL893416W",
					"title": "Dune Messiah",
					"author_name": ["Frank Herbert"],
					"first_publish_year": 1969,
					"isbn": ["9780441172696"]
				}
			]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, CoverEndpoint: "https://covers.example"})
	result, err := provider.Search(context.Background(), search.Query{
		Type: domain.MediaTypeBook,
		Params: map[string][]string{
			"q":      {"dune"},
			"author": {"herbert"},
		},
		Page: 1,
		Sort: domain.SortDateDesc,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}

	first := result.Results[0]
	if first.ID != "OL893415W" || first.Author != "Frank Herbert" || first.Year != 1965 {
		t.Fatalf("first = %+v", first)
	}
	if first.ImageURL != "https://covers.example/b/id/11481354-M.jpg" {
		t.Fatalf("cover url = %s", first.ImageURL)
	}

	second := result.Results[1]
	if second.ImageURL != "https://covers.example/b/isbn/9780441172696-M.jpg" {
		t.Fatalf("isbn fallback url = %s", second.ImageURL)
	}

	if !result.IsServerSorted {
		t.Fatal("sort=new should report server-sorted")
	}
	if result.TotalCount != 52 || result.TotalPages != 3 {
		t.Fatalf("paging = %+v", result)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL})
	_, err := provider.Search(context.Background(), search.Query{
		Type:   domain.MediaTypeBook,
		Params: map[string][]string{"q": {"dune"}},
		Page:   1,
	})
	upstream, ok := domain.IsUpstreamError(err)
	if !ok || upstream.Status != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 UpstreamError, got %v", err)
	}
}

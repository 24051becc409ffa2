package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/search"
)

const (
	defaultEndpoint      = "https://openlibrary.org"
	defaultCoverEndpoint = "https://covers.openlibrary.org"
	defaultPageSize      = 25
)

type Config struct {
	Endpoint      string
	CoverEndpoint string
	Client        *http.Client
}

// Provider searches Open Library works. No credentials are required, so it
// is always enabled.
type Provider struct {
	client   *http.Client
	endpoint string
	covers   string
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	covers := strings.TrimSpace(cfg.CoverEndpoint)
	if covers == "" {
		covers = defaultCoverEndpoint
	}
	return &Provider{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		covers:   strings.TrimRight(covers, "/"),
	}
}

func (p *Provider) Name() string {
	return "openlibrary"
}

func (p *Provider) Info() domain.AdapterInfo {
	return domain.AdapterInfo{
		Name:     p.Name(),
		Label:    "Open Library",
		Category: domain.CategoryBooks,
		Enabled:  true,
	}
}

func (p *Provider) SupportedTypes() []domain.MediaType {
	return []domain.MediaType{domain.MediaTypeBook}
}

func (p *Provider) Search(ctx context.Context, query search.Query) (domain.SearchResult, error) {
	if query.Type != domain.MediaTypeBook {
		return domain.SearchResult{}, fmt.Errorf("openlibrary: unsupported media type %q", query.Type)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"page":   {strconv.Itoa(page)},
		"fields": {"key,title,author_name,first_publish_year,cover_i,isbn"},
	}
	if q := query.Param("q"); q != "" {
		params.Set("title", q)
	}
	if author := query.Param("author"); author != "" {
		params.Set("author", author)
	}
	if params.Get("title") == "" && params.Get("author") == "" {
		params.Set("q", "*")
	}
	serverSorted := false
	switch query.Sort {
	case domain.SortDateDesc:
		params.Set("sort", "new")
		serverSorted = true
	case domain.SortDateAsc:
		params.Set("sort", "old")
		serverSorted = true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return domain.SearchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.SearchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return domain.SearchResult{}, &domain.UpstreamError{Backend: p.Name(), Status: resp.StatusCode}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return domain.SearchResult{}, err
	}

	var response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Key              string   `json:"key"`
			Title            string   `json:"title"`
			AuthorName       []string `json:"author_name"`
			FirstPublishYear int      `json:"first_publish_year"`
			CoverID          int64    `json:"cover_i"`
			ISBN             []string `json:"isbn"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.Docs))
	for _, doc := range response.Docs {
		id := strings.TrimPrefix(doc.Key, "/works/")
		if id == "" {
			continue
		}
		item := domain.MediaItem{
			ID:    id,
			Type:  domain.MediaTypeBook,
			Title: doc.Title,
			Year:  doc.FirstPublishYear,
		}
		if len(doc.AuthorName) > 0 {
			item.Author = strings.Join(doc.AuthorName, ", ")
		}
		// Cover id is preferred; fall back to the first ISBN when the
		// work has no indexed cover.
		if doc.CoverID > 0 {
			item.ImageURL = p.covers + "/b/id/" + strconv.FormatInt(doc.CoverID, 10) + "-M.jpg"
		} else if len(doc.ISBN) > 0 {
			item.ImageURL = p.covers + "/b/isbn/" + url.PathEscape(doc.ISBN[0]) + "-M.jpg"
		}
		items = append(items, item)
	}

	totalPages := 0
	if response.NumFound > 0 {
		totalPages = (response.NumFound + limit - 1) / limit
	}
	return domain.SearchResult{
		Results:        items,
		Page:           page,
		TotalPages:     totalPages,
		TotalCount:     response.NumFound,
		IsServerSorted: serverSorted,
	}, nil
}

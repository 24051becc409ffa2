package discogs

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
	defaultEndpoint  = "https://api.discogs.com"
	defaultUserAgent = "tierboard-search/1.0"
	defaultPageSize  = 25
)

type Config struct {
	Token     string
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

// Provider searches the Discogs database. Albums map to Discogs masters so
// one canonical entry stands for all pressings of a release.
type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
	token     string
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
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: userAgent,
		token:     strings.TrimSpace(cfg.Token),
	}
}

func (p *Provider) Name() string {
	return "discogs"
}

func (p *Provider) Info() domain.AdapterInfo {
	return domain.AdapterInfo{
		Name:     p.Name(),
		Label:    "Discogs",
		Category: domain.CategoryMusic,
		Enabled:  p.token != "",
	}
}

func (p *Provider) SupportedTypes() []domain.MediaType {
	return []domain.MediaType{domain.MediaTypeAlbum, domain.MediaTypeArtist}
}

func searchType(mediaType domain.MediaType) string {
	switch mediaType {
	case domain.MediaTypeAlbum:
		return "master"
	case domain.MediaTypeArtist:
		return "artist"
	default:
		return ""
	}
}

// sortParams maps a normalized sort to the Discogs sort/sort_order pair.
// Unsupported sorts return ok=false and the caller leaves ordering to the
// orchestrator.
func sortParams(sort domain.SortOption) (string, string, bool) {
	switch sort {
	case domain.SortDateDesc:
		return "year", "desc", true
	case domain.SortDateAsc:
		return "year", "asc", true
	case domain.SortTitleAsc:
		return "title", "asc", true
	case domain.SortTitleDesc:
		return "title", "desc", true
	default:
		return "", "", false
	}
}

func (p *Provider) Search(ctx context.Context, query search.Query) (domain.SearchResult, error) {
	if p.token == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: discogs token not configured", domain.ErrCredentialUnavailable)
	}
	entity := searchType(query.Type)
	if entity == "" {
		return domain.SearchResult{}, fmt.Errorf("discogs: unsupported media type %q", query.Type)
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
		"type":     {entity},
		"per_page": {strconv.Itoa(limit)},
		"page":     {strconv.Itoa(page)},
	}
	if q := query.Param("q"); q != "" {
		params.Set("q", q)
	}
	if yearMin, yearMax := query.Param("yearMin"), query.Param("yearMax"); yearMin != "" && yearMin == yearMax {
		// Discogs only filters on an exact year, not a range.
		params.Set("year", yearMin)
	}
	serverSorted := false
	if sortKey, order, ok := sortParams(query.Sort); ok {
		params.Set("sort", sortKey)
		params.Set("sort_order", order)
		serverSorted = true
	}

	payload, err := p.get(ctx, "/database/search", params)
	if err != nil {
		return domain.SearchResult{}, err
	}

	var response searchResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.Results))
	for _, entry := range response.Results {
		if entry.ID == 0 {
			continue
		}
		items = append(items, entry.toItem(query.Type))
	}

	return domain.SearchResult{
		Results:        items,
		Page:           response.Pagination.Page,
		TotalPages:     response.Pagination.Pages,
		TotalCount:     response.Pagination.Items,
		IsServerSorted: serverSorted,
	}, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Authorization", "Discogs token="+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: discogs rejected token (HTTP %d)", domain.ErrCredentialUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &domain.UpstreamError{Backend: p.Name(), Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

type searchEntry struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	CoverImage string `json:"cover_image"`
	Thumb      string `json:"thumb"`
}

type searchResponse struct {
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
		Items int `json:"items"`
	} `json:"pagination"`
	Results []searchEntry `json:"results"`
}

func (e searchEntry) toItem(mediaType domain.MediaType) domain.MediaItem {
	item := domain.MediaItem{
		ID:       strconv.Itoa(e.ID),
		Type:     mediaType,
		Title:    e.Title,
		ImageURL: e.CoverImage,
	}
	if item.ImageURL == "" {
		item.ImageURL = e.Thumb
	}
	if year, err := strconv.Atoi(strings.TrimSpace(e.Year)); err == nil {
		item.Year = year
	}
	// Masters list as "Artist - Title"; split so the artist lands in its
	// own field like every other backend.
	if mediaType == domain.MediaTypeAlbum {
		if artist, title, found := strings.Cut(e.Title, " - "); found {
			item.Artist = strings.TrimSpace(artist)
			item.Title = strings.TrimSpace(title)
		}
	}
	return item
}

type masterLookup struct {
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Genres  []string `json:"genres"`
	Styles  []string `json:"styles"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Images []struct {
		URI    string `json:"uri"`
		URI150 string `json:"uri150"`
	} `json:"images"`
	Tracklist []struct {
		Title string `json:"title"`
	} `json:"tracklist"`
}

type artistLookup struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	Images  []struct {
		URI    string `json:"uri"`
		URI150 string `json:"uri150"`
	} `json:"images"`
}

func (p *Provider) Details(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error) {
	if p.token == "" {
		return domain.MediaItem{}, fmt.Errorf("%w: discogs token not configured", domain.ErrCredentialUnavailable)
	}

	switch mediaType {
	case domain.MediaTypeAlbum:
		payload, err := p.get(ctx, "/masters/"+url.PathEscape(id), url.Values{})
		if err != nil {
			return domain.MediaItem{}, err
		}
		var lookup masterLookup
		if err := json.Unmarshal(payload, &lookup); err != nil {
			return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		item := domain.MediaItem{
			ID:    id,
			Type:  domain.MediaTypeAlbum,
			Title: lookup.Title,
			Year:  lookup.Year,
		}
		if len(lookup.Artists) > 0 {
			item.Artist = lookup.Artists[0].Name
		}
		if len(lookup.Images) > 0 {
			item.ImageURL = lookup.Images[0].URI
			if item.ImageURL == "" {
				item.ImageURL = lookup.Images[0].URI150
			}
		}
		genres := append(append([]string(nil), lookup.Genres...), lookup.Styles...)
		if len(genres) > 0 || len(lookup.Tracklist) > 0 {
			item.Details = &domain.ItemDetails{
				Genres:     genres,
				TrackCount: len(lookup.Tracklist),
			}
		}
		return item, nil
	case domain.MediaTypeArtist:
		payload, err := p.get(ctx, "/artists/"+url.PathEscape(id), url.Values{})
		if err != nil {
			return domain.MediaItem{}, err
		}
		var lookup artistLookup
		if err := json.Unmarshal(payload, &lookup); err != nil {
			return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		item := domain.MediaItem{
			ID:    id,
			Type:  domain.MediaTypeArtist,
			Title: lookup.Name,
		}
		if len(lookup.Images) > 0 {
			item.ImageURL = lookup.Images[0].URI
			if item.ImageURL == "" {
				item.ImageURL = lookup.Images[0].URI150
			}
		}
		if lookup.Profile != "" {
			item.Details = &domain.ItemDetails{Description: lookup.Profile}
		}
		return item, nil
	default:
		return domain.MediaItem{}, fmt.Errorf("discogs: unsupported media type %q", mediaType)
	}
}

package tmdb

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
	defaultEndpoint = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w342"
	backdropBaseURL = "https://image.tmdb.org/t/p/w300"
	defaultLanguage = "en-US"
)

// genreIDs maps the registry's genre choices to TMDB genre identifiers.
var genreIDs = map[string]int{
	"Action": 28,
	"Comedy": 35,
	"Drama":  18,
	"Horror": 27,
	"Sci-Fi": 878,
}

type Config struct {
	APIKey   string
	Endpoint string
	Language string
	Client   *http.Client
}

type Provider struct {
	client   *http.Client
	endpoint string
	apiKey   string
	language string
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
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	return &Provider{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		language: language,
	}
}

func (p *Provider) Name() string {
	return "tmdb"
}

func (p *Provider) Info() domain.AdapterInfo {
	return domain.AdapterInfo{
		Name:     p.Name(),
		Label:    "TMDB",
		Category: domain.CategoryMovies,
		Enabled:  p.apiKey != "",
	}
}

func (p *Provider) SupportedTypes() []domain.MediaType {
	return []domain.MediaType{domain.MediaTypeMovie}
}

func discoverSort(sort domain.SortOption) string {
	switch sort {
	case domain.SortDateDesc:
		return "primary_release_date.desc"
	case domain.SortDateAsc:
		return "primary_release_date.asc"
	case domain.SortTitleAsc:
		return "original_title.asc"
	case domain.SortTitleDesc:
		return "original_title.desc"
	case domain.SortRatingDesc:
		return "vote_average.desc"
	default:
		return "popularity.desc"
	}
}

// Search routes free-text queries through /search/movie and filter-only
// browsing through /discover/movie. Only discover can sort server-side.
func (p *Provider) Search(ctx context.Context, query search.Query) (domain.SearchResult, error) {
	if p.apiKey == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: tmdb api key not configured", domain.ErrCredentialUnavailable)
	}
	if query.Type != domain.MediaTypeMovie {
		return domain.SearchResult{}, fmt.Errorf("tmdb: unsupported media type %q", query.Type)
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	params := url.Values{
		"api_key":  {p.apiKey},
		"language": {p.language},
		"page":     {strconv.Itoa(page)},
	}

	path := "/discover/movie"
	serverSorted := true
	if q := query.Param("q"); q != "" {
		path = "/search/movie"
		serverSorted = false
		params.Set("query", q)
		if yearMin, yearMax := query.Param("yearMin"), query.Param("yearMax"); yearMin != "" && yearMin == yearMax {
			params.Set("primary_release_year", yearMin)
		}
	} else {
		params.Set("sort_by", discoverSort(query.Sort))
		if yearMin := query.Param("yearMin"); yearMin != "" {
			params.Set("primary_release_date.gte", yearMin+"-01-01")
		}
		if yearMax := query.Param("yearMax"); yearMax != "" {
			params.Set("primary_release_date.lte", yearMax+"-12-31")
		}
		if genre := query.Param("genre"); genre != "" {
			if id, ok := genreIDs[genre]; ok {
				params.Set("with_genres", strconv.Itoa(id))
			}
		}
	}

	payload, err := p.get(ctx, path, params)
	if err != nil {
		return domain.SearchResult{}, err
	}

	var response movieListResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.Results))
	for _, entry := range response.Results {
		if entry.ID == 0 {
			continue
		}
		items = append(items, entry.toItem())
	}

	return domain.SearchResult{
		Results:        items,
		Page:           response.Page,
		TotalPages:     response.TotalPages,
		TotalCount:     response.TotalResults,
		IsServerSorted: serverSorted,
	}, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: tmdb rejected api key", domain.ErrCredentialUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &domain.UpstreamError{Backend: p.Name(), Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

type movieEntry struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
}

type movieListResponse struct {
	Page         int          `json:"page"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
	Results      []movieEntry `json:"results"`
}

func (e movieEntry) toItem() domain.MediaItem {
	item := domain.MediaItem{
		ID:    strconv.Itoa(e.ID),
		Type:  domain.MediaTypeMovie,
		Title: e.Title,
		Date:  e.ReleaseDate,
		Year:  yearOf(e.ReleaseDate),
	}
	switch {
	case e.PosterPath != "":
		item.ImageURL = posterBaseURL + e.PosterPath
	case e.BackdropPath != "":
		item.ImageURL = backdropBaseURL + e.BackdropPath
	}
	// List entries already carry the rating; without it rating_desc could
	// not order search pages client-side.
	if e.Overview != "" || e.VoteAverage > 0 {
		item.Details = &domain.ItemDetails{
			Description: e.Overview,
			Rating:      e.VoteAverage,
		}
	}
	return item
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

type movieLookup struct {
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	Runtime     int     `json:"runtime"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCountries []struct {
		Name string `json:"name"`
	} `json:"production_countries"`
}

func (p *Provider) Details(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error) {
	if p.apiKey == "" {
		return domain.MediaItem{}, fmt.Errorf("%w: tmdb api key not configured", domain.ErrCredentialUnavailable)
	}
	if mediaType != domain.MediaTypeMovie {
		return domain.MediaItem{}, fmt.Errorf("tmdb: unsupported media type %q", mediaType)
	}

	params := url.Values{
		"api_key":  {p.apiKey},
		"language": {p.language},
	}
	payload, err := p.get(ctx, "/movie/"+url.PathEscape(id), params)
	if err != nil {
		return domain.MediaItem{}, err
	}

	var lookup movieLookup
	if err := json.Unmarshal(payload, &lookup); err != nil {
		return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	item := domain.MediaItem{
		ID:    id,
		Type:  domain.MediaTypeMovie,
		Title: lookup.Title,
		Date:  lookup.ReleaseDate,
		Year:  yearOf(lookup.ReleaseDate),
	}
	if lookup.PosterPath != "" {
		item.ImageURL = posterBaseURL + lookup.PosterPath
	}

	details := &domain.ItemDetails{
		Description: lookup.Overview,
		Rating:      lookup.VoteAverage,
		DurationMS:  int64(lookup.Runtime) * 60 * 1000,
	}
	for _, genre := range lookup.Genres {
		if genre.Name != "" {
			details.Genres = append(details.Genres, genre.Name)
		}
	}
	if len(lookup.ProductionCountries) > 0 {
		details.Country = lookup.ProductionCountries[0].Name
	}
	item.Details = details
	return item, nil
}

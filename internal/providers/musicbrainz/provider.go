package musicbrainz

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

	"golang.org/x/time/rate"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/lucene"
	"tierboard/searchservice/internal/mediatype"
	"tierboard/searchservice/internal/search"
)

const (
	defaultEndpoint         = "https://musicbrainz.org/ws/2"
	defaultCoverArtEndpoint = "https://coverartarchive.org"
	defaultUserAgent        = "tierboard-search/1.0 (https://github.com/tierboard)"
	defaultPageSize         = 25
)

// ErrEmptyQuery is returned when no filter produces a query clause. It wraps
// search.ErrInvalidQuery so callers treat it as a bad request rather than an
// upstream fault.
var ErrEmptyQuery = fmt.Errorf("musicbrainz: no query clauses: %w", search.ErrInvalidQuery)

type Config struct {
	Endpoint         string
	CoverArtEndpoint string
	UserAgent        string
	Client           *http.Client
	// RequestsPerSec caps the upstream call rate. MusicBrainz enforces
	// one request per second per client.
	RequestsPerSec float64
}

type Provider struct {
	client    *http.Client
	endpoint  string
	coverArt  string
	userAgent string
	limiter   *rate.Limiter
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
	coverArt := strings.TrimSpace(cfg.CoverArtEndpoint)
	if coverArt == "" {
		coverArt = defaultCoverArtEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Provider{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		coverArt:  strings.TrimRight(coverArt, "/"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *Provider) Name() string {
	return "musicbrainz"
}

func (p *Provider) Info() domain.AdapterInfo {
	return domain.AdapterInfo{
		Name:     p.Name(),
		Label:    "MusicBrainz",
		Category: domain.CategoryMusic,
		Enabled:  true,
	}
}

func (p *Provider) SupportedTypes() []domain.MediaType {
	return []domain.MediaType{domain.MediaTypeAlbum, domain.MediaTypeArtist, domain.MediaTypeSong}
}

// BuildQuery assembles the Lucene query string for one search. Exported for
// tests; Search goes through it unchanged.
func BuildQuery(mediaType domain.MediaType, params map[string][]string) (string, error) {
	first := func(key string) string {
		values := params[key]
		if len(values) == 0 {
			return ""
		}
		return strings.TrimSpace(values[0])
	}

	var clauses []string
	opts := lucene.Options{Fuzzy: true, Wildcard: true}

	switch mediaType {
	case domain.MediaTypeAlbum:
		if q := first("q"); q != "" {
			clauses = append(clauses, lucene.Compile("releasegroup", q, opts))
		}
		if arid := first("arid"); arid != "" {
			clauses = append(clauses, "arid:("+lucene.Escape(arid)+")")
		}
		if clause := yearRangeClause("firstreleasedate", first("yearMin"), first("yearMax")); clause != "" {
			clauses = append(clauses, clause)
		}
		if len(clauses) == 0 {
			return "", ErrEmptyQuery
		}
		clauses = append(clauses, "primarytype:(Album)")
		// Default "clean" mode excludes every known secondary type; an
		// explicit selection flips to inclusive matching instead.
		if selected := params["secondaryTypes"]; len(selected) > 0 {
			clauses = append(clauses, secondaryTypeClause(selected, true))
		} else {
			clauses = append(clauses, secondaryTypeClause(mediatype.AlbumSecondaryTypes, false))
		}
	case domain.MediaTypeArtist:
		if q := first("q"); q != "" {
			clauses = append(clauses, lucene.Compile("artist", q, opts))
		}
		if clause := yearRangeClause("begin", first("yearMin"), first("yearMax")); clause != "" {
			clauses = append(clauses, clause)
		}
	case domain.MediaTypeSong:
		if q := first("q"); q != "" {
			clauses = append(clauses, lucene.Compile("recording", q, opts))
		}
		if arid := first("arid"); arid != "" {
			clauses = append(clauses, "arid:("+lucene.Escape(arid)+")")
		}
	default:
		return "", fmt.Errorf("musicbrainz: unsupported media type %q", mediaType)
	}

	if len(clauses) == 0 {
		return "", ErrEmptyQuery
	}
	return strings.Join(clauses, " AND "), nil
}

func yearRangeClause(field, min, max string) string {
	if min == "" && max == "" {
		return ""
	}
	if min == "" {
		min = "*"
	}
	if max == "" {
		max = "*"
	}
	return field + ":[" + min + " TO " + max + "]"
}

func secondaryTypeClause(values []string, include bool) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		quoted = append(quoted, `"`+value+`"`)
	}
	clause := "secondarytype:(" + strings.Join(quoted, " OR ") + ")"
	if include {
		return clause
	}
	return "NOT " + clause
}

func entityFor(mediaType domain.MediaType) string {
	switch mediaType {
	case domain.MediaTypeAlbum:
		return "release-group"
	case domain.MediaTypeArtist:
		return "artist"
	case domain.MediaTypeSong:
		return "recording"
	default:
		return ""
	}
}

func (p *Provider) Search(ctx context.Context, query search.Query) (domain.SearchResult, error) {
	entity := entityFor(query.Type)
	if entity == "" {
		return domain.SearchResult{}, fmt.Errorf("musicbrainz: unsupported media type %q", query.Type)
	}

	luceneQuery, err := BuildQuery(query.Type, query.Params)
	if err != nil {
		return domain.SearchResult{}, err
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
		"query":  {luceneQuery},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa((page - 1) * limit)},
		"fmt":    {"json"},
	}

	var payload []byte
	switch query.Type {
	case domain.MediaTypeAlbum:
		payload, err = p.get(ctx, "/release-group", params)
	case domain.MediaTypeArtist:
		payload, err = p.get(ctx, "/artist", params)
	default:
		payload, err = p.get(ctx, "/recording", params)
	}
	if err != nil {
		return domain.SearchResult{}, err
	}

	switch query.Type {
	case domain.MediaTypeAlbum:
		return p.parseReleaseGroups(payload, page, limit)
	case domain.MediaTypeArtist:
		return parseArtists(payload, page, limit)
	default:
		return parseRecordings(payload, page, limit)
	}
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &domain.UpstreamError{Backend: p.Name(), Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

type artistCredit struct {
	Name string `json:"name"`
}

func creditName(credits []artistCredit) string {
	names := make([]string, 0, len(credits))
	for _, credit := range credits {
		if credit.Name != "" {
			names = append(names, credit.Name)
		}
	}
	return strings.Join(names, ", ")
}

type releaseGroupEntry struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []artistCredit `json:"artist-credit"`
}

type releaseGroupResponse struct {
	Count         int                 `json:"count"`
	ReleaseGroups []releaseGroupEntry `json:"release-groups"`
}

func (p *Provider) parseReleaseGroups(payload []byte, page, limit int) (domain.SearchResult, error) {
	var response releaseGroupResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.ReleaseGroups))
	for _, entry := range response.ReleaseGroups {
		if entry.ID == "" {
			continue
		}
		items = append(items, domain.MediaItem{
			ID:       entry.ID,
			Type:     domain.MediaTypeAlbum,
			Title:    entry.Title,
			ImageURL: p.coverArt + "/release-group/" + entry.ID + "/front-250",
			Year:     yearOf(entry.FirstReleaseDate),
			Date:     entry.FirstReleaseDate,
			Artist:   creditName(entry.ArtistCredit),
		})
	}
	return pageResult(items, response.Count, page, limit), nil
}

type artistEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	LifeSpan struct {
		Begin string `json:"begin"`
	} `json:"life-span"`
}

type artistResponse struct {
	Count   int           `json:"count"`
	Artists []artistEntry `json:"artists"`
}

func parseArtists(payload []byte, page, limit int) (domain.SearchResult, error) {
	var response artistResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.Artists))
	for _, entry := range response.Artists {
		if entry.ID == "" {
			continue
		}
		items = append(items, domain.MediaItem{
			ID:    entry.ID,
			Type:  domain.MediaTypeArtist,
			Title: entry.Name,
			Year:  yearOf(entry.LifeSpan.Begin),
			Date:  entry.LifeSpan.Begin,
		})
	}
	return pageResult(items, response.Count, page, limit), nil
}

type recordingEntry struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int64          `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	FirstRelease string         `json:"first-release-date"`
}

type recordingResponse struct {
	Count      int              `json:"count"`
	Recordings []recordingEntry `json:"recordings"`
}

func parseRecordings(payload []byte, page, limit int) (domain.SearchResult, error) {
	var response recordingResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(response.Recordings))
	for _, entry := range response.Recordings {
		if entry.ID == "" {
			continue
		}
		item := domain.MediaItem{
			ID:     entry.ID,
			Type:   domain.MediaTypeSong,
			Title:  entry.Title,
			Year:   yearOf(entry.FirstRelease),
			Date:   entry.FirstRelease,
			Artist: creditName(entry.ArtistCredit),
		}
		if entry.Length > 0 {
			item.Details = &domain.ItemDetails{DurationMS: entry.Length}
		}
		items = append(items, item)
	}
	return pageResult(items, response.Count, page, limit), nil
}

func pageResult(items []domain.MediaItem, total, page, limit int) domain.SearchResult {
	totalPages := 0
	if total > 0 && limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return domain.SearchResult{
		Results:    items,
		Page:       page,
		TotalPages: totalPages,
		TotalCount: total,
	}
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

type releaseGroupLookup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []artistCredit `json:"artist-credit"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

// Details fetches a release-group with genres and releases, then resolves
// cover art with a release-level fallback when the group itself has none.
func (p *Provider) Details(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error) {
	if mediaType != domain.MediaTypeAlbum {
		return p.lookupShallow(ctx, id, mediaType)
	}

	params := url.Values{
		"inc": {"artist-credits+releases+genres"},
		"fmt": {"json"},
	}
	payload, err := p.get(ctx, "/release-group/"+url.PathEscape(id), params)
	if err != nil {
		return domain.MediaItem{}, err
	}

	var lookup releaseGroupLookup
	if err := json.Unmarshal(payload, &lookup); err != nil {
		return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	item := domain.MediaItem{
		ID:     id,
		Type:   domain.MediaTypeAlbum,
		Title:  lookup.Title,
		Year:   yearOf(lookup.FirstReleaseDate),
		Date:   lookup.FirstReleaseDate,
		Artist: creditName(lookup.ArtistCredit),
	}
	if len(lookup.Genres) > 0 {
		genres := make([]string, 0, len(lookup.Genres))
		for _, genre := range lookup.Genres {
			if genre.Name != "" {
				genres = append(genres, genre.Name)
			}
		}
		item.Details = &domain.ItemDetails{Genres: genres}
	}

	if image := p.resolveCover(ctx, "release-group", id); image != "" {
		item.ImageURL = image
	} else {
		for _, release := range lookup.Releases {
			if release.ID == "" {
				continue
			}
			if image := p.resolveCover(ctx, "release", release.ID); image != "" {
				item.ImageURL = image
				break
			}
		}
	}
	return item, nil
}

func (p *Provider) lookupShallow(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error) {
	entity := entityFor(mediaType)
	if entity == "" {
		return domain.MediaItem{}, fmt.Errorf("musicbrainz: unsupported media type %q", mediaType)
	}
	params := url.Values{
		"inc": {"artist-credits"},
		"fmt": {"json"},
	}
	if mediaType == domain.MediaTypeArtist {
		params.Set("inc", "genres")
	}
	payload, err := p.get(ctx, "/"+entity+"/"+url.PathEscape(id), params)
	if err != nil {
		return domain.MediaItem{}, err
	}

	switch mediaType {
	case domain.MediaTypeArtist:
		var entry artistEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		return domain.MediaItem{
			ID:    id,
			Type:  domain.MediaTypeArtist,
			Title: entry.Name,
			Year:  yearOf(entry.LifeSpan.Begin),
			Date:  entry.LifeSpan.Begin,
			Details: &domain.ItemDetails{
				Country: entry.Country,
			},
		}, nil
	default:
		var entry recordingEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		item := domain.MediaItem{
			ID:     id,
			Type:   domain.MediaTypeSong,
			Title:  entry.Title,
			Artist: creditName(entry.ArtistCredit),
		}
		if entry.Length > 0 {
			item.Details = &domain.ItemDetails{DurationMS: entry.Length}
		}
		return item, nil
	}
}

type coverArtResponse struct {
	Images []struct {
		Front      bool   `json:"front"`
		Image      string `json:"image"`
		Thumbnails struct {
			Small string `json:"small"`
			S250  string `json:"250"`
		} `json:"thumbnails"`
	} `json:"images"`
}

// resolveCover asks the Cover Art Archive for the front image of an entity.
// Missing art is not an error; it just yields an empty URL.
func (p *Provider) resolveCover(ctx context.Context, kind, id string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.coverArt+"/"+kind+"/"+url.PathEscape(id), nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return ""
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return ""
	}
	var response coverArtResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return ""
	}
	for _, image := range response.Images {
		if !image.Front {
			continue
		}
		if image.Thumbnails.S250 != "" {
			return image.Thumbnails.S250
		}
		if image.Thumbnails.Small != "" {
			return image.Thumbnails.Small
		}
		return image.Image
	}
	return ""
}

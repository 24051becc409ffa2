package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/metrics"
	"tierboard/searchservice/internal/search"
)

const (
	defaultEndpoint      = "https://api.igdb.com/v4"
	defaultTokenEndpoint = "https://id.twitch.tv/oauth2/token"
	coverBaseURL         = "https://images.igdb.com/igdb/image/upload/t_cover_big"
	defaultPageSize      = 25

	// tokenSafetyMargin renews the token this long before its actual
	// expiry so in-flight requests never race expiration.
	tokenSafetyMargin = 60 * time.Second
)

type Config struct {
	ClientID      string
	ClientSecret  string
	Endpoint      string
	TokenEndpoint string
	Client        *http.Client
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Provider struct {
	client   *http.Client
	endpoint string
	clientID string
	tokens   *tokenSource
}

// tokenSource caches a Twitch app access token and refreshes it lazily.
type tokenSource struct {
	mu            sync.Mutex
	client        *http.Client
	tokenEndpoint string
	clientID      string
	clientSecret  string
	now           func() time.Time

	token     string
	expiresAt time.Time
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
	tokenEndpoint := strings.TrimSpace(cfg.TokenEndpoint)
	if tokenEndpoint == "" {
		tokenEndpoint = defaultTokenEndpoint
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	return &Provider{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		clientID: clientID,
		tokens: &tokenSource{
			client:        client,
			tokenEndpoint: tokenEndpoint,
			clientID:      clientID,
			clientSecret:  strings.TrimSpace(cfg.ClientSecret),
			now:           now,
		},
	}
}

func (p *Provider) Name() string {
	return "igdb"
}

func (p *Provider) Info() domain.AdapterInfo {
	return domain.AdapterInfo{
		Name:     p.Name(),
		Label:    "IGDB",
		Category: domain.CategoryGames,
		Enabled:  p.tokens.configured(),
	}
}

func (p *Provider) SupportedTypes() []domain.MediaType {
	return []domain.MediaType{domain.MediaTypeGame}
}

func (t *tokenSource) configured() bool {
	return t.clientID != "" && t.clientSecret != ""
}

// Token returns a valid access token, refreshing through the Twitch OAuth
// endpoint when the cached one is absent or inside the safety margin.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	if !t.configured() {
		return "", fmt.Errorf("%w: igdb client id/secret not configured", domain.ErrCredentialUnavailable)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiresAt.Add(-tokenSafetyMargin)) {
		return t.token, nil
	}

	params := url.Values{
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("igdb", "error").Inc()
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		metrics.TokenRefreshesTotal.WithLabelValues("igdb", "rejected").Inc()
		return "", fmt.Errorf("%w: twitch token endpoint HTTP %d", domain.ErrCredentialUnavailable, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &grant); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("%w: twitch grant missing access token", domain.ErrCredentialUnavailable)
	}

	t.token = grant.AccessToken
	t.expiresAt = t.now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	metrics.TokenRefreshesTotal.WithLabelValues("igdb", "ok").Inc()
	return t.token, nil
}

const gameFields = "fields name,summary,rating,first_release_date,cover.image_id,genres.name,involved_companies.developer,involved_companies.company.name;"

// BuildBody assembles the Apicalypse request body. IGDB cannot combine the
// relevance-ranked search clause with an explicit sort, so filter-only
// queries sort server-side and free-text queries do not.
func BuildBody(query search.Query) (string, bool) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	var b strings.Builder
	q := strings.TrimSpace(query.Param("q"))
	if q != "" {
		fmt.Fprintf(&b, "search %q; ", q)
	}
	b.WriteString(gameFields)

	var wheres []string
	if yearMin := query.Param("yearMin"); yearMin != "" {
		if year, err := strconv.Atoi(yearMin); err == nil {
			wheres = append(wheres, fmt.Sprintf("first_release_date >= %d", time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Unix()))
		}
	}
	if yearMax := query.Param("yearMax"); yearMax != "" {
		if year, err := strconv.Atoi(yearMax); err == nil {
			wheres = append(wheres, fmt.Sprintf("first_release_date < %d", time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Unix()))
		}
	}
	if len(wheres) > 0 {
		b.WriteString(" where " + strings.Join(wheres, " & ") + ";")
	}

	serverSorted := false
	if q == "" {
		switch query.Sort {
		case domain.SortDateDesc:
			b.WriteString(" sort first_release_date desc;")
			serverSorted = true
		case domain.SortDateAsc:
			b.WriteString(" sort first_release_date asc;")
			serverSorted = true
		case domain.SortTitleAsc:
			b.WriteString(" sort name asc;")
			serverSorted = true
		case domain.SortTitleDesc:
			b.WriteString(" sort name desc;")
			serverSorted = true
		case domain.SortRatingDesc:
			b.WriteString(" sort rating desc;")
			serverSorted = true
		}
	}

	fmt.Fprintf(&b, " limit %d; offset %d;", limit, (page-1)*limit)
	return b.String(), serverSorted
}

func (p *Provider) Search(ctx context.Context, query search.Query) (domain.SearchResult, error) {
	if query.Type != domain.MediaTypeGame {
		return domain.SearchResult{}, fmt.Errorf("igdb: unsupported media type %q", query.Type)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	body, serverSorted := BuildBody(query)
	payload, err := p.post(ctx, "/games", body)
	if err != nil {
		return domain.SearchResult{}, err
	}

	var entries []gameEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return domain.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	items := make([]domain.MediaItem, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == 0 {
			continue
		}
		items = append(items, entry.toItem())
	}

	// IGDB does not return a total count on list queries; report paging
	// as open-ended while full pages keep coming back.
	totalPages := page
	if len(entries) >= limit {
		totalPages = page + 1
	}
	return domain.SearchResult{
		Results:        items,
		Page:           page,
		TotalPages:     totalPages,
		TotalCount:     (page-1)*limit + len(items),
		IsServerSorted: serverSorted,
	}, nil
}

func (p *Provider) post(ctx context.Context, path, body string) ([]byte, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", p.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		p.tokens.invalidate()
		return nil, fmt.Errorf("%w: igdb rejected access token", domain.ErrCredentialUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &domain.UpstreamError{Backend: p.Name(), Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

func (t *tokenSource) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()
}

type gameEntry struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Summary          string  `json:"summary"`
	Rating           float64 `json:"rating"`
	FirstReleaseDate int64   `json:"first_release_date"`
	Cover            struct {
		ImageID string `json:"image_id"`
	} `json:"cover"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	InvolvedCompanies []struct {
		Developer bool `json:"developer"`
		Company   struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"involved_companies"`
}

func (e gameEntry) toItem() domain.MediaItem {
	item := domain.MediaItem{
		ID:    strconv.FormatInt(e.ID, 10),
		Type:  domain.MediaTypeGame,
		Title: e.Name,
	}
	if e.Cover.ImageID != "" {
		item.ImageURL = coverBaseURL + "/" + e.Cover.ImageID + ".jpg"
	}
	if e.FirstReleaseDate > 0 {
		released := time.Unix(e.FirstReleaseDate, 0).UTC()
		item.Year = released.Year()
		item.Date = released.Format("2006-01-02")
	}
	for _, involved := range e.InvolvedCompanies {
		if involved.Developer && involved.Company.Name != "" {
			item.Developer = involved.Company.Name
			break
		}
	}

	details := &domain.ItemDetails{}
	hasDetails := false
	if e.Summary != "" {
		details.Description = e.Summary
		hasDetails = true
	}
	if e.Rating > 0 {
		// IGDB rates 0-100; normalize to the 0-10 scale the rest of
		// the catalog uses.
		details.Rating = e.Rating / 10
		hasDetails = true
	}
	for _, genre := range e.Genres {
		if genre.Name != "" {
			details.Genres = append(details.Genres, genre.Name)
			hasDetails = true
		}
	}
	if hasDetails {
		item.Details = details
	}
	return item
}

func (p *Provider) Details(ctx context.Context, id string, mediaType domain.MediaType) (domain.MediaItem, error) {
	if mediaType != domain.MediaTypeGame {
		return domain.MediaItem{}, fmt.Errorf("igdb: unsupported media type %q", mediaType)
	}
	gameID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("igdb: invalid game id %q", id)
	}

	body := fmt.Sprintf("%s where id = %d; limit 1;", gameFields, gameID)
	payload, err := p.post(ctx, "/games", body)
	if err != nil {
		return domain.MediaItem{}, err
	}

	var entries []gameEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(entries) == 0 {
		return domain.MediaItem{}, fmt.Errorf("igdb: game %s not found", id)
	}
	return entries[0].toItem(), nil
}

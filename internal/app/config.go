package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	UserAgent      string
	PageSize       int

	MusicBackend string

	MusicBrainzEndpoint string
	CoverArtEndpoint    string
	MusicBrainzRPS      float64

	DiscogsToken    string
	DiscogsEndpoint string

	TMDBAPIKey  string
	TMDBBaseURL string

	IGDBClientID      string
	IGDBClientSecret  string
	IGDBEndpoint      string
	IGDBTokenEndpoint string

	OpenLibraryEndpoint string

	RedisURL      string
	CacheTTL      time.Duration
	CacheDisabled bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout: time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("SEARCH_USER_AGENT", "tierboard-search/1.0 (https://github.com/tierboard)"),
		PageSize:       getEnvInt("SEARCH_PAGE_SIZE", 25),

		MusicBackend: strings.ToLower(getEnv("MUSIC_BACKEND", "")),

		MusicBrainzEndpoint: getEnv("MUSICBRAINZ_ENDPOINT", "https://musicbrainz.org/ws/2"),
		CoverArtEndpoint:    getEnv("COVERART_ENDPOINT", "https://coverartarchive.org"),
		MusicBrainzRPS:      getEnvFloat("MUSICBRAINZ_RPS", 1),

		DiscogsToken:    strings.TrimSpace(os.Getenv("DISCOGS_TOKEN")),
		DiscogsEndpoint: getEnv("DISCOGS_ENDPOINT", "https://api.discogs.com"),

		TMDBAPIKey:  strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL: getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),

		IGDBClientID:      strings.TrimSpace(os.Getenv("IGDB_CLIENT_ID")),
		IGDBClientSecret:  strings.TrimSpace(os.Getenv("IGDB_CLIENT_SECRET")),
		IGDBEndpoint:      getEnv("IGDB_ENDPOINT", "https://api.igdb.com/v4"),
		IGDBTokenEndpoint: getEnv("IGDB_TOKEN_ENDPOINT", "https://id.twitch.tv/oauth2/token"),

		OpenLibraryEndpoint: getEnv("OPENLIBRARY_ENDPOINT", "https://openlibrary.org"),

		RedisURL:      getEnv("REDIS_URL", ""),
		CacheTTL:      time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 10)) * time.Minute,
		CacheDisabled: getEnvBool("SEARCH_CACHE_DISABLED", false),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

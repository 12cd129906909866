package playerjs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Resolver fetches player JS and builds decipherers from it.
type Resolver interface {
	GetPlayerJS(ctx context.Context, playerURL string) (string, error)
	Decipherer(ctx context.Context, playerURL string) (*Decipherer, error)
}

// ResolverConfig contains externally tunable settings for player JS fetches.
type ResolverConfig struct {
	BaseURL         string
	UserAgent       string
	PreferredLocale string
}

type defaultResolver struct {
	client *http.Client
	cache  Cache
	config ResolverConfig
}

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultLocale    = "en_US"
)

var (
	playerPathPattern = regexp.MustCompile(`^/s/player/([A-Za-z0-9_-]+)/(.+)$`)
	localePathPattern = regexp.MustCompile(`(?i)(player(?:_[a-z0-9]+)?\.vflset)/[a-z]{2,3}_[a-z]{2,3}/base\.js$`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

func NewResolver(client *http.Client, cache Cache, cfg ResolverConfig) Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.PreferredLocale == "" {
		cfg.PreferredLocale = defaultLocale
	}
	return &defaultResolver{client: client, cache: cache, config: cfg}
}

func (r *defaultResolver) Decipherer(ctx context.Context, playerURL string) (*Decipherer, error) {
	body, err := r.GetPlayerJS(ctx, playerURL)
	if err != nil {
		return nil, err
	}
	return NewDecipherer(body), nil
}

// GetPlayerJS returns the player body, trying the locale-normalized path first.
func (r *defaultResolver) GetPlayerJS(ctx context.Context, playerURL string) (string, error) {
	if strings.TrimSpace(playerURL) == "" {
		return "", fmt.Errorf("player url is empty")
	}
	normalized := r.normalizePlayerPath(playerURL)
	key := CacheKey(normalized)
	if body, ok := r.cache.Get(key); ok {
		return body, nil
	}

	candidates := []string{normalized}
	if playerURL != normalized {
		candidates = append(candidates, playerURL)
	}
	var lastErr error
	for _, candidate := range candidates {
		body, err := r.fetch(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		r.cache.Set(key, body)
		return body, nil
	}
	return "", lastErr
}

func (r *defaultResolver) fetch(ctx context.Context, playerURL string) (string, error) {
	target := playerURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = strings.TrimRight(r.config.BaseURL, "/") + playerURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create player js request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch player js: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch player js: bad status code %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read player js: %w", err)
	}
	return string(body), nil
}

func (r *defaultResolver) normalizePlayerPath(playerURL string) string {
	if u, err := url.Parse(playerURL); err == nil && u.Path != "" {
		playerURL = u.Path
	}
	if localePathPattern.MatchString(playerURL) {
		return localePathPattern.ReplaceAllString(playerURL, "${1}/"+r.config.PreferredLocale+"/base.js")
	}
	return playerURL
}

// CacheKey derives "<playerID>:<variant>" from a player path.
func CacheKey(playerPath string) string {
	m := playerPathPattern.FindStringSubmatch(playerPath)
	if len(m) < 3 {
		return playerPath
	}
	return m[1] + ":" + nonAlnumPattern.ReplaceAllString(m[2], "_")
}

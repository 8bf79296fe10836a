// Package catalog feeds the event catalog from ICS subscriptions and YAML
// seed files.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/clash/pkg/logger"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultFetchRPS     = 2.0
	maxFeedBytes        = 16 << 20
)

// ErrFeedTooLarge is returned when a feed exceeds the accepted body size.
var ErrFeedTooLarge = errors.New("feed body too large")

// Source is a single ICS subscription.
type Source struct {
	ID  string `koanf:"id" yaml:"id"`
	URL string `koanf:"url" yaml:"url"`
}

// FetchResult is the body of one source, either fresh or from cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRate limits outbound requests to rps per second. rps <= 0 disables
// limiting.
func WithRate(rps float64) FetcherOption {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithFetchLogger sets the fetcher logger.
func WithFetchLogger(l logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// Fetcher downloads ICS feeds with ETag / Last-Modified revalidation and an
// in-memory body cache keyed by URL.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	log     logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher builds a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: defaultFetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultFetchRPS), 1),
		log:     logger.Nop(),
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one source. A 304 reply returns the cached body. When the
// request fails and a cached body exists, the cached body is returned along
// with FromCache so a flaky feed does not empty the catalog.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("source %q: url is empty", src.ID)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return FetchResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	f.mu.Lock()
	cached, hasCache := f.cache[src.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	if hasCache {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	f.log.Debug(ctx, "ics fetch start", logger.String("source", src.ID), logger.String("host", redactURL(src.URL)))

	resp, err := f.client.Do(req)
	if err != nil {
		return f.fallback(ctx, src, cached, hasCache, fmt.Errorf("fetch %s: %w", src.ID, err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if !hasCache {
			return FetchResult{}, fmt.Errorf("fetch %s: 304 without cached body", src.ID)
		}
		f.log.Debug(ctx, "ics not modified", logger.String("source", src.ID))
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
	case http.StatusOK:
	default:
		return f.fallback(ctx, src, cached, hasCache, fmt.Errorf("fetch %s: unexpected status %d", src.ID, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return f.fallback(ctx, src, cached, hasCache, fmt.Errorf("read %s: %w", src.ID, err))
	}
	if len(body) > maxFeedBytes {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", src.ID, ErrFeedTooLarge)
	}

	f.mu.Lock()
	f.cache[src.URL] = cacheEntry{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		body:         body,
	}
	f.mu.Unlock()

	f.log.Info(ctx, "ics fetched", logger.String("source", src.ID), logger.Int("bytes", len(body)))
	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) fallback(ctx context.Context, src Source, cached cacheEntry, ok bool, err error) (FetchResult, error) {
	if !ok {
		return FetchResult{}, err
	}
	f.log.Warn(ctx, "ics fetch failed, serving cached body", logger.String("source", src.ID), logger.Error(err))
	return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
}

// redactURL keeps scheme and host only; feed URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

package helpers

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/pkg/errors"
	"sjsage522/communitysync/services/cache"
)

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.google.com.tw/",
		"https://tw.yahoo.com/",
	}
)

const utf8BOM = "\xef\xbb\xbf"

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout time.Duration
	// ForceUTF8 treats every body as UTF-8 regardless of the declared charset
	ForceUTF8 bool
	Cache     cache.CacheService
	CacheTTL  time.Duration
	Retry     RetryPolicy
}

// Fetcher issues GET requests against the source site and returns UTF-8 bodies
type Fetcher struct {
	client    *http.Client
	forceUTF8 bool
	cache     cache.CacheService
	cacheTTL  time.Duration
	retry     RetryPolicy
	log       *logger.Logger
}

// NewFetcher creates a new fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		forceUTF8: opts.ForceUTF8,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		retry:     opts.Retry,
		log:       logger.ForFetcher(),
	}
}

// Fetch returns the UTF-8 body of url, served from the page cache when possible.
// Retryable failures are retried according to the fetcher's policy.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	key := cacheKey(url)
	if f.cache != nil {
		if cached, err := f.cache.Get(key); err == nil {
			f.log.Debug().Str("url", url).Msg("Page cache hit")
			return bytes.NewReader(cached), nil
		}
	}

	var body []byte
	err := Retry(ctx, f.retry, func() error {
		var fetchErr error
		body, fetchErr = f.fetchBytes(ctx, url)
		if fetchErr != nil {
			f.log.Warn().Err(fetchErr).Str("url", url).Msg("Fetch attempt failed")
		}
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(key, body, f.cacheTTL); err != nil {
			cacheErr := errors.NewCache("fetcher", "failed to store page", err)
			f.log.Warn().Err(cacheErr).Str("url", url).Msg("Page cache disabled for this page")
		}
	}
	return bytes.NewReader(body), nil
}

// fetchBytes sends a single GET with randomized browser headers and
// returns the body converted to UTF-8
func (f *Fetcher) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	// Create a new random number generator for header selection
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewValidation("fetcher", fmt.Sprintf("failed to create request: %v", err))
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork("fetcher", "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, errors.FromStatus("fetcher", resp.StatusCode, url, ParseRetryAfter(resp.Header.Get("Retry-After")))
	}

	// Check for other error status codes
	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromStatus("fetcher", resp.StatusCode, fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode), 0)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("fetcher", "failed to read response body", err)
	}

	if f.forceUTF8 {
		return bytes.TrimPrefix(bodyBytes, []byte(utf8BOM)), nil
	}
	return toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// toUTF8 determines the encoding from the Content-Type header and body content
// and converts the body when it is not already UTF-8.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, errors.NewParsing("fetcher", "failed to read converted UTF-8 body", err)
	}
	return buf.Bytes(), nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is absent or unreadable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// memcache keys are limited to 250 bytes without spaces
func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "page:" + hex.EncodeToString(sum[:])
}

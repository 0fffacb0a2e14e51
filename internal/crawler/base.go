package crawler

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/communitysync/pkg/errors"
)

// BaseCrawler provides the fetch and parse steps shared by the walker and extractor
type BaseCrawler struct {
	Fetcher    PageFetcher
	SitePrefix string
	Provider   string
}

// fetchDocument fetches url and parses it into a goquery document
func (c *BaseCrawler) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	utf8Body, err := c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.createDocument(utf8Body)
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errors.NewParsing(c.Provider, "HTML parsing failed", err)
	}
	return doc, nil
}

// ResolveURL prefixes a relative href with the site prefix. Absolute URLs are returned unchanged.
func (c *BaseCrawler) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	href = strings.TrimPrefix(href, "./")
	if strings.HasSuffix(c.SitePrefix, "/") {
		href = strings.TrimPrefix(href, "/")
	}
	return c.SitePrefix + href
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	if c.Provider != "" {
		return c.Provider
	}
	return "BaseCrawler"
}

package crawler

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/logger"
)

// Walker iterates listing pages and scrapes every detail page they link to
type Walker struct {
	BaseCrawler
	ListingURLTemplate string
	MaxPages           int
	Selectors          Selectors
	extractor          *Extractor
	failures           helpers.FailureRecorder
	log                *logger.Logger
}

// NewWalker creates a new listing walker. failures may be nil.
func NewWalker(config CrawlerConfig, fetcher PageFetcher, failures helpers.FailureRecorder) *Walker {
	w := &Walker{
		BaseCrawler: BaseCrawler{
			Fetcher:    fetcher,
			SitePrefix: config.SitePrefix,
			Provider:   config.Provider,
		},
		ListingURLTemplate: config.ListingURLTemplate,
		MaxPages:           config.MaxPages,
		Selectors:          config.Selectors,
		extractor:          NewExtractor(config.Selectors, config.Labels),
		failures:           failures,
	}
	w.log = logger.ForWalker().WithFields(logger.Fields{
		"provider":  w.GetName(),
		"max_pages": w.MaxPages,
	})
	return w
}

// ListingURL returns the URL of listing page n. The site's first page carries
// an empty page token, later pages carry their index.
func (w *Walker) ListingURL(page int) string {
	token := ""
	if page > 0 {
		token = strconv.Itoa(page)
	}
	return strings.ReplaceAll(w.ListingURLTemplate, "{page}", token)
}

// ExtractLinks returns the resolved detail links of the first table on a listing page,
// one per row holding an anchor with an href, in row order.
func (w *Walker) ExtractLinks(doc *goquery.Document) []string {
	var links []string
	table := doc.Find(w.Selectors.ListingTable).First()
	table.Find(w.Selectors.ListingRow).Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(w.Selectors.ListingLink).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		links = append(links, w.ResolveURL(href))
	})
	return links
}

// CollectLinks visits listing pages in increasing index order and returns every
// detail link found. The walk stops at MaxPages, at a page with no links, or at a
// page whose links were all seen before (sites that repeat their last page).
// A listing page that cannot be fetched is recorded as a failure; the walk then
// continues only when MaxPages bounds it.
func (w *Walker) CollectLinks(ctx context.Context) ([]string, error) {
	var links []string
	seen := make(map[string]bool)

	for page := 0; w.MaxPages == 0 || page < w.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		url := w.ListingURL(page)
		doc, err := w.fetchDocument(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			w.log.Error().Err(err).Int("page", page).Str("url", url).Msg("Failed to fetch listing page")
			w.recordFailure(url, err)
			if w.MaxPages == 0 {
				break
			}
			continue
		}

		pageLinks := w.ExtractLinks(doc)
		fresh := 0
		for _, link := range pageLinks {
			if seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
			fresh++
		}

		w.log.Debug().Int("page", page).Int("links", len(pageLinks)).Int("new", fresh).Msg("Listing page walked")
		if fresh == 0 {
			break
		}
	}

	return links, nil
}

// ScrapeDetail fetches one detail page and extracts its record
func (w *Walker) ScrapeDetail(ctx context.Context, link string) (CommunityRecord, error) {
	doc, err := w.fetchDocument(ctx, link)
	if err != nil {
		return CommunityRecord{}, err
	}
	record := w.extractor.Extract(doc)
	record.URL = link
	return record, nil
}

// Walk collects every detail link and scrapes them one at a time in listing order.
// Detail pages that fail are recorded and skipped; only cancellation aborts the walk.
func (w *Walker) Walk(ctx context.Context) ([]CommunityRecord, error) {
	links, err := w.CollectLinks(ctx)
	if err != nil {
		return nil, err
	}
	w.log.Info().Int("links", len(links)).Msg("Collected detail links")

	records := make([]CommunityRecord, 0, len(links))
	for _, link := range links {
		record, err := w.ScrapeDetail(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			w.log.Error().Err(err).Str("url", link).Msg("Failed to scrape detail page")
			w.recordFailure(link, err)
			continue
		}
		records = append(records, record)
	}

	w.log.Info().Int("records", len(records)).Int("failed", len(links)-len(records)).Msg("Walk completed")
	return records, nil
}

func (w *Walker) recordFailure(identifier string, err error) {
	if w.failures != nil {
		w.failures.LogError(identifier, err)
	}
}

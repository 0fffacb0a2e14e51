package crawler

import (
	"context"
	"io"
)

// Missing marks a field whose labeled element was absent from the detail page
const Missing = ""

// CommunityRecord represents one scraped community association
type CommunityRecord struct {
	Name          string `json:"name"`
	Population    string `json:"population"`
	Address       string `json:"address"`
	Email         string `json:"email,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Title         string `json:"title,omitempty"`
	Phone         string `json:"phone,omitempty"`
	// URL is the detail page the record was scraped from
	URL string `json:"url,omitempty"`
}

// PageFetcher returns the UTF-8 body of a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// Selectors contains CSS selectors for the listing and detail pages
type Selectors struct {
	// Listing page
	ListingTable string
	ListingRow   string
	ListingLink  string

	// Detail page
	LabelCell    string
	ValueCell    string
	ContactBlock string
	ContactLabel string
}

// Labels holds the label texts the detail page uses for each field.
// Title and Phone are matched as substrings inside the contact block.
type Labels struct {
	Name          string
	Population    string
	Address       string
	Email         string
	ContactPerson string
	Title         string
	Phone         string
}

// CrawlerConfig contains configuration for a directory crawler
type CrawlerConfig struct {
	// ListingURLTemplate contains a {page} token replaced by the page index
	ListingURLTemplate string
	// SitePrefix is prepended to relative detail links
	SitePrefix string
	// MaxPages bounds the walk; zero walks until a page yields no new links
	MaxPages  int
	Provider  string
	Selectors Selectors
	Labels    Labels
}

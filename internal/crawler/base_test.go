package crawler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	crawler := BaseCrawler{SitePrefix: "https://community.society.taichung.gov.tw/compoint/"}

	assert.Equal(t, "https://community.society.taichung.gov.tw/compoint/Detail.aspx?ID=12",
		crawler.ResolveURL("Detail.aspx?ID=12"))
	assert.Equal(t, "https://community.society.taichung.gov.tw/compoint/Detail.aspx?ID=12",
		crawler.ResolveURL(" ./Detail.aspx?ID=12 "))
	assert.Equal(t, "https://community.society.taichung.gov.tw/compoint/Detail.aspx?ID=12",
		crawler.ResolveURL("/Detail.aspx?ID=12"))
	assert.Equal(t, "https://other.example.com/x", crawler.ResolveURL("https://other.example.com/x"))
}

func TestFetchDocument(t *testing.T) {
	fetcher := NewMockFetcher().Add("https://example.com/", "<html><body><p>中區</p></body></html>")
	crawler := BaseCrawler{Fetcher: fetcher, Provider: "Test"}

	doc, err := crawler.fetchDocument(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "中區", strings.TrimSpace(doc.Find("p").Text()))

	_, err = crawler.fetchDocument(context.Background(), "https://example.com/missing")
	assert.Error(t, err)
}

// TestGetName tests the GetName function
func TestGetName(t *testing.T) {
	crawler := BaseCrawler{}
	assert.Equal(t, "BaseCrawler", crawler.GetName())

	crawler.Provider = "Taichung"
	assert.Equal(t, "Taichung", crawler.GetName())
}

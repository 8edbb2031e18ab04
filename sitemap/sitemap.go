// Package sitemap fetches a sitemap document and extracts its location
// entries. It is the upstream producer for the crawl loop: on any fetch or
// parse failure the caller receives a typed error and degrades to an empty
// URL set rather than crashing.
package sitemap

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/models"
)

// Fetcher retrieves page URLs listed in a sitemap.
type Fetcher struct {
	cfg  config.SitemapConfig
	http *httpFetcher
}

// NewFetcher builds a Fetcher for the configured sitemap.
func NewFetcher(cfg config.SitemapConfig) *Fetcher {
	return &Fetcher{
		cfg:  cfg,
		http: newHTTPFetcher(cfg.Proxy),
	}
}

// URLs fetches the sitemap and returns every <loc> entry in document order.
//
// A sitemapindex document is expanded one level deep: each child sitemap is
// fetched once and its entries concatenated in index order. A child that
// fails to fetch is logged and skipped; only a failure of the root document
// yields an error.
func (f *Fetcher) URLs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	doc, err := f.load(ctx, f.cfg.URL)
	if err != nil {
		return nil, err
	}

	if xmlquery.FindOne(doc, "//sitemapindex") == nil {
		return locs(doc), nil
	}

	// Sitemap index: the locs are child sitemaps, not pages.
	var urls []string
	for _, child := range locs(doc) {
		childDoc, err := f.load(ctx, child)
		if err != nil {
			slog.Warn("skipping child sitemap", "url", child, "error", err)
			continue
		}
		urls = append(urls, locs(childDoc)...)
	}
	return urls, nil
}

// load fetches and parses one sitemap document.
func (f *Fetcher) load(ctx context.Context, sitemapURL string) (*xmlquery.Node, error) {
	body, err := f.http.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeSitemapFetch,
			"failed to fetch sitemap",
			err,
		)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeSitemapFetch,
			"failed to parse sitemap XML",
			err,
		)
	}
	return doc, nil
}

// locs returns the trimmed text of every <loc> element in document order.
func locs(doc *xmlquery.Node) []string {
	nodes := xmlquery.Find(doc, "//loc")
	urls := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if u := strings.TrimSpace(n.InnerText()); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

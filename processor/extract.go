package processor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/LordXyTh/sigma-scraper/models"
)

// Compiled once; extraction runs for every rendered page.
var (
	noscriptMatcher = cascadia.MustCompile("noscript")
	iframeMatcher   = cascadia.MustCompile("iframe[src]")
)

// ExtractIframes parses rendered HTML and returns one record per iframe
// whose src contains match, in document order.
//
// Every noscript subtree is removed before the search so that inert
// fallback markup never produces a false positive; only iframes that exist
// in the live DOM qualify. The record's IframeHTML is the element serialized
// as it stands after that removal, attributes and children intact.
func ExtractIframes(rawHTML, pageURL, match string) ([]models.IframeRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeParse,
			"failed to parse rendered HTML",
			err,
		)
	}

	doc.FindMatcher(noscriptMatcher).Remove()

	var (
		records      []models.IframeRecord
		serializeErr error
	)
	doc.FindMatcher(iframeMatcher).Each(func(_ int, el *goquery.Selection) {
		src, _ := el.Attr("src")
		if !strings.Contains(src, match) {
			return
		}
		outer, err := goquery.OuterHtml(el)
		if err != nil {
			serializeErr = err
			return
		}
		records = append(records, models.IframeRecord{
			PageURL:    pageURL,
			SrcURL:     src,
			IframeHTML: outer,
		})
	})
	if serializeErr != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeParse,
			"failed to serialize iframe element",
			serializeErr,
		)
	}

	return records, nil
}

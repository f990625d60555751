package extract

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/bggwatch/bggwatch/models"
	"github.com/bggwatch/bggwatch/parse"
)

// Rows enumerates item rows on a listing page. Row containers are the union
// of every matching container query, in document order. A row whose first
// item link cannot be resolved to an absolute URL is dropped entirely; a
// missing rank only leaves the rank empty.
func Rows(root *goquery.Selection, listingURL string) []*models.ListingRow {
	base, err := url.Parse(listingURL)
	if err != nil {
		base = nil
	}

	var rows []*models.ListingRow
	seen := make(map[*html.Node]struct{})
	for _, q := range rowContainerQueries {
		root.Find(q).Each(func(_ int, row *goquery.Selection) {
			node := row.Get(0)
			if _, ok := seen[node]; ok {
				return
			}
			seen[node] = struct{}{}
			if r := extractRow(row, base, listingURL); r != nil {
				rows = append(rows, r)
			}
		})
	}
	return rows
}

func extractRow(row *goquery.Selection, base *url.URL, listingURL string) *models.ListingRow {
	href := rowLinkChain.first(row)
	abs := resolveURL(base, href)
	if abs == "" {
		// No resolvable item link means the row is not a usable
		// observation; it is filtered out rather than emitted empty.
		return nil
	}

	return &models.ListingRow{
		Name:             rowNameChain.first(row),
		AbsoluteURL:      abs,
		Rank:             parse.Digits(rowRankChain.first(row)),
		ChangeIndicator:  rowChangeChain.first(row),
		SourceListingURL: listingURL,
		ExtractedAt:      time.Now().UTC(),
	}
}

func resolveURL(base *url.URL, href string) string {
	if href == "" || base == nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host == "" {
		return ""
	}
	return resolved.String()
}

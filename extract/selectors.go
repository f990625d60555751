package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/bggwatch/bggwatch/parse"
)

// selector names one place a field's value may live: a CSS query plus an
// optional attribute. An empty attr means the element's text.
type selector struct {
	query string
	attr  string
}

// chain is an ordered list of selector candidates for one field, evaluated
// top to bottom. Chains are configuration data, kept out of the extraction
// control flow so individual chains can be tested and extended on their own.
type chain []selector

// first returns the first candidate's non-empty trimmed value, or "".
func (c chain) first(root *goquery.Selection) string {
	for _, s := range c {
		sel := root.Find(s.query).First()
		if sel.Length() == 0 {
			continue
		}
		var raw string
		if s.attr == "" {
			raw = sel.Text()
		} else {
			raw, _ = sel.Attr(s.attr)
		}
		if v := parse.CleanText(raw); v != "" {
			return v
		}
	}
	return ""
}

// all collects the trimmed text of every element matched by the first
// candidate that matches anything. Entries keep document order and are not
// deduplicated.
func (c chain) all(root *goquery.Selection) []string {
	for _, s := range c {
		sel := root.Find(s.query)
		if sel.Length() == 0 {
			continue
		}
		var out []string
		sel.Each(func(_ int, el *goquery.Selection) {
			var raw string
			if s.attr == "" {
				raw = el.Text()
			} else {
				raw, _ = el.Attr(s.attr)
			}
			if v := parse.CleanText(raw); v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Field chains for the item-detail page. BGG has shipped several frontends
// over the years; each chain starts with the current markup and falls back
// to older shapes and finally to generic meta tags.
var (
	nameChain = chain{
		{query: "h1 a[itemprop=name]"},
		{query: ".game-header-title-info h1 a"},
		{query: "meta[property='og:title']", attr: "content"},
	}
	yearChain = chain{
		{query: ".game-header-title-info span.game-year"},
		{query: "h1 span.game-year"},
	}
	descriptionChain = chain{
		{query: "meta[property='og:description']", attr: "content"},
		{query: "meta[name=description]", attr: "content"},
		{query: "article .game-description-body"},
	}
	averageRatingChain = chain{
		{query: "span[itemprop=ratingValue]"},
		{query: ".gameplay-rating strong"},
		{query: ".rating-overall .ng-binding"},
	}
	numRatersChain = chain{
		{query: "span[itemprop=ratingCount]"},
		{query: ".rating-count"},
	}
	geekRatingChain = chain{
		{query: ".rating-geek"},
		{query: "td.collection_bggrating"},
	}
	minPlayersChain = chain{
		{query: ".gameplay-players span.minplayers"},
		{query: "span[itemprop=minValue]"},
	}
	maxPlayersChain = chain{
		{query: ".gameplay-players span.maxplayers"},
		{query: "span[itemprop=maxValue]"},
	}
	playingTimeChain = chain{
		{query: ".gameplay-time span.playingtime"},
		{query: "span[itemprop=duration]"},
	}
	designersChain = chain{
		{query: "a[href*='/boardgamedesigner/']"},
	}
	mechanicsChain = chain{
		{query: "a[href*='/boardgamemechanic/']"},
	}
	categoriesChain = chain{
		{query: "a[href*='/boardgamecategory/']"},
	}
)

// Identifier sources, tried in order: the canonical link, then the
// social-graph URL meta tag.
var identifierChain = chain{
	{query: "link[rel=canonical]", attr: "href"},
	{query: "meta[property='og:url']", attr: "content"},
}

// Row containers and per-row fields for listing pages. Containers are a
// union: every chain entry that matches contributes rows.
var (
	rowContainerQueries = []string{
		"tr[id^=row_]",
		"li.hotness-item",
		"table.collection_table tr",
	}
	rowLinkChain = chain{
		{query: "td.collection_objectname a", attr: "href"},
		{query: "a.hotness-item-title", attr: "href"},
		{query: "a[href*='/boardgame/']", attr: "href"},
	}
	rowNameChain = chain{
		{query: "td.collection_objectname a"},
		{query: "a.hotness-item-title"},
		{query: "a[href*='/boardgame/']"},
	}
	rowRankChain = chain{
		{query: "td.collection_rank"},
		{query: ".hotness-item-rank"},
	}
	rowChangeChain = chain{
		{query: ".hotness-item-delta"},
		{query: "td.collection_rank .delta"},
	}
)

// Package extract pulls structured records out of fetched BGG pages.
//
// Every field is resolved through an ordered chain of selector candidates;
// the first candidate producing non-empty trimmed text wins. A field whose
// whole chain comes up empty is set to "" so downstream consumers always see
// a stable type. Extraction never fails: a document matching none of the
// selectors still yields a record.
package extract

import (
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bggwatch/bggwatch/models"
	"github.com/bggwatch/bggwatch/parse"
)

// DescriptionMaxLen bounds the stored description length.
const DescriptionMaxLen = 2000

// idPattern captures the numeric identifier from either detail-path shape:
// a typed segment followed by the id (/boardgame/224517/brass-birmingham)
// or a bare trailing id (/224517).
var idPattern = regexp.MustCompile(`/boardgame(?:expansion|accessory)?/(\d+)|/(\d+)/?$`)

// Game extracts a best-effort ItemRecord from an item-detail document.
// root is the document root selection; pageURL is the resolved
// (post-redirect) URL the document was fetched from.
func Game(root *goquery.Selection, pageURL string) *models.ItemRecord {
	return &models.ItemRecord{
		ExternalID:    externalID(root),
		Name:          nameChain.first(root),
		YearPublished: parse.Digits(yearChain.first(root)),
		Description:   parse.Truncate(descriptionChain.first(root), DescriptionMaxLen),
		MinPlayers:    parse.Digits(minPlayersChain.first(root)),
		MaxPlayers:    parse.Digits(maxPlayersChain.first(root)),
		PlayingTime:   parse.Digits(playingTimeChain.first(root)),
		AverageRating: parse.Digits(averageRatingChain.first(root)),
		NumRaters:     parse.Digits(numRatersChain.first(root)),
		GeekRating:    parse.Digits(geekRatingChain.first(root)),
		Designers:     designersChain.all(root),
		Mechanics:     mechanicsChain.all(root),
		Categories:    categoriesChain.all(root),
		SourceURL:     pageURL,
		ExtractedAt:   time.Now().UTC(),
	}
}

// externalID resolves the item identifier from the canonical link, falling
// back to the og:url meta tag. Failure to resolve is not fatal; the caller
// gets "" and the record is stored under a degraded key.
func externalID(root *goquery.Selection) string {
	for _, s := range identifierChain {
		href, _ := root.Find(s.query).First().Attr(s.attr)
		if href == "" {
			continue
		}
		if id := matchID(href); id != "" {
			return id
		}
	}
	return ""
}

func matchID(href string) string {
	m := idPattern.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

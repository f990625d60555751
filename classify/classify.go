// Package classify decides how a URL should be handled: whether a page is a
// listing or an item-detail page, and whether a discovered link should be
// followed at all. Everything here is a pure function of the URL.
package classify

import (
	"net/url"
	"regexp"
)

// Kind is the page category derived from a URL's path shape.
type Kind int

const (
	// Listing is the safe default: listing pages trigger link discovery
	// rather than field extraction, so ambiguous URLs land here.
	Listing Kind = iota
	// ItemDetail marks a page dedicated to a single catalog item.
	ItemDetail
)

func (k Kind) String() string {
	if k == ItemDetail {
		return "item_detail"
	}
	return "listing"
}

// itemPathPattern matches detail paths such as /boardgame/224517 and
// /boardgameexpansion/224517/brass-birmingham.
var itemPathPattern = regexp.MustCompile(`^/boardgame(?:expansion|accessory)?/\d+(?:[/?#]|$)`)

// Page classifies a URL by its path shape. Unparsable URLs classify as
// Listing.
func Page(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Listing
	}
	if itemPathPattern.MatchString(u.Path) {
		return ItemDetail
	}
	return Listing
}

// FollowMode selects the link enqueuing policy.
type FollowMode int

const (
	// Unrestricted follows any well-formed candidate.
	Unrestricted FollowMode = iota
	// SameOriginOnly follows only candidates whose host equals the
	// origin host recorded at crawl start for the current seed.
	SameOriginOnly
)

// ShouldFollow reports whether a candidate link discovered on a page should
// be enqueued. originHost is fixed per seed URL and propagated to every page
// reached from that seed; it is never recomputed per hop. Candidates that
// fail URL parsing are rejected in every mode.
func ShouldFollow(candidateURL, originHost string, mode FollowMode) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return false
	}
	if mode == Unrestricted {
		return true
	}
	return u.Host != "" && u.Host == originHost
}

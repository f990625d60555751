package bggapi

import (
	"encoding/xml"
	"time"
)

// Link type discriminators used by the thing endpoint.
const (
	LinkTypeDesigner = "boardgamedesigner"
	LinkTypeMechanic = "boardgamemechanic"
	LinkTypeCategory = "boardgamecategory"
)

// ValueAttr is the API's scalar shape: an element whose payload sits in a
// value attribute, e.g. <yearpublished value="1876"/>.
type ValueAttr struct {
	Value string `xml:"value,attr" json:"value"`
}

// Name is one of possibly many localized names for an item.
type Name struct {
	Type  string `xml:"type,attr" json:"type"`
	Value string `xml:"value,attr" json:"value"`
}

// Link is a typed relation to another entity (designer, mechanic, ...).
type Link struct {
	Type  string `xml:"type,attr" json:"type"`
	ID    string `xml:"id,attr" json:"id"`
	Value string `xml:"value,attr" json:"value"`
}

// Ratings carries the aggregate rating statistics subtree.
type Ratings struct {
	UsersRated   ValueAttr `xml:"usersrated" json:"users_rated"`
	Average      ValueAttr `xml:"average" json:"average"`
	BayesAverage ValueAttr `xml:"bayesaverage" json:"bayes_average"`
}

// Statistics wraps the ratings subtree returned when stats are requested.
type Statistics struct {
	Ratings Ratings `xml:"ratings" json:"ratings"`
}

// Thing is the typed representation of one item from the thing endpoint.
type Thing struct {
	ID            string     `xml:"id,attr" json:"id"`
	Type          string     `xml:"type,attr" json:"type"`
	Names         []Name     `xml:"name" json:"names"`
	YearPublished ValueAttr  `xml:"yearpublished" json:"year_published"`
	Description   string     `xml:"description" json:"description"`
	MinPlayers    ValueAttr  `xml:"minplayers" json:"min_players"`
	MaxPlayers    ValueAttr  `xml:"maxplayers" json:"max_players"`
	PlayingTime   ValueAttr  `xml:"playingtime" json:"playing_time"`
	Links         []Link     `xml:"link" json:"links"`
	Statistics    Statistics `xml:"statistics" json:"statistics"`
}

// PrimaryName returns the item's primary localized name, falling back to
// the first name present. The thing endpoint returns one-or-many name
// elements; the slice decoding absorbs both shapes.
func (t *Thing) PrimaryName() string {
	for _, n := range t.Names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(t.Names) > 0 {
		return t.Names[0].Value
	}
	return ""
}

// LinksOfType collects the display names of links with the given type
// discriminator, in response order.
func (t *Thing) LinksOfType(linkType string) []string {
	var out []string
	for _, l := range t.Links {
		if l.Type == linkType && l.Value != "" {
			out = append(out, l.Value)
		}
	}
	return out
}

// envelope mirrors the response root: <items><item .../></items>.
type envelope struct {
	XMLName xml.Name `xml:"items"`
	Items   []Thing  `xml:"item"`
}

// Payload is the parsed API response for one item, stored verbatim in the
// blob store for audit and reprocessing. It is not reconciled.
type Payload struct {
	ItemID    string    `json:"item_id"`
	FetchedAt time.Time `json:"fetched_at"`
	Item      Thing     `json:"item"`
}

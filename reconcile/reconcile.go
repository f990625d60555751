// Package reconcile merges the HTML-derived view of an item with the
// XML-API view under field-level precedence rules.
//
// The precedence is asymmetric on purpose. Name, year and description come
// from the page the user actually sees and are never overwritten by the
// API. Rating statistics and the player/time counts are better curated on
// the API side, so the API value wins whenever it is present. Collections
// are replaced wholesale or not at all; the output never mixes fragments of
// both sources for one field.
package reconcile

import (
	"log/slog"
	"strings"

	"github.com/bggwatch/bggwatch/bggapi"
	"github.com/bggwatch/bggwatch/models"
)

// BlobStore receives raw API payloads keyed by item id.
type BlobStore interface {
	Put(key string, value any) error
}

// Merger reconciles records and archives raw payloads.
type Merger struct {
	blobs BlobStore
}

// NewMerger builds a Merger writing raw payloads to blobs. A nil store
// disables archiving.
func NewMerger(blobs BlobStore) *Merger {
	return &Merger{blobs: blobs}
}

// Merge reconciles an HTML-derived record with an API payload. A nil
// payload (no enrichment available) returns htmlRec unchanged and touches
// nothing. Otherwise the raw payload is archived best-effort under
// items/<id>; an archive failure is logged and does not invalidate the
// merged record.
func (m *Merger) Merge(htmlRec *models.ItemRecord, payload *bggapi.Payload) *models.ItemRecord {
	if payload == nil {
		return htmlRec
	}

	if m.blobs != nil {
		key := "items/" + payload.ItemID
		if err := m.blobs.Put(key, payload); err != nil {
			slog.Error("archive raw payload",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
	}

	thing := &payload.Item
	out := *htmlRec

	// Scalar enrichment fields: API wins when present.
	out.GeekRating = pick(thing.Statistics.Ratings.BayesAverage.Value, htmlRec.GeekRating)
	out.AverageRating = pick(thing.Statistics.Ratings.Average.Value, htmlRec.AverageRating)
	out.NumRaters = pick(thing.Statistics.Ratings.UsersRated.Value, htmlRec.NumRaters)
	out.MinPlayers = pick(thing.MinPlayers.Value, htmlRec.MinPlayers)
	out.MaxPlayers = pick(thing.MaxPlayers.Value, htmlRec.MaxPlayers)
	out.PlayingTime = pick(thing.PlayingTime.Value, htmlRec.PlayingTime)

	// Collection fields: the API list replaces the HTML list only when it
	// is non-empty.
	out.Designers = pickList(thing.LinksOfType(bggapi.LinkTypeDesigner), htmlRec.Designers)
	out.Mechanics = pickList(thing.LinksOfType(bggapi.LinkTypeMechanic), htmlRec.Mechanics)
	out.Categories = pickList(thing.LinksOfType(bggapi.LinkTypeCategory), htmlRec.Categories)

	// Name, year and description stay HTML-authoritative.
	return &out
}

func pick(apiValue, htmlValue string) string {
	if strings.TrimSpace(apiValue) != "" {
		return apiValue
	}
	return htmlValue
}

func pickList(apiValues, htmlValues []string) []string {
	if len(apiValues) > 0 {
		return apiValues
	}
	return htmlValues
}

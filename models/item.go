// Package models defines data structures shared across the collector.
package models

import "time"

// ItemRecord is the canonical metadata for one board game, assembled from
// the item-detail page and optionally enriched from the XML API.
//
// Numeric-looking fields (ratings, voter counts, player counts) are kept as
// raw strings; nothing in this pipeline coerces them to numbers. Fields that
// could not be resolved hold the empty string, never a nil-like sentinel.
type ItemRecord struct {
	ExternalID    string    `json:"external_id"`
	Name          string    `json:"name"`
	YearPublished string    `json:"year_published"`
	Description   string    `json:"description"`
	MinPlayers    string    `json:"min_players"`
	MaxPlayers    string    `json:"max_players"`
	PlayingTime   string    `json:"playing_time"`
	AverageRating string    `json:"average_rating"`
	NumRaters     string    `json:"num_raters"`
	GeekRating    string    `json:"geek_rating"`
	Designers     []string  `json:"designers"`
	Mechanics     []string  `json:"mechanics"`
	Categories    []string  `json:"categories"`
	SourceURL     string    `json:"source_url"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// ListingRow is a lightweight observation of one item on a listing page
// (hot list or browse page). Rows are standalone records: they are persisted
// whether or not the linked item page is ever visited.
type ListingRow struct {
	Name             string    `json:"name"`
	AbsoluteURL      string    `json:"absolute_url"`
	Rank             string    `json:"rank"`
	ChangeIndicator  string    `json:"change_indicator"`
	SourceListingURL string    `json:"source_listing_url"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

// ScrapeResult holds the overall outcome of one run.
type ScrapeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ItemCount    int
	RowCount     int
	ErrorCount   int
	RetryCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

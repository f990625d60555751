// Package bggapi talks to the BGG XML API2 for best-effort enrichment.
//
// Every failure mode (transport error, timeout, non-success status, the
// 202 "still processing" answer for not-yet-cached ids, malformed XML)
// surfaces as a nil payload plus an error describing the reason. Callers
// treat all of them the same way: no enrichment available. The error exists
// for logging and metrics, never for control flow.
package bggapi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const thingPath = "/xmlapi2/thing"

var (
	// ErrStillProcessing marks the accepted-but-not-ready response the
	// API returns for ids it has not cached yet.
	// TODO: retry with backoff once the collector grows a revisit queue;
	// today the id is simply left unenriched for this run.
	ErrStillProcessing = errors.New("bggapi: response still processing")

	// ErrEmptyResponse marks a well-formed response carrying no item.
	ErrEmptyResponse = errors.New("bggapi: no item in response")
)

// Client issues rate-limited requests against the XML API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a client for the given API origin. timeout bounds each
// request so a stalled API cannot block a page visit indefinitely.
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/xml").
		SetHeader("User-Agent", userAgent)

	// The public API asks for at most ~2 requests per second.
	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// HTTPClient exposes the underlying transport for test instrumentation.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

// FetchThing retrieves the structured representation of one item, with
// statistics included. A nil payload means no enrichment is available; the
// accompanying error says why.
func (c *Client) FetchThing(ctx context.Context, itemID string) (*Payload, error) {
	if itemID == "" {
		return nil, fmt.Errorf("bggapi: empty item id")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("bggapi: rate limit wait: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"id":    itemID,
			"stats": "1",
		}).
		Get(thingPath)
	if err != nil {
		return nil, fmt.Errorf("bggapi: fetch thing %s: %w", itemID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusAccepted:
		return nil, ErrStillProcessing
	case resp.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("bggapi: fetch thing %s: status %d", itemID, resp.StatusCode())
	}

	var env envelope
	if err := xml.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("bggapi: parse thing %s: %w", itemID, err)
	}
	if len(env.Items) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Payload{
		ItemID:    itemID,
		FetchedAt: time.Now().UTC(),
		Item:      env.Items[0],
	}, nil
}

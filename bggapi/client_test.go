package bggapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const thingXML = `<?xml version="1.0" encoding="utf-8"?>
<items termsofuse="https://example.test/xmlapi/termsofuse">
	<item type="boardgame" id="224517">
		<name type="primary" sortindex="1" value="Brass: Birmingham"/>
		<name type="alternate" sortindex="1" value="Brass. Birmingem"/>
		<yearpublished value="2018"/>
		<description>Build networks, grow industries.</description>
		<minplayers value="2"/>
		<maxplayers value="4"/>
		<playingtime value="120"/>
		<link type="boardgamecategory" id="1021" value="Economic"/>
		<link type="boardgamemechanic" id="2040" value="Hand Management"/>
		<link type="boardgamedesigner" id="28575" value="Gavan Brown"/>
		<link type="boardgamedesigner" id="39030" value="Matt Tolman"/>
		<link type="boardgamepublisher" id="27351" value="Roxley"/>
		<statistics page="1">
			<ratings>
				<usersrated value="47382"/>
				<average value="8.59863"/>
				<bayesaverage value="8.41508"/>
			</ratings>
		</statistics>
	</item>
</items>`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient("http://example.test", 5*time.Second, "bggwatch-test")
	// Tests should not pace themselves like production.
	c.limiter.SetLimit(1e6)
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestFetchThingParsesPayload(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusOK, thingXML))

	payload, err := c.FetchThing(context.Background(), "224517")
	if err != nil {
		t.Fatalf("fetch thing: %v", err)
	}
	if payload.ItemID != "224517" {
		t.Errorf("ItemID = %q", payload.ItemID)
	}
	if payload.FetchedAt.IsZero() {
		t.Errorf("FetchedAt should be set")
	}

	item := payload.Item
	if item.ID != "224517" || item.Type != "boardgame" {
		t.Errorf("item attrs = %q/%q", item.ID, item.Type)
	}
	if got := item.PrimaryName(); got != "Brass: Birmingham" {
		t.Errorf("PrimaryName = %q", got)
	}
	if item.YearPublished.Value != "2018" {
		t.Errorf("YearPublished = %q", item.YearPublished.Value)
	}
	if item.Statistics.Ratings.Average.Value != "8.59863" {
		t.Errorf("Average = %q", item.Statistics.Ratings.Average.Value)
	}
	if item.Statistics.Ratings.BayesAverage.Value != "8.41508" {
		t.Errorf("BayesAverage = %q", item.Statistics.Ratings.BayesAverage.Value)
	}
	if item.Statistics.Ratings.UsersRated.Value != "47382" {
		t.Errorf("UsersRated = %q", item.Statistics.Ratings.UsersRated.Value)
	}

	designers := item.LinksOfType(LinkTypeDesigner)
	if len(designers) != 2 || designers[0] != "Gavan Brown" {
		t.Errorf("designers = %v", designers)
	}
	if got := item.LinksOfType(LinkTypeMechanic); len(got) != 1 || got[0] != "Hand Management" {
		t.Errorf("mechanics = %v", got)
	}
	if got := item.LinksOfType(LinkTypeCategory); len(got) != 1 || got[0] != "Economic" {
		t.Errorf("categories = %v", got)
	}
	// Publisher links use a different discriminator and must not leak in.
	for _, d := range designers {
		if d == "Roxley" {
			t.Errorf("publisher leaked into designers")
		}
	}
}

func TestFetchThingStillProcessing(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusAccepted, ""))

	payload, err := c.FetchThing(context.Background(), "999")
	if payload != nil {
		t.Fatalf("payload should be nil for a processing response")
	}
	if !errors.Is(err, ErrStillProcessing) {
		t.Fatalf("err = %v, want ErrStillProcessing", err)
	}
}

func TestFetchThingServerError(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	payload, err := c.FetchThing(context.Background(), "1")
	if payload != nil || err == nil {
		t.Fatalf("want nil payload and an error, got %v, %v", payload, err)
	}
}

func TestFetchThingMalformedXML(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusOK, "<items><item"))

	payload, err := c.FetchThing(context.Background(), "1")
	if payload != nil || err == nil {
		t.Fatalf("want nil payload and an error, got %v, %v", payload, err)
	}
}

func TestFetchThingEmptyResponse(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusOK, `<items termsofuse="x"></items>`))

	payload, err := c.FetchThing(context.Background(), "1")
	if payload != nil {
		t.Fatalf("payload should be nil for an empty items list")
	}
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestFetchThingCancelledContext(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://example.test/xmlapi2/thing",
		httpmock.NewStringResponder(http.StatusOK, thingXML))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	payload, err := c.FetchThing(ctx, "1")
	if payload != nil || err == nil {
		t.Fatalf("cancelled context must yield no payload, got %v, %v", payload, err)
	}
}

func TestFetchThingEmptyID(t *testing.T) {
	c := newTestClient(t)
	if payload, err := c.FetchThing(context.Background(), ""); payload != nil || err == nil {
		t.Fatalf("empty id must be rejected")
	}
}

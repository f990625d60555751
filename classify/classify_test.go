package classify

import "testing"

func TestPage(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"https://boardgamegeek.com/boardgame/224517/brass-birmingham", ItemDetail},
		{"https://boardgamegeek.com/boardgame/224517", ItemDetail},
		{"https://boardgamegeek.com/boardgameexpansion/283355", ItemDetail},
		{"https://boardgamegeek.com/boardgameaccessory/104162/broom-service-playmat", ItemDetail},
		{"https://boardgamegeek.com/hot", Listing},
		{"https://boardgamegeek.com/browse/boardgame", Listing},
		{"https://boardgamegeek.com/boardgame/", Listing},
		{"https://boardgamegeek.com/boardgamedesigner/10/alan-r-moon", Listing},
		{"https://boardgamegeek.com/", Listing},
		{"://not a url", Listing},
		{"", Listing},
	}

	for _, tt := range tests {
		if got := Page(tt.url); got != tt.want {
			t.Errorf("Page(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestShouldFollow(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		origin    string
		mode      FollowMode
		want      bool
	}{
		{"same host", "https://example.test/boardgame/1", "example.test", SameOriginOnly, true},
		{"different host", "https://other.test/boardgame/1", "example.test", SameOriginOnly, false},
		{"relative url has no host", "/boardgame/1", "example.test", SameOriginOnly, false},
		{"unparsable", "http://exa mple.test/x", "example.test", SameOriginOnly, false},
		{"unrestricted allows cross-host", "https://other.test/boardgame/1", "example.test", Unrestricted, true},
		{"unrestricted still rejects unparsable", "http://exa mple.test/x", "example.test", Unrestricted, false},
		{"empty origin never matches", "https://example.test/x", "", SameOriginOnly, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldFollow(tt.candidate, tt.origin, tt.mode); got != tt.want {
				t.Fatalf("ShouldFollow(%q, %q, %v) = %v, want %v", tt.candidate, tt.origin, tt.mode, got, tt.want)
			}
		})
	}
}

package spotify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	spotifyapi "github.com/zmb3/spotify/v2"

	"pleia/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(r *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

// topTracksClient serves empty top tracks for the home market and one
// track for US, recording every market requested.
func topTracksClient(markets *[]string) *Client {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		market := r.URL.Query().Get("country")
		if market == "" {
			market = r.URL.Query().Get("market")
		}
		*markets = append(*markets, market)
		if market == "US" {
			return jsonResponse(r, `{"tracks":[{"id":"t1","name":"Song","uri":"spotify:track:t1","duration_ms":180000,"artists":[{"id":"aa","name":"Someone"}]}]}`), nil
		}
		return jsonResponse(r, `{"tracks":[]}`), nil
	})
	return &Client{
		api:    spotifyapi.New(&http.Client{Transport: transport}),
		market: "ES",
	}
}

func TestArtistTopTracksMarketFallbackFollowsFlag(t *testing.T) {
	t.Cleanup(config.InitFlags)

	var markets []string
	c := topTracksClient(&markets)

	t.Setenv("FEATURE_SPOTIFY_MARKET_FALLBACK", "false")
	config.InitFlags()
	tracks, err := c.ArtistTopTracks(context.Background(), "ar1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Fatalf("tracks with fallback off: got %d, want 0", len(tracks))
	}
	if len(markets) != 1 || markets[0] != "ES" {
		t.Fatalf("markets with fallback off: %v", markets)
	}

	// Same client, flag flipped at runtime: the US retry must kick in
	// without rebuilding the client.
	markets = markets[:0]
	t.Setenv("FEATURE_SPOTIFY_MARKET_FALLBACK", "true")
	config.InitFlags()
	tracks, err = c.ArtistTopTracks(context.Background(), "ar1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != "t1" {
		t.Fatalf("tracks with fallback on: %+v", tracks)
	}
	if len(markets) != 2 || markets[1] != "US" {
		t.Fatalf("markets with fallback on: %v", markets)
	}
}

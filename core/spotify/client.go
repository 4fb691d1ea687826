// Package spotify wraps the Spotify Web API behind the narrow surface the
// playlist generators need: artist resolution, top tracks, search,
// recommendations, audio features and public-playlist reads. All calls are
// read-only.
package spotify

import (
	"context"
	"errors"
	"fmt"

	"pleia/config"
	"pleia/logger"
	"pleia/model"

	"github.com/hashicorp/go-retryablehttp"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrMissingCredentials is returned when the Spotify client ID/secret are
// not configured.
var ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET")

// Client is the hub Spotify client using the client-credentials flow.
type Client struct {
	api    *spotifyapi.Client
	tokens oauth2.TokenSource

	market string
}

// NewClient builds a Client from configuration. The underlying HTTP client
// retries transient failures and the oauth2 transport refreshes the app
// token as needed.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil
	ctx = context.WithValue(ctx, oauth2.HTTPClient, retryClient.StandardClient())

	httpClient := creds.Client(ctx)
	return &Client{
		api:    spotifyapi.New(httpClient, spotifyapi.WithRetry(true)),
		tokens: creds.TokenSource(ctx),
		market: cfg.SpotifyMarket,
	}, nil
}

// Token forces a token fetch so startup and the request path can fail fast
// when hub credentials are rejected.
func (c *Client) Token(ctx context.Context) (string, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain hub access token: %w", err)
	}
	return tok.AccessToken, nil
}

// ResolveArtist searches for an artist by name and returns the best match,
// or (nil, nil) when nothing matches.
func (c *Client) ResolveArtist(ctx context.Context, name string) (*model.ResolvedArtist, error) {
	result, err := c.api.Search(ctx, name, spotifyapi.SearchTypeArtist, spotifyapi.Limit(3))
	if err != nil {
		return nil, fmt.Errorf("artist search %q failed: %w", name, err)
	}
	if result.Artists == nil || len(result.Artists.Artists) == 0 {
		return nil, nil
	}

	// Spotify orders by relevance; the first hit is the canonical match.
	best := result.Artists.Artists[0]
	return &model.ResolvedArtist{
		ID:   string(best.ID),
		Name: best.Name,
	}, nil
}

// ArtistTopTracks returns the market-scoped top tracks for an artist ID.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]model.Track, error) {
	full, err := c.api.GetArtistsTopTracks(ctx, spotifyapi.ID(artistID), c.market)
	if err != nil || len(full) == 0 {
		// Flag read per call so a hot-reload takes effect mid-process.
		if config.Flags().SpotifyMarketFallback && c.market != "US" {
			if retried, retryErr := c.api.GetArtistsTopTracks(ctx, spotifyapi.ID(artistID), "US"); retryErr == nil {
				full = retried
				err = nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("top tracks for artist %s failed: %w", artistID, err)
	}

	tracks := fromFullTracks(full)
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// SearchTracks runs a track search and normalizes the results.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]model.Track, error) {
	opts := []spotifyapi.RequestOption{spotifyapi.Limit(limit), spotifyapi.Market(c.market)}
	result, err := c.api.Search(ctx, query, spotifyapi.SearchTypeTrack, opts...)
	if err != nil {
		return nil, fmt.Errorf("track search %q failed: %w", query, err)
	}
	if result.Tracks == nil {
		return nil, nil
	}
	return fromFullTracks(result.Tracks.Tracks), nil
}

// Recommendations fetches "radio" tracks seeded by artists and/or tracks.
// Spotify accepts at most 5 seeds total; extras are dropped.
func (c *Client) Recommendations(ctx context.Context, seedArtistIDs, seedTrackIDs []string, limit int) ([]model.Track, error) {
	seeds := spotifyapi.Seeds{}
	total := 0
	for _, id := range seedArtistIDs {
		if total >= spotifyapi.MaxNumberOfSeeds {
			break
		}
		seeds.Artists = append(seeds.Artists, spotifyapi.ID(id))
		total++
	}
	for _, id := range seedTrackIDs {
		if total >= spotifyapi.MaxNumberOfSeeds {
			break
		}
		seeds.Tracks = append(seeds.Tracks, spotifyapi.ID(id))
		total++
	}
	if total == 0 {
		return nil, nil
	}

	recs, err := c.api.GetRecommendations(ctx, seeds, spotifyapi.NewTrackAttributes(),
		spotifyapi.Limit(limit), spotifyapi.Market(c.market))
	if err != nil {
		return nil, fmt.Errorf("recommendations failed: %w", err)
	}

	tracks := make([]model.Track, 0, len(recs.Tracks))
	for _, st := range recs.Tracks {
		tracks = append(tracks, fromSimpleTrack(st))
	}
	return tracks, nil
}

// GenreRecommendations fetches radio tracks seeded by genre names only.
func (c *Client) GenreRecommendations(ctx context.Context, genres []string, limit int) ([]model.Track, error) {
	if len(genres) > spotifyapi.MaxNumberOfSeeds {
		genres = genres[:spotifyapi.MaxNumberOfSeeds]
	}
	recs, err := c.api.GetRecommendations(ctx, spotifyapi.Seeds{Genres: genres},
		spotifyapi.NewTrackAttributes(), spotifyapi.Limit(limit), spotifyapi.Market(c.market))
	if err != nil {
		return nil, fmt.Errorf("genre recommendations failed: %w", err)
	}

	tracks := make([]model.Track, 0, len(recs.Tracks))
	for _, st := range recs.Tracks {
		tracks = append(tracks, fromSimpleTrack(st))
	}
	return tracks, nil
}

// AudioFeatures fetches audio features for up to 100 track IDs per call
// and returns them keyed by track ID. Missing tracks are simply absent.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]model.AudioFeatures, error) {
	out := make(map[string]model.AudioFeatures, len(trackIDs))
	const batchSize = 100

	for start := 0; start < len(trackIDs); start += batchSize {
		end := start + batchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		ids := make([]spotifyapi.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			ids = append(ids, spotifyapi.ID(id))
		}

		features, err := c.api.GetAudioFeatures(ctx, ids...)
		if err != nil {
			return out, fmt.Errorf("audio features batch failed: %w", err)
		}
		for _, f := range features {
			if f == nil {
				continue
			}
			out[string(f.ID)] = model.AudioFeatures{
				Tempo:        float64(f.Tempo),
				Energy:       float64(f.Energy),
				Danceability: float64(f.Danceability),
			}
		}
	}
	return out, nil
}

// SearchPlaylists finds public playlists matching a query, used by the
// festival consensus collector.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]model.PlaylistRef, error) {
	result, err := c.api.Search(ctx, query, spotifyapi.SearchTypePlaylist, spotifyapi.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("playlist search %q failed: %w", query, err)
	}
	if result.Playlists == nil {
		return nil, nil
	}

	refs := make([]model.PlaylistRef, 0, len(result.Playlists.Playlists))
	for _, p := range result.Playlists.Playlists {
		refs = append(refs, model.PlaylistRef{
			ID:         string(p.ID),
			Name:       p.Name,
			TrackCount: int(p.Tracks.Total),
		})
	}
	return refs, nil
}

// PlaylistTracks reads up to limit tracks from a public playlist.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]model.Track, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotifyapi.ID(playlistID), spotifyapi.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("playlist items for %s failed: %w", playlistID, err)
	}

	tracks := make([]model.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		tracks = append(tracks, fromFullTrack(*item.Track.Track))
	}
	return tracks, nil
}

// GetTrack fetches a single track, used to backfill missing metadata
// during enrichment.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*model.Track, error) {
	full, err := c.api.GetTrack(ctx, spotifyapi.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("get track %s failed: %w", trackID, err)
	}
	track := fromFullTrack(*full)
	return &track, nil
}

func fromFullTracks(full []spotifyapi.FullTrack) []model.Track {
	tracks := make([]model.Track, 0, len(full))
	for _, ft := range full {
		tracks = append(tracks, fromFullTrack(ft))
	}
	return tracks
}

func fromFullTrack(ft spotifyapi.FullTrack) model.Track {
	return fromSimpleTrack(ft.SimpleTrack)
}

func fromSimpleTrack(st spotifyapi.SimpleTrack) model.Track {
	artists := make([]model.TrackArtist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, model.TrackArtist{ID: string(a.ID), Name: a.Name})
	}

	track := model.Track{
		ID:         string(st.ID),
		Name:       st.Name,
		URI:        string(st.URI),
		Artists:    artists,
		DurationMS: int(st.Duration),
	}
	if track.URI == "" && track.ID != "" {
		track.URI = "spotify:track:" + track.ID
	}
	if track.ID == "" {
		logger.Debug("[Spotify] Dropping track without ID", logger.String("name", st.Name))
	}
	return track
}

// Package playlist implements the multi-phase playlist assembly pipeline:
// mode selection, the four mode generators, chunked generation and
// post-processing. The heavy lifting lives in the ARTIST_STYLE generator
// (artiststyle.go) and its quota/matching helpers.
package playlist

import (
	"context"

	"pleia/model"
)

// Source is the read-only track source the generators draw from. The
// production implementation is core/spotify.Client; tests use fakes.
type Source interface {
	ResolveArtist(ctx context.Context, name string) (*model.ResolvedArtist, error)
	ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]model.Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]model.Track, error)
	Recommendations(ctx context.Context, seedArtistIDs, seedTrackIDs []string, limit int) ([]model.Track, error)
	GenreRecommendations(ctx context.Context, genres []string, limit int) ([]model.Track, error)
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]model.AudioFeatures, error)
	SearchPlaylists(ctx context.Context, query string, limit int) ([]model.PlaylistRef, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]model.Track, error)
	GetTrack(ctx context.Context, trackID string) (*model.Track, error)
}

// Mode is a generation strategy.
type Mode string

const (
	ModeNormal      Mode = "NORMAL"
	ModeViral       Mode = "VIRAL"
	ModeFestival    Mode = "FESTIVAL"
	ModeArtistStyle Mode = "ARTIST_STYLE"

	// Produced by the intent endpoint but never terminal here; remapped
	// by DetermineMode.
	modeUndergroundStrict = "UNDERGROUND_STRICT"
)

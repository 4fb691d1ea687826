package model

// TrackArtist is one credited artist on a track. The ID may be empty when
// the track came from a source that only knows artist names.
type TrackArtist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AudioFeatures carries the subset of Spotify audio analysis the
// post-processing stage uses.
type AudioFeatures struct {
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
}

// Track is a playlist candidate normalized from the Spotify Web API or
// from LLM-proposed candidates. Identity is the Spotify track ID; a track
// without an ID is unusable and dropped at every dedup boundary. Tracks
// are value objects: after enrichment they are only mutated to attach
// audio features or to backfill missing artist credits.
type Track struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	URI           string         `json:"uri"`
	Artists       []TrackArtist  `json:"artists"`
	DurationMS    int            `json:"duration_ms"`
	AudioFeatures *AudioFeatures `json:"audio_features,omitempty"`
}

// PrimaryArtist returns the first credited artist name, or "".
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtistNames returns all credited artist names.
func (t *Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// HasArtistID reports whether any credited artist carries the given
// Spotify artist ID.
func (t *Track) HasArtistID(id string) bool {
	if id == "" {
		return false
	}
	for _, a := range t.Artists {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Valid reports whether the track is complete enough for final output.
func (t *Track) Valid() bool {
	return t.ID != "" && t.URI != "" && t.Name != ""
}

// PlaylistRef points at a public Spotify playlist used by the festival
// consensus collector.
type PlaylistRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"trackCount"`
}

package playlist

import (
	"testing"

	"pleia/model"
)

func TestNormalizeForComparison(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sén Señor", "sensenor"},
		{"MD BEATZ", "mdbeatz"},
		{"  Dua  Lipa  ", "dualipa"},
		{"C. Tangana", "ctangana"},
		{"ROSALÍA", "rosalia"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeForComparison(tt.in); got != tt.want {
			t.Errorf("normalize(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChainMatcher(t *testing.T) {
	track := func(artists ...model.TrackArtist) *model.Track {
		return &model.Track{ID: "t1", Name: "x", URI: "spotify:track:t1", Artists: artists}
	}

	m := NewChainMatcher(true)

	tests := []struct {
		name       string
		track      *model.Track
		artistID   string
		artistName string
		want       MatchResult
	}{
		{
			name:       "id match",
			track:      track(model.TrackArtist{ID: "a1", Name: "Someone Else"}),
			artistID:   "a1",
			artistName: "Quevedo",
			want:       MatchID,
		},
		{
			name:       "normalized name match",
			track:      track(model.TrackArtist{ID: "zz", Name: "ROSALÍA"}),
			artistID:   "a2",
			artistName: "Rosalia",
			want:       MatchName,
		},
		{
			name:       "containment for stylized spelling",
			track:      track(model.TrackArtist{ID: "zz", Name: "MDBEATZ oficial"}),
			artistID:   "a3",
			artistName: "MDBEATZ",
			want:       MatchContainment,
		},
		{
			name:       "short containment rejected",
			track:      track(model.TrackArtist{ID: "zz", Name: "Duality"}),
			artistID:   "a4",
			artistName: "Dua",
			want:       MatchNone,
		},
		{
			name:       "no relation",
			track:      track(model.TrackArtist{ID: "zz", Name: "Bad Bunny"}),
			artistID:   "a5",
			artistName: "Quevedo",
			want:       MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.track, tt.artistID, tt.artistName)
			if got != tt.want {
				t.Fatalf("match: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChainMatcherWithoutIDs(t *testing.T) {
	m := NewChainMatcher(false)
	tr := &model.Track{ID: "t1", Artists: []model.TrackArtist{{ID: "a1", Name: "Quevedo"}}}

	// ID tier disabled: even a matching ID must go through the name chain.
	if got := m.Match(tr, "a1", "Quevedo"); got != MatchName {
		t.Fatalf("expected name match, got %s", got)
	}
}

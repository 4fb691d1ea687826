package playlist

import (
	"strings"

	"pleia/model"
)

// DedupeByID removes tracks with duplicate or missing IDs, keeping first
// occurrences. Applied at every merge point.
func DedupeByID(tracks []model.Track) []model.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]model.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// PassesExclusions reports whether a track survives the banned-artist and
// banned-term filters. Artist matching is case-insensitive on the primary
// credit; term matching is case-insensitive substring containment on the
// track name.
func PassesExclusions(track *model.Track, exclusions model.Exclusions) bool {
	primary := strings.ToLower(track.PrimaryArtist())
	for _, banned := range exclusions.BannedArtists {
		if banned != "" && primary == strings.ToLower(banned) {
			return false
		}
	}

	name := strings.ToLower(track.Name)
	for _, term := range exclusions.BannedTerms {
		if term != "" && strings.Contains(name, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// FilterExcluded drops tracks that fail the exclusion filters.
func FilterExcluded(tracks []model.Track, exclusions model.Exclusions) []model.Track {
	out := make([]model.Track, 0, len(tracks))
	for i := range tracks {
		if PassesExclusions(&tracks[i], exclusions) {
			out = append(out, tracks[i])
		}
	}
	return out
}

// Truncate limits the list to at most n tracks.
func Truncate(tracks []model.Track, n int) []model.Track {
	if n >= 0 && len(tracks) > n {
		return tracks[:n]
	}
	return tracks
}

package playlist

import (
	"context"

	"pleia/logger"
	"pleia/model"
)

// resolvedSet is the outcome of artist resolution: the deduplicated
// artists plus the alias map from Spotify ID to every raw prompt
// spelling that landed on it.
type resolvedSet struct {
	Artists []model.ResolvedArtist
	Aliases map[string][]string
	// Strict is false when resolution was skipped and Artists carry
	// raw names with empty IDs.
	Strict bool
}

// resolveArtistsWithDeduplication maps the prompt's artist names to
// canonical Spotify artists. Two spellings that resolve to the same ID
// collapse into one entry. A name Spotify cannot find is kept as a raw
// id-less entry so its quota is not silently dropped. With strict
// resolution off, every name passes through untouched.
func resolveArtistsWithDeduplication(ctx context.Context, src Source, names []string, strict bool) *resolvedSet {
	set := &resolvedSet{Aliases: make(map[string][]string), Strict: strict}

	if !strict {
		seen := make(map[string]bool)
		for _, name := range names {
			key := NormalizeForComparison(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			set.Artists = append(set.Artists, model.ResolvedArtist{Name: name})
		}
		return set
	}

	byID := make(map[string]int)
	seenRaw := make(map[string]bool)
	for _, name := range names {
		key := NormalizeForComparison(name)
		if key == "" || seenRaw[key] {
			continue
		}
		seenRaw[key] = true

		artist, err := src.ResolveArtist(ctx, name)
		if err != nil || artist == nil {
			if err != nil {
				logger.Warn("[Playlist] artist resolution failed",
					logger.String("name", name),
					logger.ErrorField(err),
				)
			} else {
				logger.Debug("[Playlist] artist not found", logger.String("name", name))
			}
			set.Artists = append(set.Artists, model.ResolvedArtist{Name: name})
			continue
		}

		if idx, ok := byID[artist.ID]; ok {
			set.Aliases[artist.ID] = append(set.Aliases[artist.ID], name)
			logger.Debug("[Playlist] artist alias collapsed",
				logger.String("alias", name),
				logger.String("canonical", set.Artists[idx].Name),
			)
			continue
		}
		byID[artist.ID] = len(set.Artists)
		set.Artists = append(set.Artists, *artist)
		set.Aliases[artist.ID] = append(set.Aliases[artist.ID], name)
	}
	return set
}

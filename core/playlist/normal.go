package playlist

import (
	"context"
	"fmt"
	"regexp"

	"pleia/logger"
	"pleia/model"
)

var (
	inclusivePattern   = regexp.MustCompile(`(?i)\b(con artistas como|incluye|incluyendo|algo de|algunas de|with some|including)\b`)
	restrictivePattern = regexp.MustCompile(`(?i)\b(solo|sólo|solamente|only|exclusivamente|únicamente)\b`)
	undergroundPattern = regexp.MustCompile(`(?i)underground`)
)

// generateNormal is the baseline generator and the fallback target of
// every other mode. LLM-proposed tracks are resolved by search, then
// padded with radio recommendations seeded by the LLM's artists.
func (e *Engine) generateNormal(ctx context.Context, intent *model.Intent, prompt string, target int) ([]model.Track, error) {
	if intent != nil && intent.HasContext("underground_es") &&
		(len(intent.FilteredArtists) > 0 || undergroundPattern.MatchString(prompt)) {
		return e.searchUndergroundTracks(ctx, intent, prompt, target)
	}

	var tracks []model.Track

	for _, proposed := range intentTracks(intent) {
		if len(tracks) >= target {
			break
		}
		query := proposed.Name
		if a := proposed.PrimaryArtist(); a != "" {
			query = fmt.Sprintf("track:%s artist:%s", proposed.Name, a)
		}
		found, err := e.source.SearchTracks(ctx, query, 1)
		if err != nil {
			logger.Warn("[Playlist] track search failed",
				logger.String("query", query), logger.ErrorField(err))
			continue
		}
		tracks = append(tracks, found...)
	}

	if len(tracks) < target {
		seeds := e.artistSeeds(ctx, intentArtists(intent))
		if len(seeds) > 0 {
			radio, err := e.source.Recommendations(ctx, seeds, nil, target-len(tracks)+10)
			if err != nil {
				logger.Warn("[Playlist] radio recommendations failed", logger.ErrorField(err))
			} else {
				tracks = append(tracks, radio...)
			}
		}
	}

	tracks = DedupeByID(tracks)
	tracks = FilterExcluded(tracks, exclusionsOf(intent))
	return Truncate(tracks, target), nil
}

// searchUndergroundTracks handles the Spanish-underground context with a
// direct per-artist search strategy. The prompt selects the sub-mode:
// inclusive mixes filtered artists with generic results, restrictive
// draws from the filtered artists only, neutral round-robins them.
func (e *Engine) searchUndergroundTracks(ctx context.Context, intent *model.Intent, prompt string, target int) ([]model.Track, error) {
	artists := intent.FilteredArtists
	if len(artists) == 0 {
		artists = intent.ArtistsLLM
	}

	subMode := "neutral"
	switch {
	case restrictivePattern.MatchString(prompt):
		subMode = "restrictive"
	case inclusivePattern.MatchString(prompt):
		subMode = "inclusive"
	}
	logger.Info("[Playlist] underground search",
		logger.String("sub_mode", subMode),
		logger.Int("artists", len(artists)),
	)

	perArtist := target
	if n := len(artists); n > 0 {
		perArtist = (target + n - 1) / n
	}
	if subMode == "inclusive" {
		// Leave roughly half the playlist to generic results.
		perArtist = (perArtist + 1) / 2
	}

	var tracks []model.Track
	pools := make([][]model.Track, 0, len(artists))
	for _, name := range artists {
		found, err := e.source.SearchTracks(ctx, "artist:"+name, perArtist+2)
		if err != nil {
			logger.Warn("[Playlist] underground artist search failed",
				logger.String("artist", name), logger.ErrorField(err))
			continue
		}
		pools = append(pools, found)
	}

	// Round-robin across artist pools so no single artist front-loads
	// the playlist.
	for i := 0; ; i++ {
		advanced := false
		for _, pool := range pools {
			if i < len(pool) {
				tracks = append(tracks, pool[i])
				advanced = true
			}
		}
		if !advanced || len(tracks) >= target*2 {
			break
		}
	}

	if subMode == "inclusive" && len(tracks) < target {
		base := prompt
		if intent.Canonized != nil && intent.Canonized.BaseQuery != "" {
			base = intent.Canonized.BaseQuery
		}
		generic, err := e.source.SearchTracks(ctx, base, target-len(tracks)+5)
		if err != nil {
			logger.Warn("[Playlist] underground generic search failed", logger.ErrorField(err))
		} else {
			tracks = append(tracks, generic...)
		}
	}

	tracks = DedupeByID(tracks)
	tracks = FilterExcluded(tracks, intent.Exclusions)
	return Truncate(tracks, target), nil
}

// artistSeeds resolves up to five artist names into seed IDs,
// swallowing per-name failures.
func (e *Engine) artistSeeds(ctx context.Context, names []string) []string {
	var seeds []string
	for _, name := range names {
		if len(seeds) >= 5 {
			break
		}
		artist, err := e.source.ResolveArtist(ctx, name)
		if err != nil || artist == nil || artist.ID == "" {
			continue
		}
		seeds = append(seeds, artist.ID)
	}
	return seeds
}

func intentTracks(intent *model.Intent) []model.Track {
	if intent == nil {
		return nil
	}
	return intent.TracksLLM
}

func intentArtists(intent *model.Intent) []string {
	if intent == nil {
		return nil
	}
	return intent.ArtistsLLM
}

func exclusionsOf(intent *model.Intent) model.Exclusions {
	if intent == nil {
		return model.Exclusions{}
	}
	return intent.Exclusions
}

package playlist

import (
	"context"

	"pleia/logger"
	"pleia/model"
)

// Last-resort genre seeds for the viral top-up chain.
var viralFallbackGenres = []string{"pop", "hip hop", "electronic"}

// generateViral merges LLM picks with radio recommendations and tops up
// through three stages when short. Fail-safe: any hard failure yields an
// empty list rather than an error, the caller degrades gracefully.
func (e *Engine) generateViral(ctx context.Context, intent *model.Intent, target int) []model.Track {
	var tracks []model.Track
	var spare []model.Track

	for _, proposed := range intentTracks(intent) {
		query := proposed.Name
		if a := proposed.PrimaryArtist(); a != "" {
			query = "track:" + proposed.Name + " artist:" + a
		}
		found, err := e.source.SearchTracks(ctx, query, 1)
		if err != nil {
			logger.Warn("[Playlist] viral track search failed",
				logger.String("query", query), logger.ErrorField(err))
			continue
		}
		if len(tracks) < target {
			tracks = append(tracks, found...)
		} else {
			spare = append(spare, found...)
		}
	}

	seeds := e.artistSeeds(ctx, intentArtists(intent))
	if len(seeds) > 0 {
		radio, err := e.source.Recommendations(ctx, seeds, nil, target)
		if err != nil {
			logger.Warn("[Playlist] viral radio failed", logger.ErrorField(err))
		} else {
			tracks = append(tracks, radio...)
		}
	}
	tracks = DedupeByID(tracks)

	// Top-up stage 1: unused LLM candidates.
	if len(tracks) < target && len(spare) > 0 {
		tracks = DedupeByID(append(tracks, spare...))
	}

	// Stage 2: more radio.
	if len(tracks) < target && len(seeds) > 0 {
		more, err := e.source.Recommendations(ctx, seeds, nil, (target-len(tracks))*2)
		if err != nil {
			logger.Warn("[Playlist] viral radio top-up failed", logger.ErrorField(err))
		} else {
			tracks = DedupeByID(append(tracks, more...))
		}
	}

	// Stage 3: generic genre seeds, last resort.
	if len(tracks) < target {
		generic, err := e.source.GenreRecommendations(ctx, viralFallbackGenres, target-len(tracks))
		if err != nil {
			logger.Warn("[Playlist] viral genre fallback failed", logger.ErrorField(err))
		} else {
			tracks = DedupeByID(append(tracks, generic...))
		}
	}

	tracks = FilterExcluded(tracks, exclusionsOf(intent))
	return Truncate(tracks, target)
}

package playlist

import (
	"context"
	"fmt"
	"sort"

	"pleia/logger"
	"pleia/model"
)

// generateFestival builds a lineup playlist by consensus over public
// playlists matching the festival name and year. Requires a canonized
// intent; without one it falls back to NORMAL.
func (e *Engine) generateFestival(ctx context.Context, intent *model.Intent, prompt string, target int) ([]model.Track, error) {
	if intent == nil || intent.Canonized == nil || intent.Canonized.BaseQuery == "" || intent.Canonized.Year == 0 {
		logger.Info("[Playlist] festival intent not canonized, using NORMAL")
		return e.generateNormal(ctx, intent, prompt, target)
	}

	tracks, err := e.collectFromPlaylistsByConsensus(ctx, intent.Canonized.BaseQuery, intent.Canonized.Year, target)
	if err != nil {
		logger.Warn("[Playlist] festival consensus failed", logger.ErrorField(err))
		return e.generateNormal(ctx, intent, prompt, target)
	}
	if len(tracks) == 0 {
		return e.generateNormal(ctx, intent, prompt, target)
	}

	tracks = FilterExcluded(tracks, intent.Exclusions)
	return Truncate(tracks, target), nil
}

// collectFromPlaylistsByConsensus searches public playlists for the
// festival query, samples their contents and ranks tracks by how many
// independent playlists carry them. Ties break by first appearance so
// the output stays stable for a given playlist set.
func (e *Engine) collectFromPlaylistsByConsensus(ctx context.Context, baseQuery string, year, target int) ([]model.Track, error) {
	query := fmt.Sprintf("%s %d", baseQuery, year)
	playlists, err := e.source.SearchPlaylists(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, nil
	}

	type vote struct {
		track model.Track
		count int
		first int
	}
	votes := make(map[string]*vote)
	order := 0

	for _, pl := range playlists {
		items, err := e.source.PlaylistTracks(ctx, pl.ID, 100)
		if err != nil {
			logger.Warn("[Playlist] playlist fetch failed",
				logger.String("playlist", pl.ID), logger.ErrorField(err))
			continue
		}
		seenHere := make(map[string]bool)
		for _, t := range items {
			if t.ID == "" || seenHere[t.ID] {
				continue
			}
			seenHere[t.ID] = true
			if v, ok := votes[t.ID]; ok {
				v.count++
			} else {
				votes[t.ID] = &vote{track: t, count: 1, first: order}
				order++
			}
		}
	}

	ranked := make([]*vote, 0, len(votes))
	for _, v := range votes {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	out := make([]model.Track, 0, target)
	for _, v := range ranked {
		if len(out) >= target {
			break
		}
		out = append(out, v.track)
	}
	logger.Info("[Playlist] festival consensus",
		logger.String("query", query),
		logger.Int("playlists", len(playlists)),
		logger.Int("candidates", len(votes)),
		logger.Int("selected", len(out)),
	)
	return out, nil
}

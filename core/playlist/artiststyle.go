package playlist

import (
	"context"
	"strings"

	"pleia/config"
	"pleia/logger"
	"pleia/model"
)

// Placeholder credits that never count as real collaborators.
var placeholderArtists = map[string]bool{
	"various artists":     true,
	"varios artistas":     true,
	"original cast":       true,
	"soundtrack":          true,
	"karaoke":             true,
	"tribute":             true,
	"unknown artist":      true,
	"artista desconocido": true,
}

// generateArtistStyle builds a playlist dominated by the prompt's
// priority artists. Buckets are processed strictly sequentially: the
// quota state (seen set, counters, bucket fills) is shared and
// unsynchronized, so one bucket finishes its fan-out before the next
// starts.
func (e *Engine) generateArtistStyle(ctx context.Context, intent *model.Intent, prompt string, target int) ([]model.Track, error) {
	if intent == nil || len(intent.PriorityArtists) == 0 {
		logger.Info("[Playlist] no priority artists, using NORMAL")
		return e.generateNormal(ctx, intent, prompt, target)
	}

	flags := config.Flags()

	resolved := resolveArtistsWithDeduplication(ctx, e.source, intent.PriorityArtists, flags.ArtistResolverStrict)
	if len(resolved.Artists) == 0 {
		logger.Info("[Playlist] no artists resolved, using NORMAL")
		return e.generateNormal(ctx, intent, prompt, target)
	}

	if !flags.MultiArtistFanout && len(resolved.Artists) > 1 {
		resolved.Artists = resolved.Artists[:1]
	}

	special := detectSpecialCases(prompt)
	caps := calculateDynamicCaps(target, len(resolved.Artists), e.priorityCap, e.nonPriorityCap, special)
	dist := calculateMultiArtistDistribution(target, resolved.Artists, resolved.Aliases, caps)

	sc := newStyleContext(dist, NewChainMatcher(flags.ArtistResolverStrict), intent.Exclusions, flags)

	// Fan-out: each bucket fills its own quota regardless of global
	// progress, so a late artist is never starved by an early one.
	for _, b := range dist.Buckets {
		e.fanOutBucket(ctx, sc, b)
	}

	if flags.SmartCompensation && sc.total() < target {
		e.compensate(ctx, sc, intent, target)
	}

	logger.Info("[Playlist] artist style build done",
		logger.Int("collected", sc.total()),
		logger.Int("target", target),
		logger.Int("skipped_cap", sc.skippedCap),
		logger.Int("skipped_excluded", sc.skippedExcluded),
		logger.Int("skipped_membership", sc.skippedMembership),
	)

	tracks := DedupeByID(sc.all)
	tracks = FilterExcluded(tracks, intent.Exclusions)
	tracks = Truncate(tracks, target)
	if len(tracks) == 0 {
		logger.Warn("[Playlist] artist style yielded nothing, using NORMAL")
		return e.generateNormal(ctx, intent, prompt, target)
	}
	return tracks, nil
}

// fanOutBucket runs the three-tier candidate chain for one bucket:
// top tracks, radio seeded from the top tracks, raw name search. Errors
// are logged and the chain moves on; nothing here aborts the request.
func (e *Engine) fanOutBucket(ctx context.Context, sc *styleContext, b *Bucket) {
	needed := b.Deficit()
	if needed == 0 {
		return
	}
	fetchLimit := needed * 3
	if fetchLimit > 10 {
		fetchLimit = 10
	}

	var top []model.Track
	var err error
	if b.ArtistID != "" {
		top, err = e.source.ArtistTopTracks(ctx, b.ArtistID, fetchLimit)
	} else {
		top, err = e.source.SearchTracks(ctx, "artist:"+b.ArtistName, fetchLimit)
	}
	if err != nil {
		logger.Warn("[Playlist] top tracks failed",
			logger.String("artist", b.ArtistName), logger.ErrorField(err))
	}
	for i := range top {
		if b.Full() {
			break
		}
		sc.addTrackWithCap(top[i], b, sc.dist.PerPriorityCap, true)
	}

	if !b.Full() && len(top) > 0 {
		seeds := make([]string, 0, 3)
		for _, t := range top {
			if len(seeds) == 3 {
				break
			}
			if t.ID != "" {
				seeds = append(seeds, t.ID)
			}
		}
		radio, err := e.source.Recommendations(ctx, nil, seeds, fetchLimit)
		if err != nil {
			logger.Warn("[Playlist] bucket radio failed",
				logger.String("artist", b.ArtistName), logger.ErrorField(err))
		}
		for i := range radio {
			if b.Full() {
				break
			}
			sc.addTrackWithCap(radio[i], b, sc.dist.PerPriorityCap, true)
		}
	}

	if !b.Full() {
		found, err := e.source.SearchTracks(ctx, "artist:"+b.ArtistName, fetchLimit)
		if err != nil {
			logger.Warn("[Playlist] bucket search failed",
				logger.String("artist", b.ArtistName), logger.ErrorField(err))
		}
		for i := range found {
			if b.Full() {
				break
			}
			sc.addTrackWithCap(found[i], b, sc.dist.PerPriorityCap, true)
		}
	}

	logger.Debug("[Playlist] bucket fan-out done",
		logger.String("artist", b.ArtistName),
		logger.Int("current", b.Current),
		logger.Int("target", b.Target),
	)
}

// compensate recovers a post-fan-out shortfall: priority bucket top-ups
// first, then one collaborator round-robin pass for the remainder.
func (e *Engine) compensate(ctx context.Context, sc *styleContext, intent *model.Intent, target int) {
	plan := calculateCompensationPlan(sc.dist, target-sc.total())
	logger.Info("[Playlist] compensation plan",
		logger.Int("missing", target-sc.total()),
		logger.Int("actions", len(plan)),
	)

	for _, action := range plan {
		switch action.Type {
		case compPriority:
			b := sc.dist.Buckets[action.BucketIdx]
			found, err := e.source.SearchTracks(ctx, "artist:"+b.ArtistName, action.Target*2)
			if err != nil {
				logger.Warn("[Playlist] compensation search failed",
					logger.String("artist", b.ArtistName), logger.ErrorField(err))
				continue
			}
			added := 0
			for i := range found {
				if added >= action.Target || b.Full() {
					break
				}
				if sc.addTrackWithCap(found[i], b, sc.dist.PerPriorityCap, true) {
					added++
				}
			}
		case compNonPriority:
			e.fillFromCollaborators(ctx, sc, target)
		}
		if sc.total() >= target {
			return
		}
	}
}

// fillFromCollaborators mines the already-collected tracks for real
// featured collaborators and round-robins one track per collaborator per
// pass. Priority-artist credit is forbidden here; a priority artist is
// never its own collaborator.
func (e *Engine) fillFromCollaborators(ctx context.Context, sc *styleContext, target int) {
	collaborators := e.collectCollaborators(sc)
	if len(collaborators) == 0 {
		e.radioSeededFallback(ctx, sc, target)
		return
	}

	// Pool depth follows the leftover share once every priority artist
	// has its capped allotment.
	distinct := len(sc.dist.Buckets)
	if distinct == 0 {
		distinct = 1
	}
	perCollaborator := (target - sc.dist.PerPriorityCap*distinct) / distinct
	if perCollaborator < 1 {
		perCollaborator = 1
	}

	pools := make([][]model.Track, 0, len(collaborators))
	for _, name := range collaborators {
		found, err := e.source.SearchTracks(ctx, "artist:"+name, perCollaborator)
		if err != nil {
			logger.Warn("[Playlist] collaborator search failed",
				logger.String("artist", name), logger.ErrorField(err))
			continue
		}
		pools = append(pools, found)
	}

	// One track per collaborator per pass, never draining a single
	// pool while others wait.
	for pass := 0; sc.total() < target; pass++ {
		advanced := false
		for _, pool := range pools {
			if sc.total() >= target {
				return
			}
			if pass >= len(pool) {
				continue
			}
			advanced = true
			sc.addTrackWithCap(pool[pass], nil, sc.dist.NonPriorityCap, false)
		}
		if !advanced {
			break
		}
	}
}

// collectCollaborators lists featured artists seen on collected priority
// tracks, skipping the priority artists themselves, placeholder credits
// and anyone already at the collaborator cap. Capped at 10 candidates.
func (e *Engine) collectCollaborators(sc *styleContext) []string {
	priority := make(map[string]bool)
	for _, b := range sc.dist.Buckets {
		priority[NormalizeForComparison(b.ArtistName)] = true
		for _, alias := range b.OriginalNames {
			priority[NormalizeForComparison(alias)] = true
		}
	}

	var out []string
	seen := make(map[string]bool)
	for i := range sc.all {
		for _, a := range sc.all[i].Artists {
			key := NormalizeForComparison(a.Name)
			if key == "" || seen[key] || priority[key] {
				continue
			}
			if placeholderArtists[strings.ToLower(strings.TrimSpace(a.Name))] {
				continue
			}
			if sc.counters[key] >= sc.dist.NonPriorityCap {
				continue
			}
			seen[key] = true
			out = append(out, a.Name)
			if len(out) == 10 {
				return out
			}
		}
	}
	return out
}

// radioSeededFallback covers the no-collaborators case: seed a radio
// lookup from five collected priority tracks and filter its results the
// same way the collaborator pass would.
func (e *Engine) radioSeededFallback(ctx context.Context, sc *styleContext, target int) {
	seeds := make([]string, 0, 5)
	for i := range sc.all {
		if len(seeds) == 5 {
			break
		}
		if sc.all[i].ID != "" {
			seeds = append(seeds, sc.all[i].ID)
		}
	}
	if len(seeds) == 0 {
		return
	}
	radio, err := e.source.Recommendations(ctx, nil, seeds, target-sc.total()+5)
	if err != nil {
		logger.Warn("[Playlist] radio fallback failed", logger.ErrorField(err))
		return
	}
	for i := range radio {
		if sc.total() >= target {
			return
		}
		sc.addTrackWithCap(radio[i], nil, sc.dist.NonPriorityCap, false)
	}
}

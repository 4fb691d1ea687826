package playlist

import (
	"pleia/config"
	"pleia/logger"
	"pleia/model"
)

// styleContext is the mutable build state for one ARTIST_STYLE request.
// It is confined to the request goroutine; every candidate, whatever
// stage produced it, goes through addTrackWithCap.
type styleContext struct {
	dist       *distribution
	matcher    ArtistMatcher
	exclusions model.Exclusions
	flags      config.FeatureFlags

	seen     map[string]bool
	counters map[string]int
	all      []model.Track

	skippedCap        int
	skippedExcluded   int
	skippedMembership int
}

func newStyleContext(dist *distribution, matcher ArtistMatcher, excl model.Exclusions, flags config.FeatureFlags) *styleContext {
	return &styleContext{
		dist:       dist,
		matcher:    matcher,
		exclusions: excl,
		flags:      flags,
		seen:       make(map[string]bool),
		counters:   make(map[string]int),
	}
}

func (c *styleContext) total() int { return len(c.all) }

// addTrackWithCap is the only way a track enters the build. bucket may
// be nil for collaborator-pass candidates, which then skip the
// membership check but still face dedup, exclusions and the cap.
// priorityCredit controls whether a priority-artist track may be
// accepted outside its bucket (the collaborator pass forbids it).
func (c *styleContext) addTrackWithCap(track model.Track, bucket *Bucket, limit int, priorityCredit bool) bool {
	if track.ID == "" {
		return false
	}
	if c.seen[track.ID] {
		return false
	}
	if !PassesExclusions(&track, c.exclusions) {
		c.skippedExcluded++
		return false
	}

	if bucket != nil {
		res := c.matcher.Match(&track, bucket.ArtistID, bucket.ArtistName)
		if res == MatchNone {
			for _, alias := range bucket.OriginalNames {
				if r := c.matcher.Match(&track, "", alias); r != MatchNone {
					res = r
					break
				}
			}
		}
		switch res {
		case MatchNone:
			c.skippedMembership++
			logger.Debug("[Playlist] bucket_mismatch",
				logger.String("bucket", bucket.ArtistName),
				logger.String("track", track.Name),
				logger.String("track_artist", track.PrimaryArtist()),
			)
			return false
		case MatchContainment:
			logger.Debug("[Playlist] bucket_match_fallback",
				logger.String("bucket", bucket.ArtistName),
				logger.String("track", track.Name),
				logger.String("track_artist", track.PrimaryArtist()),
			)
		}
	} else if !priorityCredit {
		// Collaborator slots never credit a priority artist.
		for _, b := range c.dist.Buckets {
			if c.matcher.Match(&track, b.ArtistID, b.ArtistName) != MatchNone {
				return false
			}
		}
	}

	if c.flags.EnforceCapsDuringBuild && !checkCapInTime(c.counters, &track, limit) {
		c.skippedCap++
		return false
	}

	if bucket != nil && bucket.Full() {
		return false
	}

	c.seen[track.ID] = true
	c.counters[NormalizeForComparison(track.PrimaryArtist())]++
	c.all = append(c.all, track)
	if bucket != nil {
		bucket.Current++
		bucket.Adds = append(bucket.Adds, track.ID)
	}
	return true
}

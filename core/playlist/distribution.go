package playlist

import (
	"regexp"

	"pleia/logger"
	"pleia/model"
)

// SpecialCases carries per-request overrides detected from the prompt.
type SpecialCases struct {
	// OnlyArtists means the prompt asked for the named artists
	// exclusively, so collaborator slots drop to zero.
	OnlyArtists bool
}

var exclusivityPattern = regexp.MustCompile(`(?i)\b(solo|sólo|solamente|only|exclusivamente|únicamente)\b`)

// detectSpecialCases scans the prompt for exclusivity cues.
func detectSpecialCases(prompt string) SpecialCases {
	return SpecialCases{OnlyArtists: exclusivityPattern.MatchString(prompt)}
}

// DynamicCaps are the per-artist acceptance limits for one request.
type DynamicCaps struct {
	PerPriority int
	NonPriority int
}

// calculateDynamicCaps sizes the caps from the target length and the
// number of distinct priority artists. An exclusivity prompt lifts the
// priority cap to the fair share and zeroes collaborator slots.
func calculateDynamicCaps(target, distinct, defaultPriority, defaultNonPriority int, special SpecialCases) DynamicCaps {
	if distinct < 1 {
		distinct = 1
	}
	fair := (target + distinct - 1) / distinct

	per := fair
	if per < 3 {
		per = 3
	}
	if special.OnlyArtists {
		if per < fair {
			per = fair
		}
		return DynamicCaps{PerPriority: per, NonPriority: 0}
	}
	if per > defaultPriority {
		per = defaultPriority
	}
	return DynamicCaps{PerPriority: per, NonPriority: defaultNonPriority}
}

// Bucket tracks the quota state for one priority artist.
type Bucket struct {
	Idx        int
	ArtistID   string
	ArtistName string
	// OriginalNames holds every raw prompt spelling that resolved to
	// this artist, so membership checks can try aliases too.
	OriginalNames []string
	Target        int
	Cap           int
	Current       int
	Adds          []string
}

// Full reports whether the bucket reached its planned target.
func (b *Bucket) Full() bool { return b.Current >= b.Target }

// Deficit is how many tracks the bucket still owes the plan.
func (b *Bucket) Deficit() int {
	if d := b.Target - b.Current; d > 0 {
		return d
	}
	return 0
}

type distribution struct {
	Buckets         []*Bucket
	PerPriorityCap  int
	NonPriorityCap  int
	CollaboratorCut int
}

// calculateMultiArtistDistribution splits the target across the resolved
// artists. Each bucket gets the even share (remainder to the first
// buckets), clamped to the per-artist cap; whatever the clamps free up is
// the collaborator cut.
func calculateMultiArtistDistribution(target int, artists []model.ResolvedArtist, aliases map[string][]string, caps DynamicCaps) *distribution {
	n := len(artists)
	d := &distribution{
		PerPriorityCap: caps.PerPriority,
		NonPriorityCap: caps.NonPriority,
	}
	if n == 0 {
		d.CollaboratorCut = target
		return d
	}

	base := target / n
	rem := target % n
	planned := 0
	for i, a := range artists {
		bt := base
		if i < rem {
			bt++
		}
		if bt > caps.PerPriority {
			bt = caps.PerPriority
		}
		b := &Bucket{
			Idx:           i,
			ArtistID:      a.ID,
			ArtistName:    a.Name,
			OriginalNames: aliases[a.ID],
			Target:        bt,
			Cap:           caps.PerPriority,
		}
		d.Buckets = append(d.Buckets, b)
		planned += bt
	}
	d.CollaboratorCut = target - planned

	logger.Debug("[Playlist] distribution plan",
		logger.Int("target", target),
		logger.Int("artists", n),
		logger.Int("per_priority_cap", caps.PerPriority),
		logger.Int("non_priority_cap", caps.NonPriority),
		logger.Int("collaborator_cut", d.CollaboratorCut),
		logger.Any("buckets", bucketSummaries(d.Buckets)),
	)
	return d
}

type bucketSummary struct {
	Artist string `json:"artist"`
	Target int    `json:"target"`
}

func bucketSummaries(buckets []*Bucket) []bucketSummary {
	out := make([]bucketSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketSummary{Artist: b.ArtistName, Target: b.Target})
	}
	return out
}

// checkCapInTime enforces the per-artist cap against the running
// counters keyed by normalized primary-artist name.
func checkCapInTime(counters map[string]int, track *model.Track, limit int) bool {
	if limit <= 0 {
		return false
	}
	key := NormalizeForComparison(track.PrimaryArtist())
	return counters[key] < limit
}

const (
	compPriority    = "priority"
	compNonPriority = "non_priority"
)

// compensationAction is one step of the shortfall recovery plan.
type compensationAction struct {
	Type      string
	BucketIdx int
	Target    int
}

// calculateCompensationPlan turns the post-build shortfall into ordered
// actions: refill each deficient priority bucket first, then hand the
// remainder to the collaborator pass. A zero collaborator cap (only-mode
// prompt) suppresses the non-priority action.
func calculateCompensationPlan(d *distribution, missing int) []compensationAction {
	if missing <= 0 {
		return nil
	}
	var plan []compensationAction
	left := missing
	for _, b := range d.Buckets {
		if left == 0 {
			break
		}
		def := b.Deficit()
		if def == 0 {
			continue
		}
		if def > left {
			def = left
		}
		plan = append(plan, compensationAction{Type: compPriority, BucketIdx: b.Idx, Target: def})
		left -= def
	}
	if left > 0 && d.NonPriorityCap > 0 {
		plan = append(plan, compensationAction{Type: compNonPriority, BucketIdx: -1, Target: left})
	}
	return plan
}

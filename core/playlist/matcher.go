package playlist

import (
	"strings"
	"unicode"

	"pleia/model"
)

// MatchResult says which tier of the matching chain accepted a track for a
// bucket, if any.
type MatchResult int

const (
	MatchNone MatchResult = iota
	MatchID
	MatchName
	MatchContainment
)

func (m MatchResult) String() string {
	switch m {
	case MatchID:
		return "id"
	case MatchName:
		return "name"
	case MatchContainment:
		return "containment"
	default:
		return "none"
	}
}

// ArtistMatcher decides whether a track belongs to an artist's bucket.
// Isolated behind an interface so the lossy containment tier can be
// tested, tuned or disabled independently.
type ArtistMatcher interface {
	Match(track *model.Track, artistID, artistName string) MatchResult
}

// ChainMatcher is the production matcher: artist-ID equality, then
// normalized-name equality, then two-way substring containment guarded by
// a minimum length on the shorter name.
type ChainMatcher struct {
	// UseID disables the ID tier when strict artist resolution is off
	// (no resolved IDs exist, names are all we have).
	UseID bool
	// MinContainment is the minimum length of the shorter normalized
	// name for the containment tier to apply. Guards against short
	// names like "Dua" matching everything.
	MinContainment int
}

// NewChainMatcher builds the default matcher.
func NewChainMatcher(useID bool) *ChainMatcher {
	return &ChainMatcher{UseID: useID, MinContainment: 4}
}

// Match runs the three-tier chain against every credited artist.
func (m *ChainMatcher) Match(track *model.Track, artistID, artistName string) MatchResult {
	if m.UseID && artistID != "" && track.HasArtistID(artistID) {
		return MatchID
	}

	want := NormalizeForComparison(artistName)
	if want == "" {
		return MatchNone
	}

	for _, a := range track.Artists {
		got := NormalizeForComparison(a.Name)
		if got == "" {
			continue
		}
		if got == want {
			return MatchName
		}
	}

	// Lossy fallback for stylized spellings ("MD BEATZ" vs "mdbeatz").
	for _, a := range track.Artists {
		got := NormalizeForComparison(a.Name)
		shorter, longer := got, want
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}
		if len(shorter) >= m.MinContainment && strings.Contains(longer, shorter) {
			return MatchContainment
		}
	}

	return MatchNone
}

// NormalizeForComparison lowercases, folds common diacritics and strips
// everything but letters and digits, so "Sén Señor" and "SENSENOR"
// compare equal and "MD BEATZ" contains "mdbeatz".
func NormalizeForComparison(s string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(s) {
		r = foldDiacritic(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func foldDiacritic(r rune) rune {
	switch r {
	case 'á', 'à', 'ä', 'â', 'ã':
		return 'a'
	case 'é', 'è', 'ë', 'ê':
		return 'e'
	case 'í', 'ì', 'ï', 'î':
		return 'i'
	case 'ó', 'ò', 'ö', 'ô', 'õ':
		return 'o'
	case 'ú', 'ù', 'ü', 'û':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	default:
		return r
	}
}

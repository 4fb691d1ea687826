package playlist

import (
	"regexp"
	"strings"

	"pleia/model"
)

var (
	styleCuePattern = regexp.MustCompile(`(?i)\b(estilo|como|like)\b`)
	yearPattern     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	festivalPattern = regexp.MustCompile(`(?i)\b(festival|fest|fib|sonorama|primavera sound|mad cool|coachella|tomorrowland|lollapalooza|bbk live|arenal sound)\b`)
)

// Viral keyword set; any hit on the lowercased prompt forces VIRAL.
var viralKeywords = []string{
	"tiktok", "viral", "virales", "top", "charts",
	"tendencia", "tendencias", "2024", "2025",
}

// DetermineMode maps an intent plus the raw prompt to a generation mode.
// Priority: explicit LLM mode, viral keywords, festival extraction, style
// cue, NORMAL. Pure function; always returns a mode.
func DetermineMode(intent *model.Intent, prompt string) Mode {
	if intent != nil {
		switch intent.Mode {
		case string(ModeNormal), string(ModeViral), string(ModeFestival), string(ModeArtistStyle):
			return Mode(intent.Mode)
		case modeUndergroundStrict:
			// UNDERGROUND_STRICT is not terminal for this endpoint: a
			// style cue turns it into ARTIST_STYLE, otherwise NORMAL.
			if styleCuePattern.MatchString(prompt) {
				return ModeArtistStyle
			}
			return ModeNormal
		}
	}

	lower := strings.ToLower(prompt)
	for _, kw := range viralKeywords {
		if strings.Contains(lower, kw) {
			return ModeViral
		}
	}

	if name, year := ExtractFestivalInfo(prompt); name != "" && year != 0 {
		return ModeFestival
	}

	if styleCuePattern.MatchString(prompt) {
		return ModeArtistStyle
	}

	return ModeNormal
}

// ExtractFestivalInfo pulls a festival name and edition year out of the
// prompt. Both must be present for FESTIVAL mode; either empty value means
// no festival was recognized.
func ExtractFestivalInfo(prompt string) (string, int) {
	yearStr := yearPattern.FindString(prompt)
	if yearStr == "" {
		return "", 0
	}
	if !festivalPattern.MatchString(prompt) {
		return "", 0
	}

	year := 0
	for _, r := range yearStr {
		year = year*10 + int(r-'0')
	}

	// Name = prompt minus the year, collapsed; good enough as a search
	// base query, the intent endpoint canonizes the real name.
	name := strings.TrimSpace(strings.ReplaceAll(prompt, yearStr, ""))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", 0
	}
	return name, year
}

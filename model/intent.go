package model

// Exclusions are the hard filters the intent endpoint extracted from the
// prompt ("sin reggaeton", "nada de X"...). Matching is case-insensitive.
type Exclusions struct {
	BannedArtists []string `json:"banned_artists"`
	BannedTerms   []string `json:"banned_terms"`
}

// Canonized is the normalized festival reference produced by the intent
// endpoint when the prompt names a festival edition.
type Canonized struct {
	BaseQuery string `json:"baseQuery"`
	Year      int    `json:"year"`
}

// Intent is the structured object returned by the external intent
// endpoint. It is read-only input to the generators; nothing downstream
// mutates it.
type Intent struct {
	Prompt          string     `json:"prompt"`
	Mode            string     `json:"mode,omitempty"`
	TracksLLM       []Track    `json:"tracks_llm"`
	ArtistsLLM      []string   `json:"artists_llm"`
	PriorityArtists []string   `json:"priority_artists"`
	FilteredArtists []string   `json:"filtered_artists"`
	Exclusions      Exclusions `json:"exclusions"`
	Contexts        []string   `json:"contexts,omitempty"`
	Canonized       *Canonized `json:"canonized,omitempty"`
}

// HasContext reports whether the intent carries the given musical context
// tag (e.g. "underground_es").
func (i *Intent) HasContext(tag string) bool {
	for _, c := range i.Contexts {
		if c == tag {
			return true
		}
	}
	return false
}

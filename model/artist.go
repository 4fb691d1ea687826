package model

// ResolvedArtist is the canonical identity behind one or more raw artist
// name variants. ID is empty when resolution is disabled or found nothing,
// in which case the raw name stands in as identity.
type ResolvedArtist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

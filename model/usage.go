package model

import "time"

// UsageEvent is one row in the billing ledger. A successful generation
// records exactly one event; a refund flips the Refunded flag rather than
// deleting the row, so the ledger stays append-only.
type UsageEvent struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	EventID   string    `json:"eventId" gorm:"uniqueIndex;size:36"`
	UserID    int64     `json:"userId" gorm:"index"`
	Units     int       `json:"units"`
	Kind      string    `json:"kind" gorm:"size:40"` // e.g. "playlist_generation"
	Meta      string    `json:"meta" gorm:"type:text"`
	Refunded  bool      `json:"refunded"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UsageSummary is the per-user view returned by the usage endpoint.
type UsageSummary struct {
	UserID    int64 `json:"userId"`
	Used      int   `json:"used"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Unlimited bool  `json:"unlimited"`
}

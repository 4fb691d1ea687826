package model

import "time"

// NewsletterSubscriber is one row in the newsletter table. ReferredBy
// holds the referral code that brought the subscriber in, if any.
type NewsletterSubscriber struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Email      string    `json:"email" gorm:"uniqueIndex;size:255"`
	ReferredBy string    `json:"referredBy,omitempty" gorm:"size:32;index"`
	Confirmed  bool      `json:"confirmed"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Newsletter workflow step states.
const (
	WorkflowPending = "pending"
	WorkflowSent    = "sent"
	WorkflowFailed  = "failed"
)

// NewsletterWorkflow is one scheduled email step of the drip sequence a
// new subscriber enters (welcome, day-3 tips, day-7 referral nudge).
type NewsletterWorkflow struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	SubscriberID int64     `json:"subscriberId" gorm:"index"`
	Step         string    `json:"step" gorm:"size:40"`
	SendAt       time.Time `json:"sendAt" gorm:"index"`
	Status       string    `json:"status" gorm:"size:20;default:pending"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

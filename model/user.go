package model

import "time"

// Plan names the billing plan a user is on.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPro       Plan = "pro"
	PlanUnlimited Plan = "unlimited"
)

// User represents a registered account.
type User struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	Email         string    `json:"email" gorm:"uniqueIndex;size:255"`
	PasswordHash  string    `json:"-" gorm:"size:255"`
	DisplayName   string    `json:"displayName" gorm:"size:100"`
	Plan          Plan      `json:"plan" gorm:"size:20;default:free"`
	TermsAccepted bool      `json:"termsAccepted"`
	ReferralCode  string    `json:"referralCode" gorm:"uniqueIndex;size:32"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of User that is safe to cache and return
// from the profile endpoint.
type PublicProfile struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	Plan          Plan   `json:"plan"`
	TermsAccepted bool   `json:"termsAccepted"`
	ReferralCode  string `json:"referralCode"`
}

// Public projects the user onto its cacheable profile.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Plan:          u.Plan,
		TermsAccepted: u.TermsAccepted,
		ReferralCode:  u.ReferralCode,
	}
}

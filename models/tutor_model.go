package models

import (
	"time"

	"github.com/google/uuid"
)

// TutorProfile holds the tutor's public offering: the hourly rate every
// booking price is computed from, and the connected payout account escrow is
// released to.
type TutorProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `gorm:"not null;uniqueIndex" json:"user_id"`

	Headline        string `gorm:"size:255" json:"headline"`
	HourlyRateCents int64  `gorm:"not null" json:"hourly_rate_cents"`
	Currency        string `gorm:"size:3;not null;default:'usd'" json:"currency"`
	StripeAccountID string `gorm:"size:255" json:"-"`

	User User `gorm:"foreignkey:UserID" json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

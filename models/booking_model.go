package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the closed set of lifecycle states. Every transition must
// be an edge in Transitions; anything else is rejected.
type BookingStatus string

const (
	StatusRequested      BookingStatus = "REQUESTED"
	StatusPending        BookingStatus = "PENDING"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusInProgress     BookingStatus = "IN_PROGRESS"
	StatusAwaitingReview BookingStatus = "AWAITING_REVIEW"
	StatusCompleted      BookingStatus = "COMPLETED"
	StatusCancelled      BookingStatus = "CANCELLED"
	StatusRejected       BookingStatus = "REJECTED"
	StatusDisputed       BookingStatus = "DISPUTED"
)

var ErrInvalidTransition = errors.New("invalid booking transition")

// Transitions maps each status to the statuses it may move to. Terminal
// states have no outbound edges; dispute resolution happens outside this
// system.
var Transitions = map[BookingStatus][]BookingStatus{
	StatusRequested:      {StatusPending, StatusRejected, StatusCancelled},
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusAwaitingReview, StatusDisputed},
	StatusAwaitingReview: {StatusCompleted, StatusDisputed},
	StatusCompleted:      {},
	StatusCancelled:      {},
	StatusRejected:       {},
	StatusDisputed:       {},
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to BookingStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether the status has no outbound edges.
func (s BookingStatus) Terminal() bool {
	return len(Transitions[s]) == 0
}

// NonTerminalStatuses lists statuses that still occupy a schedule slot.
func NonTerminalStatuses() []BookingStatus {
	return []BookingStatus{
		StatusRequested,
		StatusPending,
		StatusConfirmed,
		StatusInProgress,
		StatusAwaitingReview,
	}
}

// Booking is the central entity of the marketplace: one scheduled lesson
// between a student and a tutor, with escrowed payment. Money fields are
// computed once at creation and never recomputed; only the processor
// references and the flag/timestamp fields mutate afterwards.
type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID      uuid.UUID `gorm:"not null;index" json:"student_id"`
	TutorID        uuid.UUID `gorm:"not null;index" json:"tutor_id"`
	TutorProfileID uuid.UUID `gorm:"not null;index" json:"tutor_profile_id"`

	StartTime time.Time `gorm:"not null" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	Status BookingStatus `gorm:"size:20;not null;default:'REQUESTED'" json:"status"`

	PriceCents         int64  `gorm:"not null" json:"price_cents"`
	PlatformFeeCents   int64  `gorm:"not null" json:"platform_fee_cents"`
	TutorEarningsCents int64  `gorm:"not null" json:"tutor_earnings_cents"`
	Currency           string `gorm:"size:3;not null" json:"currency"`

	StudentConfirmedStart bool `gorm:"not null;default:false" json:"student_confirmed_start"`
	TutorConfirmedStart   bool `gorm:"not null;default:false" json:"tutor_confirmed_start"`
	StudentConfirmedEnd   bool `gorm:"not null;default:false" json:"student_confirmed_end"`
	TutorConfirmedEnd     bool `gorm:"not null;default:false" json:"tutor_confirmed_end"`

	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	LessonStartedAt   *time.Time `json:"lesson_started_at,omitempty"`
	LessonEndedAt     *time.Time `json:"lesson_ended_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	PaymentReleasedAt *time.Time `json:"payment_released_at,omitempty"`
	DisputedAt        *time.Time `json:"disputed_at,omitempty"`

	CheckoutRef *string `gorm:"size:255;uniqueIndex" json:"checkout_ref,omitempty"`
	PaymentRef  *string `gorm:"size:255" json:"payment_ref,omitempty"`
	TransferRef *string `gorm:"size:255" json:"transfer_ref,omitempty"`
	RefundRef   *string `gorm:"size:255" json:"refund_ref,omitempty"`

	DisputeReason *string `gorm:"type:text" json:"dispute_reason,omitempty"`
	MeetingLink   *string `gorm:"size:255" json:"meeting_link,omitempty"`

	Student      User         `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Tutor        User         `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`
	TutorProfile TutorProfile `gorm:"foreignkey:TutorProfileID" json:"tutor_profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParty reports whether the given user is one of the booking's two parties.
func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.StudentID == userID || b.TutorID == userID
}

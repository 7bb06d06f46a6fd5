package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
)

// Error classes the handlers map onto HTTP codes. State-machine violations
// carry models.ErrInvalidTransition instead.
var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("actor is not allowed to perform this action")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("scheduling conflict")
	ErrPaymentProvider = errors.New("payment provider failure")
)

// Actor is the caller identity supplied by the session middleware.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// BookingStore is the transactional record store the lifecycle service runs
// against. Transaction hands the callback a store view bound to one database
// transaction; the ForUpdate reads inside it take row locks so concurrent
// transitions on the same booking serialize.
type BookingStore interface {
	Transaction(ctx context.Context, fn func(tx BookingStore) error) error

	CreateBooking(ctx context.Context, b *models.Booking) error
	SaveBooking(ctx context.Context, b *models.Booking) error
	BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	BookingByCheckoutRef(ctx context.Context, ref string) (*models.Booking, error)
	BookingsForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)

	// CountOverlapping counts non-terminal bookings for the tutor whose
	// half-open interval overlaps [start, end). exclude may be uuid.Nil.
	CountOverlapping(ctx context.Context, tutorProfileID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int64, error)

	// TutorProfileForUpdate locks the profile row, serializing concurrent
	// booking creation for the same tutor.
	TutorProfileForUpdate(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error)
	TutorProfileByID(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

// CheckoutParams describes the escrow capture the settlement gateway creates
// for an approved booking. The amount is fixed at booking creation.
type CheckoutParams struct {
	BookingID    uuid.UUID
	PayerEmail   string
	AmountCents  int64
	Currency     string
	TutorAccount string
}

// SettlementGateway wraps the payment processor's checkout, transfer and
// refund primitives. Implementations must be idempotent where the processor
// supports idempotency keys.
type SettlementGateway interface {
	CreateCheckout(ctx context.Context, p CheckoutParams) (checkoutRef, checkoutURL string, err error)
	ReleaseFunds(ctx context.Context, bookingID uuid.UUID, paymentRef, tutorAccount string, netCents int64, currency string) (transferRef string, err error)
	Refund(ctx context.Context, bookingID uuid.UUID, paymentRef, reason string) (refundRef string, err error)
}

// Notifier sends transactional email. Best effort only: callers fire it in a
// goroutine and never let a failure touch a transition.
type Notifier interface {
	Send(toName, toEmail, subject, htmlContent string)
}

package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
	"go.uber.org/zap"
)

const (
	MinLessonDuration = 30 * time.Minute
	MaxLessonDuration = 4 * time.Hour
)

// PlatformFee computes the platform's cut of a lesson price in minor units.
// Deterministic: the same price and rate always yield the same fee.
func PlatformFee(priceCents int64, rate float64) int64 {
	return int64(math.Round(float64(priceCents) * rate))
}

// LifecycleService is the booking state machine. Every status change goes
// through here: it validates the actor and the current state, applies the
// transition under a row lock, and triggers settlement side effects on the
// transitions that move money. Collaborators are injected so the core carries
// no package-level state.
type LifecycleService struct {
	store    BookingStore
	gateway  SettlementGateway
	notifier Notifier
	feeRate  float64
	log      *zap.Logger
	now      func() time.Time
}

func NewLifecycleService(store BookingStore, gateway SettlementGateway, notifier Notifier, feeRate float64, log *zap.Logger) *LifecycleService {
	return &LifecycleService{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		feeRate:  feeRate,
		log:      log,
		now:      time.Now,
	}
}

// CreateBooking reserves [start, end) with the tutor and opens the lifecycle
// at REQUESTED. The conflict check and the insert are one transaction behind
// a lock on the tutor profile row, so two overlapping requests cannot both
// succeed.
func (s *LifecycleService) CreateBooking(ctx context.Context, studentID, tutorProfileID uuid.UUID, start, end time.Time) (*models.Booking, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}
	duration := end.Sub(start)
	if duration < MinLessonDuration || duration > MaxLessonDuration {
		return nil, fmt.Errorf("%w: lesson duration must be between %s and %s", ErrValidation, MinLessonDuration, MaxLessonDuration)
	}
	if start.Before(s.now()) {
		return nil, fmt.Errorf("%w: lesson must start in the future", ErrValidation)
	}

	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		profile, err := tx.TutorProfileForUpdate(ctx, tutorProfileID)
		if err != nil {
			return err
		}

		conflict, err := HasConflict(ctx, tx, tutorProfileID, start, end, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("%w: the tutor already has a booking overlapping this time", ErrConflict)
		}

		price := profile.HourlyRateCents * int64(duration.Seconds()) / 3600
		fee := PlatformFee(price, s.feeRate)

		booking = &models.Booking{
			ID:                 uuid.New(),
			StudentID:          studentID,
			TutorID:            profile.UserID,
			TutorProfileID:     profile.ID,
			StartTime:          start,
			EndTime:            end,
			Status:             models.StatusRequested,
			PriceCents:         price,
			PlatformFeeCents:   fee,
			TutorEarningsCents: price - fee,
			Currency:           profile.Currency,
		}
		return tx.CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(booking.TutorID, "New Lesson Request",
		"<h1>New Request</h1><p>A student has requested a lesson with you. Approve it from your dashboard to let them pay.</p>")
	return booking, nil
}

// Approve moves REQUESTED to PENDING. Tutor only. The student is then asked
// to pay via checkout.
func (s *LifecycleService) Approve(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, models.StatusPending, func(b *models.Booking) error {
		if b.TutorID != actor.UserID {
			return fmt.Errorf("%w: only the tutor can approve a booking", ErrForbidden)
		}
		now := s.now()
		b.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(booking.StudentID, "Lesson Approved - Payment Required",
		"<h1>Request Approved</h1><p>Your tutor approved the lesson. Complete payment to confirm your slot.</p>")
	return booking, nil
}

// Reject moves REQUESTED to REJECTED. Tutor only.
func (s *LifecycleService) Reject(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, models.StatusRejected, func(b *models.Booking) error {
		if b.TutorID != actor.UserID {
			return fmt.Errorf("%w: only the tutor can reject a booking", ErrForbidden)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(booking.StudentID, "Lesson Request Declined",
		"<h1>Request Declined</h1><p>The tutor was unable to accept your lesson request.</p>")
	return booking, nil
}

// Cancel moves a booking to CANCELLED. From REQUESTED only the student may
// cancel; from PENDING or CONFIRMED either party. A session that has started
// can no longer be cancelled, only disputed. If payment was captured the
// refund is issued after the cancellation commits: a refund failure is logged
// for manual reconciliation and never un-cancels the booking.
func (s *LifecycleService) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, models.StatusCancelled, func(b *models.Booking) error {
		if !b.IsParty(actor.UserID) {
			return fmt.Errorf("%w: only the booking's parties can cancel it", ErrForbidden)
		}
		switch b.Status {
		case models.StatusRequested:
			if b.StudentID != actor.UserID {
				return fmt.Errorf("%w: only the student can withdraw a request", ErrForbidden)
			}
		case models.StatusInProgress, models.StatusAwaitingReview:
			return fmt.Errorf("%w: cannot cancel a session in progress", ErrValidation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if booking.PaymentRef != nil {
		refundRef, err := s.gateway.Refund(ctx, booking.ID, *booking.PaymentRef, "booking cancelled before lesson start")
		if err != nil {
			s.log.Error("refund failed, booking stays cancelled; needs manual reconciliation",
				zap.String("booking_id", booking.ID.String()),
				zap.String("payment_ref", *booking.PaymentRef),
				zap.Error(err))
		} else {
			booking.RefundRef = &refundRef
			if err := s.store.SaveBooking(ctx, booking); err != nil {
				s.log.Error("failed to record refund reference",
					zap.String("booking_id", booking.ID.String()), zap.Error(err))
			}
		}
	}

	other := booking.TutorID
	if actor.UserID == booking.TutorID {
		other = booking.StudentID
	}
	s.notifyUser(other, "Lesson Cancelled",
		"<h1>Booking Cancelled</h1><p>A lesson you were part of has been cancelled. Any captured payment is being refunded.</p>")
	return booking, nil
}

// HandlePaymentSucceeded is the asynchronous processor notification entering
// the state machine, keyed by the checkout reference instead of a session
// identity. Replays are no-ops; a paid amount that drifts from the price
// fixed at creation is rejected as a fraud signal.
func (s *LifecycleService) HandlePaymentSucceeded(ctx context.Context, checkoutRef, paymentRef string, amountCents int64) error {
	var confirmed *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByCheckoutRef(ctx, checkoutRef)
		if err != nil {
			return err
		}
		lock, err := tx.BookingByIDForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		b = lock

		if b.Status != models.StatusPending {
			// Replayed or late notification. Acknowledge without touching
			// state so the processor stops retrying.
			s.log.Info("ignoring payment notification for non-pending booking",
				zap.String("booking_id", b.ID.String()),
				zap.String("status", string(b.Status)))
			return nil
		}
		if amountCents != b.PriceCents {
			return fmt.Errorf("%w: paid amount %d does not match booking price %d", ErrValidation, amountCents, b.PriceCents)
		}

		b.Status = models.StatusConfirmed
		b.PaymentRef = &paymentRef
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		confirmed = b
		return nil
	})
	if err != nil {
		return err
	}

	if confirmed != nil {
		s.notifyUser(confirmed.StudentID, "Your Lesson is Confirmed!",
			"<h1>Booking Confirmed</h1><p>Your payment was successful. You will receive the meeting link before the lesson.</p>")
		s.notifyUser(confirmed.TutorID, "You Have a Confirmed Lesson!",
			"<h1>New Confirmed Lesson</h1><p>A student has paid for a session with you. Please prepare for the class.</p>")
	}
	return nil
}

// CreateCheckout opens a payment session for a PENDING, student-owned
// booking. Bookings in any other state are rejected with a reason.
func (s *LifecycleService) CreateCheckout(ctx context.Context, actor Actor, bookingID uuid.UUID) (string, error) {
	booking, err := s.store.BookingByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if booking.StudentID != actor.UserID {
		return "", fmt.Errorf("%w: only the student who booked can pay for a lesson", ErrForbidden)
	}
	switch booking.Status {
	case models.StatusPending:
	case models.StatusRequested:
		return "", fmt.Errorf("%w: booking is still awaiting tutor approval", ErrValidation)
	case models.StatusRejected:
		return "", fmt.Errorf("%w: booking was rejected by the tutor", ErrValidation)
	case models.StatusCancelled:
		return "", fmt.Errorf("%w: booking was cancelled", ErrValidation)
	default:
		return "", fmt.Errorf("%w: booking is already paid", ErrValidation)
	}

	student, err := s.store.UserByID(ctx, booking.StudentID)
	if err != nil {
		return "", err
	}
	profile, err := s.store.TutorProfileByID(ctx, booking.TutorProfileID)
	if err != nil {
		return "", err
	}

	checkoutRef, checkoutURL, err := s.gateway.CreateCheckout(ctx, CheckoutParams{
		BookingID:    booking.ID,
		PayerEmail:   student.Email,
		AmountCents:  booking.PriceCents,
		Currency:     booking.Currency,
		TutorAccount: profile.StripeAccountID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	// The booking can change state while the processor call is in flight.
	// Re-validate under the row lock before attaching the reference: a
	// session created for a booking that already left PENDING is abandoned,
	// and any payment made through it is ignored by the webhook guard.
	err = s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusPending {
			s.log.Warn("abandoning checkout session, booking left PENDING during creation",
				zap.String("booking_id", b.ID.String()),
				zap.String("checkout_ref", checkoutRef),
				zap.String("status", string(b.Status)))
			return fmt.Errorf("%w: booking is no longer payable", ErrValidation)
		}
		b.CheckoutRef = &checkoutRef
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return "", err
	}
	return checkoutURL, nil
}

// AddMeetingLink attaches the video-call URL. Tutor only, and only once the
// lesson is paid for and not yet finished.
func (s *LifecycleService) AddMeetingLink(ctx context.Context, actor Actor, bookingID uuid.UUID, link string) (*models.Booking, error) {
	if !strings.HasPrefix(link, "https://") {
		return nil, fmt.Errorf("%w: meeting link must be an https URL", ErrValidation)
	}
	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.TutorID != actor.UserID {
			return fmt.Errorf("%w: only the tutor can set the meeting link", ErrForbidden)
		}
		if b.Status != models.StatusConfirmed && b.Status != models.StatusInProgress {
			return fmt.Errorf("%w: meeting link can only be set for a paid, unfinished lesson", ErrValidation)
		}
		b.MeetingLink = &link
		booking = b
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConfirmStart records the caller's start attestation. The transition to
// IN_PROGRESS fires the moment the second flag becomes true, computed from
// the post-update pair inside one locked read-modify-write, so simultaneous
// confirmations converge on exactly one transition. Re-confirming is an
// accepted no-op.
func (s *LifecycleService) ConfirmStart(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.IsParty(actor.UserID) {
			return fmt.Errorf("%w: only the booking's parties can confirm the lesson start", ErrForbidden)
		}

		flag := &b.TutorConfirmedStart
		if b.StudentID == actor.UserID {
			flag = &b.StudentConfirmedStart
		}
		if *flag {
			booking = b
			return nil
		}
		if b.Status != models.StatusConfirmed {
			return models.ValidateTransition(b.Status, models.StatusInProgress)
		}

		*flag = true
		if b.StudentConfirmedStart && b.TutorConfirmedStart {
			b.Status = models.StatusInProgress
			now := s.now()
			b.LessonStartedAt = &now
		}
		booking = b
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConfirmEnd mirrors ConfirmStart for the IN_PROGRESS -> AWAITING_REVIEW
// edge.
func (s *LifecycleService) ConfirmEnd(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.IsParty(actor.UserID) {
			return fmt.Errorf("%w: only the booking's parties can confirm the lesson end", ErrForbidden)
		}

		flag := &b.TutorConfirmedEnd
		if b.StudentID == actor.UserID {
			flag = &b.StudentConfirmedEnd
		}
		if *flag {
			booking = b
			return nil
		}
		if b.Status != models.StatusInProgress {
			return models.ValidateTransition(b.Status, models.StatusAwaitingReview)
		}

		*flag = true
		if b.StudentConfirmedEnd && b.TutorConfirmedEnd {
			b.Status = models.StatusAwaitingReview
			now := s.now()
			b.LessonEndedAt = &now
		}
		booking = b
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Dispute moves a started lesson into the DISPUTED sink for manual
// resolution. Either party, with a reason.
func (s *LifecycleService) Dispute(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a dispute reason is required", ErrValidation)
	}
	booking, err := s.transition(ctx, bookingID, models.StatusDisputed, func(b *models.Booking) error {
		if !b.IsParty(actor.UserID) {
			return fmt.Errorf("%w: only the booking's parties can open a dispute", ErrForbidden)
		}
		now := s.now()
		b.DisputedAt = &now
		b.DisputeReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	other := booking.TutorID
	if actor.UserID == booking.TutorID {
		other = booking.StudentID
	}
	s.notifyUser(other, "A Lesson Was Disputed",
		"<h1>Dispute Opened</h1><p>The other party disputed a lesson you were part of. Our support team will be in touch.</p>")
	return booking, nil
}

// VerifyComplete releases the escrowed funds (price minus platform fee) to
// the tutor and only then marks the booking COMPLETED. The student attests
// delivery. If the transfer fails the booking stays in AWAITING_REVIEW and
// the action can be retried; the processor-side idempotency key keeps a
// retried release from paying twice.
func (s *LifecycleService) VerifyComplete(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.store.BookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != actor.UserID {
		return nil, fmt.Errorf("%w: only the student can verify completion", ErrForbidden)
	}
	if err := models.ValidateTransition(booking.Status, models.StatusCompleted); err != nil {
		return nil, err
	}
	if booking.PaymentRef == nil {
		return nil, fmt.Errorf("%w: booking has no captured payment to release", ErrValidation)
	}

	profile, err := s.store.TutorProfileByID(ctx, booking.TutorProfileID)
	if err != nil {
		return nil, err
	}

	transferRef, err := s.gateway.ReleaseFunds(ctx, booking.ID, *booking.PaymentRef, profile.StripeAccountID, booking.TutorEarningsCents, booking.Currency)
	if err != nil {
		// The booking stays in AWAITING_REVIEW; re-issuing verify_complete
		// retries the release.
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	var completed *models.Booking
	err = s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := models.ValidateTransition(b.Status, models.StatusCompleted); err != nil {
			return err
		}
		now := s.now()
		b.Status = models.StatusCompleted
		b.TransferRef = &transferRef
		b.PaymentReleasedAt = &now
		b.CompletedAt = &now
		completed = b
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(completed.TutorID, "Lesson Complete - Funds Released",
		"<h1>Payout on the Way</h1><p>The student verified the lesson and your earnings have been transferred to your payout account.</p>")
	return completed, nil
}

// transition applies one status change under a row lock: load, actor/guard
// checks via prepare, edge validation, save. prepare runs before the edge
// check so permission errors win over transition errors.
func (s *LifecycleService) transition(ctx context.Context, bookingID uuid.UUID, to models.BookingStatus, prepare func(b *models.Booking) error) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx BookingStore) error {
		b, err := tx.BookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := prepare(b); err != nil {
			return err
		}
		if err := models.ValidateTransition(b.Status, to); err != nil {
			return err
		}
		b.Status = to
		booking = b
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// notifyUser emails a party in the background. Notification failures never
// surface to the caller.
func (s *LifecycleService) notifyUser(userID uuid.UUID, subject, htmlContent string) {
	go func() {
		user, err := s.store.UserByID(context.Background(), userID)
		if err != nil {
			s.log.Warn("could not load user for notification", zap.String("user_id", userID.String()), zap.Error(err))
			return
		}
		s.notifier.Send(user.FullName, user.Email, subject, htmlContent)
	}()
}

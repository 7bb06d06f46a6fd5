package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
)

// fakeStore is an in-memory BookingStore. Transaction holds one big lock for
// its whole callback, mirroring the serialization the row locks give the real
// store, so the concurrency tests exercise the same guarantees the service
// relies on in production.
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
	profiles map[uuid.UUID]*models.TutorProfile
	users    map[uuid.UUID]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: make(map[uuid.UUID]*models.Booking),
		profiles: make(map[uuid.UUID]*models.TutorProfile),
		users:    make(map[uuid.UUID]*models.User),
	}
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	return &c
}

func (f *fakeStore) Transaction(ctx context.Context, fn func(tx BookingStore) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeTx{f})
}

func (f *fakeStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).CreateBooking(ctx, b)
}

func (f *fakeStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).SaveBooking(ctx, b)
}

func (f *fakeStore) BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).BookingByID(ctx, id)
}

func (f *fakeStore) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).BookingByIDForUpdate(ctx, id)
}

func (f *fakeStore) BookingByCheckoutRef(ctx context.Context, ref string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).BookingByCheckoutRef(ctx, ref)
}

func (f *fakeStore) BookingsForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).BookingsForUser(ctx, userID)
}

func (f *fakeStore) CountOverlapping(ctx context.Context, tutorProfileID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).CountOverlapping(ctx, tutorProfileID, start, end, exclude)
}

func (f *fakeStore) TutorProfileForUpdate(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).TutorProfileForUpdate(ctx, id)
}

func (f *fakeStore) TutorProfileByID(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).TutorProfileByID(ctx, id)
}

func (f *fakeStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).UserByID(ctx, id)
}

func (f *fakeStore) ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).ConfirmedStartingBetween(ctx, from, to)
}

// fakeTx is the view handed to Transaction callbacks. The outer lock is
// already held, so it touches the maps directly.
type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) Transaction(ctx context.Context, fn func(tx BookingStore) error) error {
	return fn(t)
}

func (t *fakeTx) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	t.f.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *fakeTx) SaveBooking(ctx context.Context, b *models.Booking) error {
	t.f.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *fakeTx) BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := t.f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	return cloneBooking(b), nil
}

func (t *fakeTx) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return t.BookingByID(ctx, id)
}

func (t *fakeTx) BookingByCheckoutRef(ctx context.Context, ref string) (*models.Booking, error) {
	for _, b := range t.f.bookings {
		if b.CheckoutRef != nil && *b.CheckoutRef == ref {
			return cloneBooking(b), nil
		}
	}
	return nil, fmt.Errorf("%w: checkout ref %s", ErrNotFound, ref)
}

func (t *fakeTx) BookingsForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range t.f.bookings {
		if b.IsParty(userID) {
			out = append(out, *cloneBooking(b))
		}
	}
	return out, nil
}

func (t *fakeTx) CountOverlapping(ctx context.Context, tutorProfileID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int64, error) {
	var count int64
	for _, b := range t.f.bookings {
		if b.TutorProfileID != tutorProfileID || b.ID == exclude || b.Status.Terminal() {
			continue
		}
		if Overlaps(b.StartTime, b.EndTime, start, end) {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) TutorProfileForUpdate(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	return t.TutorProfileByID(ctx, id)
}

func (t *fakeTx) TutorProfileByID(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	p, ok := t.f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: tutor profile %s", ErrNotFound, id)
	}
	c := *p
	return &c, nil
}

func (t *fakeTx) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	c := *u
	return &c, nil
}

func (t *fakeTx) ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range t.f.bookings {
		if b.Status == models.StatusConfirmed && !b.StartTime.Before(from) && !b.StartTime.After(to) {
			out = append(out, *cloneBooking(b))
		}
	}
	return out, nil
}

// fakeGateway records settlement calls and can be told to fail. onCheckout,
// when set, runs during the checkout call to interleave other service calls
// with an in-flight processor request.
type fakeGateway struct {
	mu sync.Mutex

	onCheckout func()

	checkoutErr error
	releaseErr  error
	refundErr   error

	checkouts int
	releases  int
	refunds   int

	lastReleaseNet    int64
	lastRefundPayment string
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, p CheckoutParams) (string, string, error) {
	if g.onCheckout != nil {
		g.onCheckout()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutErr != nil {
		return "", "", g.checkoutErr
	}
	g.checkouts++
	ref := "cs_test_" + p.BookingID.String()
	return ref, "https://checkout.test/" + ref, nil
}

func (g *fakeGateway) ReleaseFunds(ctx context.Context, bookingID uuid.UUID, paymentRef, tutorAccount string, netCents int64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.releaseErr != nil {
		return "", g.releaseErr
	}
	g.releases++
	g.lastReleaseNet = netCents
	return "tr_" + bookingID.String(), nil
}

func (g *fakeGateway) Refund(ctx context.Context, bookingID uuid.UUID, paymentRef, reason string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds++
	g.lastRefundPayment = paymentRef
	return "re_" + bookingID.String(), nil
}

// fakeNotifier counts sends; notifications are fire-and-forget so tests only
// assert they never block or fail a transition.
type fakeNotifier struct {
	mu    sync.Mutex
	sends int
}

func (n *fakeNotifier) Send(toName, toEmail, subject, htmlContent string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends++
}

package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
	"github.com/nashipae/tutorconnect/payments"
	"github.com/nashipae/tutorconnect/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// emptyStore backs the webhook handler tests: it knows no bookings.
type emptyStore struct{}

func (emptyStore) Transaction(ctx context.Context, fn func(tx services.BookingStore) error) error {
	return fn(emptyStore{})
}
func (emptyStore) CreateBooking(context.Context, *models.Booking) error { return nil }
func (emptyStore) SaveBooking(context.Context, *models.Booking) error   { return nil }
func (emptyStore) BookingByID(context.Context, uuid.UUID) (*models.Booking, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) BookingByIDForUpdate(context.Context, uuid.UUID) (*models.Booking, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) BookingByCheckoutRef(context.Context, string) (*models.Booking, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) BookingsForUser(context.Context, uuid.UUID) ([]models.Booking, error) {
	return nil, nil
}
func (emptyStore) CountOverlapping(context.Context, uuid.UUID, time.Time, time.Time, uuid.UUID) (int64, error) {
	return 0, nil
}
func (emptyStore) TutorProfileForUpdate(context.Context, uuid.UUID) (*models.TutorProfile, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) TutorProfileByID(context.Context, uuid.UUID) (*models.TutorProfile, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) UserByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, services.ErrNotFound
}
func (emptyStore) ConfirmedStartingBetween(context.Context, time.Time, time.Time) ([]models.Booking, error) {
	return nil, nil
}

func newWebhookApp(t *testing.T) *fiber.App {
	t.Helper()
	verifier := payments.NewStripeService("sk_test_key", testWebhookSecret,
		"https://app.test/success", "https://app.test/cancel", zap.NewNop())
	svc := services.NewLifecycleService(emptyStore{}, nil, nil, 0.15, zap.NewNop())
	h := NewWebhookHandler(verifier, svc, zap.NewNop())

	app := fiber.New()
	app.Post("/api/v1/webhooks/payments", h.HandleStripeWebhook)
	return app
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return req
}

// An event for a checkout session no booking carries can never succeed on
// retry, so it is acknowledged rather than erroring the delivery.
func TestWebhookAcknowledgesUnknownCheckoutSession(t *testing.T) {
	app := newWebhookApp(t)

	payload := []byte(fmt.Sprintf(
		`{"type":"checkout.session.completed","api_version":"%s","data":{"object":{"id":"cs_unknown","amount_total":5000}}}`,
		stripe.APIVersion))
	resp, err := app.Test(signedRequest(t, payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookAcknowledgesUnhandledEventTypes(t *testing.T) {
	app := newWebhookApp(t)

	payload := []byte(fmt.Sprintf(
		`{"type":"payment_intent.created","api_version":"%s","data":{"object":{"id":"pi_x"}}}`,
		stripe.APIVersion))
	resp, err := app.Test(signedRequest(t, payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app := newWebhookApp(t)

	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_x"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/services"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/transfer"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeService implements services.SettlementGateway on Stripe: Checkout
// Sessions capture the payment into the platform account (the escrow),
// Transfers release the net amount to the tutor's connected account, Refunds
// return it to the student. Release and refund carry idempotency keys derived
// from the booking id so retries cannot move money twice.
type StripeService struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	log           *zap.Logger
}

func NewStripeService(apiKey, webhookSecret, successURL, cancelURL string, log *zap.Logger) *StripeService {
	stripe.Key = apiKey
	return &StripeService{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		log:           log,
	}
}

func (s *StripeService) CreateCheckout(ctx context.Context, p services.CheckoutParams) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(p.PayerEmail),
		ClientReferenceID: stripe.String(p.BookingID.String()),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Tutoring lesson"),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(p.BookingID.String()),
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", "", err
	}
	s.log.Info("created checkout session",
		zap.String("booking_id", p.BookingID.String()),
		zap.String("checkout_ref", sess.ID))
	return sess.ID, sess.URL, nil
}

func (s *StripeService) ReleaseFunds(ctx context.Context, bookingID uuid.UUID, paymentRef, tutorAccount string, netCents int64, currency string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(netCents),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(tutorAccount),
		TransferGroup: stripe.String(bookingID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey("release-" + bookingID.String())
	params.AddMetadata("payment_ref", paymentRef)

	tr, err := transfer.New(params)
	if err != nil {
		return "", err
	}
	s.log.Info("released escrowed funds",
		zap.String("booking_id", bookingID.String()),
		zap.String("transfer_ref", tr.ID),
		zap.Int64("net_cents", netCents))
	return tr.ID, nil
}

func (s *StripeService) Refund(ctx context.Context, bookingID uuid.UUID, paymentRef, reason string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + bookingID.String())
	params.AddMetadata("reason", reason)

	ref, err := refund.New(params)
	if err != nil {
		return "", err
	}
	s.log.Info("refunded payment",
		zap.String("booking_id", bookingID.String()),
		zap.String("refund_ref", ref.ID))
	return ref.ID, nil
}

// VerifyEvent checks the webhook signature and rejects anything that does
// not verify. Nothing unverified may reach the state machine.
func (s *StripeService) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
}

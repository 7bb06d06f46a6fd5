package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/nashipae/tutorconnect/payments"
	"github.com/nashipae/tutorconnect/services"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	verifier *payments.StripeService
	svc      *services.LifecycleService
	log      *zap.Logger
}

func NewWebhookHandler(verifier *payments.StripeService, svc *services.LifecycleService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, svc: svc, log: log}
}

// HandleStripeWebhook ingests the processor's asynchronous notifications.
// The signature is verified before anything reaches the state machine;
// unhandled event types are acknowledged and logged, never errors.
func (h *WebhookHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := h.verifier.VerifyEvent(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("rejected webhook with invalid signature", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.log.Error("failed to parse checkout session payload", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse event payload"})
		}

		paymentRef := ""
		if sess.PaymentIntent != nil {
			paymentRef = sess.PaymentIntent.ID
		}

		err := h.svc.HandlePaymentSucceeded(c.UserContext(), sess.ID, paymentRef, sess.AmountTotal)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrNotFound):
			// No booking carries this session; retrying can never succeed,
			// so acknowledge instead of sending the processor into a retry
			// loop.
			h.log.Warn("ignoring payment notification for unknown checkout session",
				zap.String("checkout_ref", sess.ID))
			return c.JSON(fiber.Map{"message": "Unknown checkout session ignored"})
		case errors.Is(err, services.ErrValidation):
			h.log.Error("rejected payment notification", zap.String("checkout_ref", sess.ID), zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			h.log.Error("failed to process payment notification", zap.String("checkout_ref", sess.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
		}
		return c.JSON(fiber.Map{"message": "Webhook processed successfully"})

	default:
		h.log.Info("ignoring unhandled webhook event", zap.String("type", string(event.Type)))
		return c.JSON(fiber.Map{"message": "Event type ignored"})
	}
}

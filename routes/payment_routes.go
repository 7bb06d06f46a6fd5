package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nashipae/tutorconnect/handlers"
	"github.com/nashipae/tutorconnect/middleware"
)

func PaymentRoutes(app *fiber.App, ch *handlers.CheckoutHandler, wh *handlers.WebhookHandler, rl *middleware.RateLimiter) {
	api := app.Group("/api/v1")

	// Signed by the processor, not by a user session.
	api.Post("/webhooks/payments", wh.HandleStripeWebhook)

	api.Post("/checkout", middleware.Protected(), rl.Limit("checkout"), ch.CreateCheckout)
}

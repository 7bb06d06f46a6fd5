package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/services"
)

type CheckoutHandler struct {
	svc *services.LifecycleService
}

func NewCheckoutHandler(svc *services.LifecycleService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

type CheckoutRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// CreateCheckout starts payment for a PENDING, student-owned booking and
// returns the processor's hosted checkout URL.
func (h *CheckoutHandler) CreateCheckout(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	bookingID, _ := uuid.Parse(req.BookingID)
	checkoutURL, err := h.svc.CreateCheckout(c.UserContext(), actor, bookingID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"checkout_url": checkoutURL})
}

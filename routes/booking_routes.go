package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nashipae/tutorconnect/handlers"
	"github.com/nashipae/tutorconnect/middleware"
)

func BookingRoutes(app *fiber.App, h *handlers.BookingHandler, rl *middleware.RateLimiter) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", h.GetMyBookings)
	booking.Post("", rl.Limit("create_booking"), h.CreateBooking)
	booking.Patch("/:bookingId", rl.Limit("transition"), h.UpdateStatus)
	booking.Post("/:bookingId/lesson", rl.Limit("lesson"), h.LessonAction)
}

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/services"
)

type BookingHandler struct {
	svc   *services.LifecycleService
	store services.BookingStore
}

func NewBookingHandler(svc *services.LifecycleService, store services.BookingStore) *BookingHandler {
	return &BookingHandler{svc: svc, store: store}
}

type CreateBookingRequest struct {
	TutorProfileID string `json:"tutor_profile_id" validate:"required,uuid"`
	StartTime      string `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime        string `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tutorProfileID, _ := uuid.Parse(req.TutorProfileID)
	start, _ := time.Parse(time.RFC3339, req.StartTime)
	end, _ := time.Parse(time.RFC3339, req.EndTime)

	booking, err := h.svc.CreateBooking(c.UserContext(), actor.UserID, tutorProfileID, start, end)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

func (h *BookingHandler) GetMyBookings(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	bookings, err := h.store.BookingsForUser(c.UserContext(), actor.UserID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(bookings)
}

type TransitionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject cancel"`
}

// UpdateStatus handles PATCH /bookings/:bookingId with the approve / reject /
// cancel actions. Actor gating lives in the lifecycle service.
func (h *BookingHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.UserContext()
	switch req.Action {
	case "approve":
		booking, err := h.svc.Approve(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	case "reject":
		booking, err := h.svc.Reject(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	default:
		booking, err := h.svc.Cancel(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	}
}

type LessonActionRequest struct {
	Action      string `json:"action" validate:"required,oneof=add_meeting_link confirm_start confirm_end verify_complete cancel dispute"`
	MeetingLink string `json:"meeting_link,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// LessonAction handles POST /bookings/:bookingId/lesson: the in-session
// actions of the lifecycle.
func (h *BookingHandler) LessonAction(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req LessonActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.UserContext()
	switch req.Action {
	case "add_meeting_link":
		booking, err := h.svc.AddMeetingLink(ctx, actor, bookingID, req.MeetingLink)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	case "confirm_start":
		booking, err := h.svc.ConfirmStart(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	case "confirm_end":
		booking, err := h.svc.ConfirmEnd(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	case "verify_complete":
		booking, err := h.svc.VerifyComplete(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	case "cancel":
		booking, err := h.svc.Cancel(ctx, actor, bookingID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	default:
		booking, err := h.svc.Dispute(ctx, actor, bookingID, req.Reason)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(booking)
	}
}

package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
	"github.com/nashipae/tutorconnect/services"
)

var validate = validator.New()

// currentActor extracts the caller identity from the verified JWT.
func currentActor(c *fiber.Ctx) (services.Actor, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return services.Actor{}, errors.New("missing token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return services.Actor{}, errors.New("malformed claims")
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return services.Actor{}, errors.New("malformed user id claim")
	}
	role, _ := claims["role"].(string)
	return services.Actor{UserID: userID, Role: role}, nil
}

// errorResponse maps the service error classes onto the HTTP codes of the API
// contract: 400 invalid transition/validation, 403 wrong actor, 404 unknown
// booking, 409 scheduling conflict, 500 processor/unexpected.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, models.ErrInvalidTransition):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrPaymentProvider):
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

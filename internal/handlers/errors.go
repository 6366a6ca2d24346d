package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/gofiber/fiber/v2"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrDuplicateReport, fiber.StatusConflict},
	{services.ErrAlreadyAppealed, fiber.StatusConflict},
	{services.ErrInvalidTarget, fiber.StatusNotFound},
	{services.ErrUnknownReferenceCode, fiber.StatusNotFound},
	{services.ErrAppealNotFound, fiber.StatusNotFound},
	{services.ErrAppealResolved, fiber.StatusConflict},
	{services.ErrInvalidTransition, fiber.StatusConflict},
	{services.ErrInvalidDecision, fiber.StatusBadRequest},
	{services.ErrInvalidPolicy, fiber.StatusBadRequest},
	{services.ErrInvalidTrustScore, fiber.StatusBadRequest},
	{services.ErrContentRejected, fiber.StatusUnprocessableEntity},
	{services.ErrAccountInactive, fiber.StatusForbidden},
	{services.ErrGraceExpired, fiber.StatusGone},
}

// serviceError maps a service failure onto a response. Unknown errors are
// logged and hidden behind fallback.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
	}
	slog.Error(fallback, "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: fallback,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

// Column limits for user supplied text, in characters.
const (
	maxReasonLen   = 500
	maxLongTextLen = 2000
	maxNoteLen     = 1000
	maxSourceLen   = 64
	maxMediaURLLen = 1000
)

// textProblem returns a client message when s cannot be stored in a column
// of max characters, or "" when it fits.
func textProblem(field, s string, max int) string {
	if !utf8.ValidString(s) {
		return field + " must be valid UTF-8"
	}
	if utf8.RuneCountInString(s) > max {
		return fmt.Sprintf("%s too long (max %d characters)", field, max)
	}
	return ""
}

func strikeTextProblem(reason, source string) string {
	if msg := textProblem("reason", reason, maxReasonLen); msg != "" {
		return msg
	}
	return textProblem("source", source, maxSourceLen)
}

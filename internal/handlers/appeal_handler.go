package handlers

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type AppealHandler struct {
	appealService *services.AppealService
}

func NewAppealHandler(appealService *services.AppealService) *AppealHandler {
	return &AppealHandler{appealService: appealService}
}

func (h *AppealHandler) SubmitAppeal(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SubmitAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.ReferenceCode) == "" {
		return badRequest(c, "reference_code is required")
	}
	if msg := textProblem("justification", req.Justification, maxLongTextLen); msg != "" {
		return badRequest(c, msg)
	}

	if _, err := h.appealService.SubmitAppeal(c.UserContext(), appID, userID, req.ReferenceCode, req.Justification); err != nil {
		return serviceError(c, err, "Failed to submit appeal")
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitAppealResponse{Queued: true})
}

func (h *AppealHandler) ResolveAppeal(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)

	var req dto.ResolveAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := textProblem("note", req.Note, maxNoteLen); msg != "" {
		return badRequest(c, msg)
	}

	res, err := h.appealService.ResolveAppeal(c.UserContext(), appID, c.Params("reference_code"), req.Outcome, req.Note, middleware.ModeratorID(c))
	if err != nil {
		return serviceError(c, err, "Failed to resolve appeal")
	}
	return c.JSON(res)
}

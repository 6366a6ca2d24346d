package handlers

import (
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
	recorder          *services.DecisionRecorder
}

func NewModerationHandler(moderationService *services.ModerationService, recorder *services.DecisionRecorder) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService, recorder: recorder}
}

// SubmitReport answers as soon as the report is stored and evaluated. Any
// rescan runs in the background.
func (h *ModerationHandler) SubmitReport(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return badRequest(c, "reason is required")
	}
	if msg := textProblem("reason", req.Reason, maxReasonLen); msg != "" {
		return badRequest(c, msg)
	}
	if msg := textProblem("description", req.Description, maxLongTextLen); msg != "" {
		return badRequest(c, msg)
	}

	target, ok := parseTarget(appID, req.TargetType, req.TargetID)
	if !ok {
		return serviceError(c, services.ErrInvalidTarget, "")
	}

	_, err = h.moderationService.SubmitReport(c.UserContext(), services.ReportInput{
		ReporterID: userID,
		Target:     target,
		Reason:     strings.TrimSpace(req.Reason),
		FreeText:   req.Description,
	})
	if err != nil {
		return serviceError(c, err, "Failed to submit report")
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitReportResponse{Accepted: true})
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	status := c.Query("status", "")
	limit, offset := pagination(c)

	reports, total, err := h.moderationService.ListReports(c.UserContext(), appID, status, limit, offset)
	if err != nil {
		return serviceError(c, err, "Failed to fetch reports")
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *ModerationHandler) ReviewQueue(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	limit, offset := pagination(c)

	tasks, total, err := h.moderationService.ReviewQueue(c.UserContext(), appID, limit, offset)
	if err != nil {
		return serviceError(c, err, "Failed to fetch review queue")
	}

	return c.JSON(fiber.Map{
		"tasks":  tasks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Decide records a moderator ruling on a target.
func (h *ModerationHandler) Decide(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)

	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	target, ok := parseTarget(appID, req.TargetType, req.TargetID)
	if !ok {
		return serviceError(c, services.ErrInvalidTarget, "")
	}
	decision := models.DecisionType(req.Decision)
	if !decision.Valid() {
		return serviceError(c, services.ErrInvalidDecision, "")
	}
	if msg := textProblem("reason", req.Reason, maxReasonLen); msg != "" {
		return badRequest(c, msg)
	}

	d, err := h.moderationService.Decide(c.UserContext(), target, decision, req.Reason, middleware.ModeratorID(c))
	if err != nil {
		return serviceError(c, err, "Failed to record decision")
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *ModerationHandler) DecisionHistory(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	target, ok := parseTarget(appID, c.Params("target_type"), c.Params("target_id"))
	if !ok {
		return serviceError(c, services.ErrInvalidTarget, "")
	}

	decisions, err := h.recorder.History(c.UserContext(), target)
	if err != nil {
		return serviceError(c, err, "Failed to fetch decisions")
	}
	return c.JSON(fiber.Map{"decisions": decisions})
}

func parseTarget(appID, targetType, targetID string) (services.Target, bool) {
	tt := models.TargetType(targetType)
	id, err := uuid.Parse(targetID)
	if err != nil || !tt.Valid() {
		return services.Target{}, false
	}
	return services.Target{AppID: appID, Type: tt, ID: id}, true
}

func pagination(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

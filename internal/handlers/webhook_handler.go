package handlers

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WebhookHandler receives strikes from enforcement systems outside the
// engine (copyright claims, fraud detection).
type WebhookHandler struct {
	strikeService *services.StrikeService
	registry      *tenant.Registry
}

func NewWebhookHandler(strikeService *services.StrikeService, registry *tenant.Registry) *WebhookHandler {
	return &WebhookHandler{
		strikeService: strikeService,
		registry:      registry,
	}
}

// HandleStrike routes webhooks by :app_id path param with per-app auth.
func (h *WebhookHandler) HandleStrike(c *fiber.Ctx) error {
	appID := c.Params("app_id")
	if appID == "" || !h.registry.Exists(appID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown app",
		})
	}

	expected := h.registry.WebhookSecret(appID)
	if expected == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured for this app",
		})
	}
	if subtle.ConstantTimeCompare([]byte(c.Get("X-Webhook-Secret")), []byte(expected)) != 1 {
		return unauthorized(c)
	}

	var event dto.StrikeWebhook
	if err := c.BodyParser(&event); err != nil {
		return badRequest(c, "Invalid webhook payload")
	}
	accountID, err := uuid.Parse(event.AccountID)
	if err != nil {
		return badRequest(c, "Invalid account_id")
	}
	if strings.TrimSpace(event.Reason) == "" {
		return badRequest(c, "reason is required")
	}
	if msg := strikeTextProblem(event.Reason, event.Source); msg != "" {
		return badRequest(c, msg)
	}
	source := event.Source
	if source == "" {
		source = "webhook"
	}

	res, err := h.strikeService.AddStrike(c.UserContext(), appID, accountID, event.Reason, source)
	if err != nil {
		slog.Error("strike webhook failed", "app_id", appID, "account_id", event.AccountID, "error", err)
		return serviceError(c, err, "Failed to process strike")
	}
	return c.JSON(res)
}

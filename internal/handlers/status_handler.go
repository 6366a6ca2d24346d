package handlers

import (
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// StatusHandler serves the read contract used by feed and profile renderers.
type StatusHandler struct {
	statusService  *services.StatusService
	accountService *services.AccountService
}

func NewStatusHandler(statusService *services.StatusService, accountService *services.AccountService) *StatusHandler {
	return &StatusHandler{statusService: statusService, accountService: accountService}
}

func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	viewerID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	target, ok := parseTarget(appID, c.Params("target_type"), c.Params("target_id"))
	if !ok {
		return serviceError(c, services.ErrInvalidTarget, "")
	}

	moderator := false
	if acc, err := h.accountService.Get(c.UserContext(), appID, viewerID); err == nil {
		moderator = acc.Role == models.RoleAdmin || acc.Role == models.RoleModerator
	}

	view, err := h.statusService.View(c.UserContext(), target, viewerID, moderator)
	if err != nil {
		return serviceError(c, err, "Failed to fetch status")
	}
	return c.JSON(view)
}

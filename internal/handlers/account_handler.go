package handlers

import (
	"context"
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AccountHandler struct {
	accountService *services.AccountService
	strikeService  *services.StrikeService
}

func NewAccountHandler(accountService *services.AccountService, strikeService *services.StrikeService) *AccountHandler {
	return &AccountHandler{accountService: accountService, strikeService: strikeService}
}

func (h *AccountHandler) Freeze(c *fiber.Ctx) error {
	return h.selfService(c, func(ctx context.Context, appID string, id uuid.UUID, reason string) (*models.Account, error) {
		if reason == "" {
			reason = "frozen by owner"
		}
		return h.accountService.Freeze(ctx, appID, id, reason)
	})
}

func (h *AccountHandler) Reactivate(c *fiber.Ctx) error {
	return h.selfService(c, func(ctx context.Context, appID string, id uuid.UUID, _ string) (*models.Account, error) {
		return h.accountService.Reactivate(ctx, appID, id)
	})
}

func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	return h.selfService(c, func(ctx context.Context, appID string, id uuid.UUID, reason string) (*models.Account, error) {
		if reason == "" {
			reason = "deleted by owner"
		}
		return h.accountService.Delete(ctx, appID, id, reason)
	})
}

func (h *AccountHandler) Restore(c *fiber.Ctx) error {
	return h.selfService(c, func(ctx context.Context, appID string, id uuid.UUID, _ string) (*models.Account, error) {
		return h.accountService.Restore(ctx, appID, id)
	})
}

type accountAction func(ctx context.Context, appID string, id uuid.UUID, reason string) (*models.Account, error)

func (h *AccountHandler) selfService(c *fiber.Ctx, action accountAction) error {
	appID := tenant.GetAppID(c)
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.AccountActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if msg := textProblem("reason", req.Reason, maxReasonLen); msg != "" {
		return badRequest(c, msg)
	}

	if _, err := h.accountService.Ensure(c.UserContext(), appID, userID, ""); err != nil {
		return serviceError(c, err, "Failed to load account")
	}
	acc, err := action(c.UserContext(), appID, userID, strings.TrimSpace(req.Reason))
	if err != nil {
		return serviceError(c, err, "Failed to update account")
	}
	return c.JSON(acc)
}

// SetTrustScore is used by moderators to tune a reporter's weight.
func (h *AccountHandler) SetTrustScore(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid account ID")
	}

	var req dto.TrustScoreRequest
	if err := c.BodyParser(&req); err != nil || req.TrustScore == nil {
		return badRequest(c, "trust_score is required")
	}

	acc, err := h.accountService.SetTrustScore(c.UserContext(), appID, id, *req.TrustScore)
	if err != nil {
		return serviceError(c, err, "Failed to update trust score")
	}
	return c.JSON(acc)
}

func (h *AccountHandler) AddStrike(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)

	var req dto.StrikeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return badRequest(c, "Invalid account ID")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return badRequest(c, "reason is required")
	}
	if msg := strikeTextProblem(req.Reason, req.Source); msg != "" {
		return badRequest(c, msg)
	}
	source := req.Source
	if source == "" {
		source = "moderator"
	}

	res, err := h.strikeService.AddStrike(c.UserContext(), appID, accountID, req.Reason, source)
	if err != nil {
		return serviceError(c, err, "Failed to add strike")
	}
	return c.JSON(res)
}

func (h *AccountHandler) Strikes(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid account ID")
	}

	ledger, err := h.strikeService.Ledger(c.UserContext(), appID, id)
	if err != nil {
		return serviceError(c, err, "Failed to fetch strikes")
	}
	return c.JSON(ledger)
}

package handlers

import (
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// PolicyHandler exposes per-app moderation thresholds to admins.
type PolicyHandler struct {
	policyService *services.PolicyService
	registry      *tenant.Registry
}

func NewPolicyHandler(policyService *services.PolicyService, registry *tenant.Registry) *PolicyHandler {
	return &PolicyHandler{policyService: policyService, registry: registry}
}

// GetPolicy returns the effective policy and the overrides behind it.
func (h *PolicyHandler) GetPolicy(c *fiber.Ctx) error {
	appID := c.Params("app_id")
	if !h.registry.Exists(appID) {
		return badRequest(c, "Invalid app_id: "+appID)
	}

	policy, err := h.policyService.For(c.UserContext(), appID)
	if err != nil {
		return serviceError(c, err, "Failed to load policy")
	}
	overrides, err := h.policyService.List(c.UserContext(), appID)
	if err != nil {
		return serviceError(c, err, "Failed to load policy")
	}

	return c.JSON(fiber.Map{
		"app_id": appID,
		"effective": fiber.Map{
			services.PolicyRescanThreshold:   policy.RescanThreshold,
			services.PolicyPriorityThreshold: policy.PriorityThreshold,
			services.PolicyReviewSLA:         policy.ReviewSLA.String(),
			services.PolicyStrikeCeiling:     policy.StrikeCeiling,
		},
		"overrides": overrides,
	})
}

func (h *PolicyHandler) SetPolicyKey(c *fiber.Ctx) error {
	appID := c.Params("app_id")
	key := c.Params("key")
	if !h.registry.Exists(appID) {
		return badRequest(c, "Invalid app_id: "+appID)
	}

	var req dto.PolicyValueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Value == "" {
		return badRequest(c, "Value is required")
	}

	setting, err := h.policyService.Set(c.UserContext(), appID, key, req.Value, middleware.ModeratorID(c))
	if err != nil {
		return serviceError(c, err, "Failed to update policy")
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Policy updated successfully",
		"setting": setting,
	})
}

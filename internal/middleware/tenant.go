package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Paths that don't require tenant identification.
var tenantSkipPaths = []string{
	"/api/health",
	"/api/webhooks/", // webhooks use :app_id path param instead
	"/metrics",
}

// TenantMiddleware resolves app_id from JWT claims or the X-App-ID header.
// It must run after JWTProtected on routes that carry a token.
func TenantMiddleware(registry *tenant.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skip := range tenantSkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		if claims, err := tenant.Claims(c); err == nil {
			if appID, ok := claims["app_id"].(string); ok && appID != "" {
				if !registry.Exists(appID) {
					return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
						Error: true, Message: "Unknown app_id in token: " + appID,
					})
				}
				tenant.SetAppID(c, appID)
				return c.Next()
			}
		}

		appID := c.Get("X-App-ID")
		if appID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "X-App-ID header is required",
			})
		}
		if !registry.Exists(appID) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid X-App-ID: " + appID,
			})
		}
		tenant.SetAppID(c, appID)
		return c.Next()
	}
}

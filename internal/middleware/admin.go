package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	localModeratorID = "moderator_id"
	adminTokenIssuer = "admin-token"
)

// AdminRequired admits moderators. It checks, in order:
// 1. the X-Admin-Token header
// 2. config-based admin emails/IDs
// 3. the account role stored in the database (admin or moderator)
func AdminRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken {
			c.Locals(localModeratorID, adminTokenIssuer)
			return c.Next()
		}

		claims, err := tenant.Claims(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		email, _ := claims["email"].(string)
		sub, _ := claims["sub"].(string)

		if contains(adminEmails, email) || contains(adminUserIDs, sub) {
			c.Locals(localModeratorID, sub)
			return c.Next()
		}

		if userID, err := tenant.GetUserID(c); err == nil {
			var acc models.Account
			err := db.Scopes(tenant.ForTenant(tenant.GetAppID(c))).First(&acc, "id = ?", userID).Error
			if err == nil && (acc.Role == models.RoleAdmin || acc.Role == models.RoleModerator) {
				c.Locals(localModeratorID, sub)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Moderator access required",
		})
	}
}

// ModeratorID returns the issuer identity AdminRequired resolved for this request.
func ModeratorID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localModeratorID).(string); ok && id != "" {
		return id
	}
	return adminTokenIssuer
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}

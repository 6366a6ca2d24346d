package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoToken     = errors.New("invalid token in context")
	ErrBadClaims   = errors.New("invalid claims")
	ErrMissingSub  = errors.New("missing sub claim")
	localAppID     = "app_id"
	localJWTClaims = "user"
)

// GetAppID extracts the app_id from Fiber context locals.
func GetAppID(c *fiber.Ctx) string {
	if appID, ok := c.Locals(localAppID).(string); ok {
		return appID
	}
	return ""
}

// SetAppID stores the resolved tenant for downstream handlers.
func SetAppID(c *fiber.Ctx, appID string) {
	c.Locals(localAppID, appID)
}

// Claims returns the verified JWT claims placed in locals by the JWT middleware.
func Claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals(localJWTClaims).(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadClaims
	}
	return claims, nil
}

// GetUserID extracts the account UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, err := Claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrMissingSub
	}
	return uuid.Parse(sub)
}

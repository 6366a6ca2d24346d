package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func bearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func send(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStorage(client)

	val, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, s.Set("1.2.3.4", []byte("hits"), time.Minute))
	val, err = s.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("hits"), val)
	assert.True(t, mr.Exists(rateLimitPrefix+"1.2.3.4"))

	mr.FastForward(2 * time.Minute)
	val, err = s.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, mr.Set("unrelated", "keep"))
	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("1"), 0))
	require.NoError(t, s.Reset())
	assert.False(t, mr.Exists(rateLimitPrefix+"a"))
	assert.False(t, mr.Exists(rateLimitPrefix+"b"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestRateLimitSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	newApp := func() *fiber.App {
		app := fiber.New()
		app.Use(RateLimit(2, time.Minute, NewRedisStorage(client)))
		app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
		return app
	}
	first, second := newApp(), newApp()

	assert.Equal(t, http.StatusOK, send(t, first, "/ping", nil))
	assert.Equal(t, http.StatusOK, send(t, second, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, send(t, first, "/ping", nil))
}

func TestTenantMiddleware(t *testing.T) {
	registry := tenant.NewRegistry()
	registry.Register(&tenant.AppConfig{AppID: "feedly"})

	app := fiber.New()
	app.Use(TenantMiddleware(registry))
	app.Get("/api/things", func(c *fiber.Ctx) error { return c.SendString(tenant.GetAppID(c)) })
	app.Get("/api/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	assert.Equal(t, http.StatusOK, send(t, app, "/api/health", nil))
	assert.Equal(t, http.StatusBadRequest, send(t, app, "/api/things", nil))
	assert.Equal(t, http.StatusBadRequest, send(t, app, "/api/things", map[string]string{"X-App-ID": "other"}))
	assert.Equal(t, http.StatusOK, send(t, app, "/api/things", map[string]string{"X-App-ID": "feedly"}))
}

func TestAdminRequired(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{AdminUserIDs: "root-user", AdminToken: "letmein"}
	registry := tenant.NewRegistry()
	registry.Register(&tenant.AppConfig{AppID: testutil.AppID})

	app := fiber.New()
	app.Get("/admin/whoami", JWTProtected(secret), TenantMiddleware(registry), AdminRequired(db, cfg), func(c *fiber.Ctx) error {
		return c.SendString(ModeratorID(c))
	})

	mod := testutil.SeedAccount(t, db, 50, models.RoleModerator)
	user := testutil.SeedAccount(t, db, 50, models.RoleUser)

	claims := func(sub string) map[string]string {
		return map[string]string{"Authorization": bearer(t, jwt.MapClaims{"sub": sub, "app_id": testutil.AppID})}
	}

	assert.Equal(t, http.StatusUnauthorized, send(t, app, "/admin/whoami", nil))
	assert.Equal(t, http.StatusForbidden, send(t, app, "/admin/whoami", claims(user.ID.String())))
	assert.Equal(t, http.StatusForbidden, send(t, app, "/admin/whoami", claims(uuid.NewString())))
	assert.Equal(t, http.StatusOK, send(t, app, "/admin/whoami", claims(mod.ID.String())))
	assert.Equal(t, http.StatusOK, send(t, app, "/admin/whoami", claims("root-user")))

	headers := claims(user.ID.String())
	headers["X-Admin-Token"] = "letmein"
	assert.Equal(t, http.StatusOK, send(t, app, "/admin/whoami", headers))
}

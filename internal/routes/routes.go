package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Moderation *handlers.ModerationHandler
	Appeal     *handlers.AppealHandler
	Status     *handlers.StatusHandler
	Content    *handlers.ContentHandler
	Account    *handlers.AccountHandler
	Policy     *handlers.PolicyHandler
	Webhook    *handlers.WebhookHandler
}

// Setup wires every route. limiterStorage may be nil, in which case rate
// limits are tracked per process.
func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	registry *tenant.Registry,
	h Handlers,
	limiterStorage fiber.Storage,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, limiterStorage))

	// Health (no tenant required)
	api.Get("/health", h.Health.Check)

	// Authenticated user endpoints. Tenant resolution reads the token, so it
	// runs after JWT on each route.
	jwt := middleware.JWTProtected(cfg.JWTSecret)
	tenantMW := middleware.TenantMiddleware(registry)

	api.Post("/reports", jwt, tenantMW, h.Moderation.SubmitReport)
	api.Post("/appeals", jwt, tenantMW, h.Appeal.SubmitAppeal)
	api.Get("/status/:target_type/:target_id", jwt, tenantMW, h.Status.GetStatus)
	api.Post("/content", jwt, tenantMW, h.Content.Register)

	account := api.Group("/account", jwt, tenantMW)
	account.Post("/freeze", h.Account.Freeze)
	account.Post("/reactivate", h.Account.Reactivate)
	account.Post("/delete", h.Account.Delete)
	account.Post("/restore", h.Account.Restore)

	// Moderator panel (protected + moderator required)
	admin := api.Group("/admin", jwt, tenantMW, middleware.AdminRequired(db, cfg))
	admin.Get("/moderation/reports", h.Moderation.ListReports)
	admin.Get("/moderation/queue", h.Moderation.ReviewQueue)
	admin.Post("/moderation/decisions", h.Moderation.Decide)
	admin.Get("/moderation/decisions/:target_type/:target_id", h.Moderation.DecisionHistory)
	admin.Post("/moderation/appeals/:reference_code/resolve", h.Appeal.ResolveAppeal)
	admin.Post("/moderation/strikes", h.Account.AddStrike)
	admin.Get("/accounts/:id/strikes", h.Account.Strikes)
	admin.Put("/accounts/:id/trust", h.Account.SetTrustScore)
	admin.Get("/policy/:app_id", h.Policy.GetPolicy)
	admin.Put("/policy/:app_id/:key", h.Policy.SetPolicyKey)

	// Webhooks authenticate per app via the :app_id path param, not JWT.
	webhooks := api.Group("/webhooks")
	webhooks.Post("/strikes/:app_id", h.Webhook.HandleStrike)
}

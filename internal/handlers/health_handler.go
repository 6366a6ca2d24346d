package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	registry *tenant.Registry
}

// NewHealthHandler accepts a nil redis client in single-instance mode.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, registry *tenant.Registry) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, registry: registry}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy: " + err.Error()
		}
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Redis:     redisStatus,
		AppCount:  len(h.registry.All()),
	})
}

package middleware

import (
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/gofiber/fiber/v2"
)

// Metrics records request count and latency per matched route.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		observability.RequestCount.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		observability.RequestLatency.WithLabelValues(route, c.Method()).Observe(time.Since(start).Seconds())
		return err
	}
}

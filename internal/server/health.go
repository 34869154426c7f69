package server

import (
	"context"
	"time"

	"zeelink/internal/database"

	"github.com/gofiber/fiber/v2"
)

const (
	readyTimeout = 5 * time.Second

	checkHealthy     = "healthy"
	checkUnhealthy   = "unhealthy"
	checkUnavailable = "unavailable"
)

// Live answers as long as the process serves requests.
func (s *Server) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": s.now()})
}

// Ready reports 503 only when the database is down. Redis is optional, so
// losing it leaves the service "degraded" but still ready.
func (s *Server) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	dbCheck := checkStatus(func() error { return database.Ping(ctx, s.db) })
	redisCheck := checkUnavailable
	if s.rdb != nil {
		redisCheck = checkStatus(func() error { return s.rdb.Ping(ctx).Err() })
	}

	code, overall := fiber.StatusOK, checkHealthy
	if dbCheck != checkHealthy {
		code, overall = fiber.StatusServiceUnavailable, checkUnhealthy
	} else if redisCheck != checkHealthy {
		overall = "degraded"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":          overall,
		"checks":          fiber.Map{"database": dbCheck, "redis": redisCheck},
		"store_loaded_at": s.store.LoadedAt(),
		"time":            s.now(),
	})
}

func checkStatus(ping func() error) string {
	if err := ping(); err != nil {
		return checkUnhealthy
	}
	return checkHealthy
}

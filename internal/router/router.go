// Package router wires handlers and middleware onto echo.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-reservation/internal/config"
	"github.com/iliyamo/campus-reservation/internal/handler"
	"github.com/iliyamo/campus-reservation/internal/middleware"
	"github.com/iliyamo/campus-reservation/internal/model"
)

// Deps is everything Register mounts.  Redis may be nil, which disables
// rate limiting and response caching.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Metrics   http.Handler

	Bookings  *handler.BookingHandler
	Units     *handler.UnitHandler
	Resources *handler.ResourceHandler
}

// Register mounts the public probes and the authenticated /v1 API.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	v1 := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

	v1.GET("/resources/:id", d.Resources.Get, cache)
	v1.POST("/resources", d.Resources.Create, middleware.RequireRole(model.RoleAdmin, model.RoleFaculty), limit)

	v1.GET("/resources/:id/seats/:label", d.Units.Seat)

	v1.GET("/units", d.Units.List)
	v1.GET("/units/:id", d.Units.Get)
	v1.GET("/units/:id/booking", d.Units.Booking)

	v1.POST("/bookings/validate", d.Bookings.Validate)
	v1.POST("/bookings", d.Bookings.Create, limit)
	v1.GET("/bookings/:id", d.Bookings.Get)
	v1.DELETE("/bookings/:id", d.Bookings.Cancel, limit)
	v1.GET("/my-bookings", d.Bookings.Mine)

	v1.POST("/holds", d.Bookings.Hold, limit)
	v1.POST("/holds/:token/confirm", d.Bookings.Confirm, limit)
	v1.DELETE("/holds/:token", d.Bookings.Abort, limit)
}

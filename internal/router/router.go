package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/bar-booking/internal/handler"
	"github.com/iliyamo/bar-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Auth bundles what every protected group needs.  Limiter runs after
// JWTAuth so the bucket key can include the caller.
type Auth struct {
	JWTSecret string
	Limiter   echo.MiddlewareFunc
}

// group creates a /v1 group that requires a valid access token with one of
// roles.
func (a Auth) group(e *echo.Echo, roles ...string) *echo.Group {
	m := []echo.MiddlewareFunc{middleware.JWTAuth(a.JWTSecret)}
	if a.Limiter != nil {
		m = append(m, a.Limiter)
	}
	m = append(m, middleware.RequireRole(roles...))
	return e.Group("/v1", m...)
}

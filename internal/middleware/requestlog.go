package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/metrics"
)

// CorrelationHeader carries the request id across services.
const CorrelationHeader = "Correlation-ID"

// RequestLogger tags each request with a correlation id, stores a request
// scoped logrus entry in the context and records one access log line and
// latency observation per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			id := req.Header.Get(CorrelationHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(CorrelationHeader, id)

			entry := logrus.WithFields(logrus.Fields{
				"correlation_id": id,
				"method":         req.Method,
				"path":           req.URL.Path,
			})
			ctx := logging.ContextWithCorrelationID(req.Context(), id)
			c.SetRequest(req.WithContext(logging.ToContext(ctx, entry)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			elapsed := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			line := logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{
				"status":     status,
				"latency_ms": elapsed.Milliseconds(),
				"remote_ip":  c.RealIP(),
			})
			if status >= http.StatusInternalServerError {
				line.Error("request failed")
			} else {
				line.Info("request handled")
			}
			return nil
		}
	}
}

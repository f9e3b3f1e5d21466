package middleware

import (
	"context"
	"strings"
	"time"

	"scangate/internal/common"
	"scangate/internal/logging"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger writes one structured line per request and carries the request id
// into the context so service logs can be correlated.
type RequestLogger struct {
	logger zerolog.Logger
}

func NewRequestLogger(logger zerolog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger.With().Str("middleware", "http").Logger()}
}

func (m *RequestLogger) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			ctx, requestID := logging.WithRequestID(c.Request().Context(), c.Request().Header.Get(echo.HeaderXRequestID))
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			method := c.Request().Method
			path := c.Path()
			if m.shouldSkipLogging(method, path) {
				return nil
			}

			status := c.Response().Status
			event := m.logger.Info()
			switch {
			case status >= 500:
				event = m.logger.Error()
			case status >= 400:
				event = m.logger.Warn()
			}

			event = event.
				Str("request_id", requestID).
				Str("method", method).
				Str("path", path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent())
			event = withCaller(c.Request().Context(), event)
			if err != nil {
				event = event.Err(err)
			}
			if status >= 500 {
				event = event.Interface("headers", m.sanitizeHeaders(c.Request().Header))
			}
			event.Msg("HTTP request")

			return nil
		}
	}
}

func withCaller(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if principal := common.GetPrincipalFromContext(ctx); !principal.IsAnonymous() {
		event = event.Str("user_id", principal.UserID.String())
	}
	if tenantID, ok := common.GetTenantIDFromContext(ctx); ok {
		event = event.Str("tenant_id", tenantID.String())
	}
	return event
}

// shouldSkipLogging drops probe traffic.
func (m *RequestLogger) shouldSkipLogging(method, path string) bool {
	if method != "GET" {
		return false
	}
	for _, prefix := range []string{"/health", "/metrics", "/favicon", "/robots.txt"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *RequestLogger) sanitizeHeaders(headers map[string][]string) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(headers))
	for key, values := range headers {
		if m.isSensitiveHeader(key) {
			sanitized[key] = "[REDACTED]"
			continue
		}
		sanitized[key] = values
	}
	return sanitized
}

func (m *RequestLogger) isSensitiveHeader(header string) bool {
	switch strings.ToLower(header) {
	case "authorization", "cookie", "x-api-key", "x-auth-token", "proxy-authorization", "x-billing-signature", "x-session-id":
		return true
	}
	return false
}

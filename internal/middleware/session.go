package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"scangate/internal/common"
	"scangate/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "scangate_session"
)

// TenantResolver looks up the tenant selected for a session.
type TenantResolver interface {
	CurrentTenant(ctx context.Context, sessionID string) (*models.Tenant, error)
}

// Session assigns every request a session id (header, then cookie, else a new one)
// and loads the tenant selected for it into the request context.
func Session(tenants TenantResolver, ttl time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	l := logger.With().Str("middleware", "session").Logger()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := strings.TrimSpace(c.Request().Header.Get(SessionHeader))
			if sid == "" {
				if cookie, err := c.Cookie(SessionCookie); err == nil {
					sid = strings.TrimSpace(cookie.Value)
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    sid,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Response().Header().Set(SessionHeader, sid)

			ctx := context.WithValue(c.Request().Context(), common.SessionIDKey, sid)
			tenant, err := tenants.CurrentTenant(ctx, sid)
			if err != nil {
				l.Error().Err(err).Msg("Failed to load current tenant")
				return common.SendServerError(c, "failed to load session")
			}
			if tenant != nil {
				ctx = context.WithValue(ctx, common.TenantIDKey, tenant.ID)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

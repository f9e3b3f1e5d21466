package middleware

import (
	"scangate/internal/common"
	"scangate/internal/services"

	"github.com/labstack/echo/v4"
)

// PanelGuard gates routes behind a tenant panel.
type PanelGuard struct {
	access services.AccessDecisionService
}

func NewPanelGuard(access services.AccessDecisionService) *PanelGuard {
	return &PanelGuard{access: access}
}

// RequirePanel allows the request only when the caller may open panelCode in the
// current tenant. needEdit additionally demands edit rights.
func (g *PanelGuard) RequirePanel(panelCode string, needEdit bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			principal := common.GetPrincipalFromContext(ctx)

			decision, err := g.access.AuthorizePanelAccess(ctx, principal, common.GetTenantContext(ctx), panelCode, needEdit)
			if err != nil {
				return common.SendError(c, err)
			}
			if !decision.Allowed {
				if principal.IsAnonymous() && !principal.IsPlatformAdmin {
					return common.SendUnauthorizedError(c)
				}
				return common.SendForbiddenError(c, "PERMISSION_DENIED", decision.Reason)
			}

			return next(c)
		}
	}
}

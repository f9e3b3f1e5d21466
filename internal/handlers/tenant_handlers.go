package handlers

import (
	"net/http"

	"scangate/internal/common"
	"scangate/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers manages the tenant selected for the caller's session.
type TenantHandlers struct {
	tenancy services.TenancyDirectory
}

func NewTenantHandlers(tenancy services.TenancyDirectory) *TenantHandlers {
	return &TenantHandlers{tenancy: tenancy}
}

type selectTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// ListTenants handles GET /v1/tenants
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	ctx := c.Request().Context()
	tenants, err := h.tenancy.ListTenantsFor(ctx, common.GetPrincipalFromContext(ctx))
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
	})
}

// GetCurrentTenant handles GET /v1/tenants/current
func (h *TenantHandlers) GetCurrentTenant(c echo.Context) error {
	ctx := c.Request().Context()
	sid, ok := common.GetSessionIDFromContext(ctx)
	if !ok {
		return common.SendClientError(c, "session required")
	}

	tenant, err := h.tenancy.CurrentTenant(ctx, sid)
	if err != nil {
		return common.SendError(c, err)
	}
	if tenant == nil {
		return common.SendNotFoundError(c, "Current tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

// SetCurrentTenant handles PUT /v1/tenants/current. Callers may only select a
// tenant they belong to, unless they are platform admins.
func (h *TenantHandlers) SetCurrentTenant(c echo.Context) error {
	ctx := c.Request().Context()
	sid, ok := common.GetSessionIDFromContext(ctx)
	if !ok {
		return common.SendClientError(c, "session required")
	}

	var req selectTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	tenantID, err := common.ValidateUUID(req.TenantID, "tenant_id")
	if err != nil {
		return common.SendValidationError(c, "tenant_id", err.Error())
	}

	principal := common.GetPrincipalFromContext(ctx)
	if !principal.IsPlatformAdmin {
		tenants, err := h.tenancy.ListTenantsFor(ctx, principal)
		if err != nil {
			return common.SendError(c, err)
		}
		member := false
		for _, t := range tenants {
			if t.ID == tenantID {
				member = true
				break
			}
		}
		if !member {
			return common.SendForbiddenError(c, "PERMISSION_DENIED", "not a member of this tenant")
		}
	}

	if err := h.tenancy.SetCurrentTenant(ctx, sid, tenantID); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenant_id": tenantID,
	})
}

// ListPanels handles GET /v1/tenants/current/panels
func (h *TenantHandlers) ListPanels(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := common.GetTenantContext(ctx)
	if tenant == nil {
		return common.SendForbiddenError(c, "PERMISSION_DENIED", services.ReasonNoTenant)
	}

	panels, err := h.tenancy.ListEnabledPanels(ctx, common.GetPrincipalFromContext(ctx), tenant.TenantID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"panels": panels,
	})
}

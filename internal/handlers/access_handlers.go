package handlers

import (
	"net/http"
	"strconv"

	"scangate/internal/common"
	"scangate/internal/services"

	"github.com/labstack/echo/v4"
)

// AccessHandlers exposes the gate to the tool runners and the dashboard.
type AccessHandlers struct {
	access services.AccessDecisionService
}

func NewAccessHandlers(access services.AccessDecisionService) *AccessHandlers {
	return &AccessHandlers{access: access}
}

type consumeRequest struct {
	Units int `json:"units"`
}

// AuthorizeTool handles POST /v1/tools/:slug/authorize
func (h *AccessHandlers) AuthorizeTool(c echo.Context) error {
	ctx := c.Request().Context()
	decision, err := h.access.AuthorizeToolUse(ctx, common.GetPrincipalFromContext(ctx), common.GetTenantContext(ctx), c.Param("slug"))
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

// ConsumeTool handles POST /v1/tools/:slug/consume. It must be called once, after
// the tool actually ran.
func (h *AccessHandlers) ConsumeTool(c echo.Context) error {
	req := consumeRequest{Units: 1}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return common.SendClientError(c, "Invalid request format")
		}
	}
	if req.Units == 0 {
		req.Units = 1
	}
	if req.Units < 0 {
		return common.SendValidationError(c, "units", "must be at least 1")
	}

	ctx := c.Request().Context()
	decision, err := h.access.Consume(ctx, common.GetPrincipalFromContext(ctx), c.Param("slug"), req.Units)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

// PanelAccess handles GET /v1/panels/:code/access?edit=true
func (h *AccessHandlers) PanelAccess(c echo.Context) error {
	needEdit := false
	if raw := c.QueryParam("edit"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return common.SendValidationError(c, "edit", "must be true or false")
		}
		needEdit = v
	}

	ctx := c.Request().Context()
	decision, err := h.access.AuthorizePanelAccess(ctx, common.GetPrincipalFromContext(ctx), common.GetTenantContext(ctx), c.Param("code"), needEdit)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

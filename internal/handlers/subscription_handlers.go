package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles the caller's own subscriptions and the plan catalog.
type SubscriptionHandlers struct {
	subscriptions services.SubscriptionLedger
	catalog       services.EntitlementCatalog
	usage         services.UsageMeter
	now           func() time.Time
}

func NewSubscriptionHandlers(subscriptions services.SubscriptionLedger, catalog services.EntitlementCatalog, usage services.UsageMeter) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptions: subscriptions,
		catalog:       catalog,
		usage:         usage,
		now:           time.Now,
	}
}

// subscriptionView adds the derived fields clients show next to a subscription.
type subscriptionView struct {
	*models.Subscription
	RemainingDays int  `json:"remaining_days"`
	TrialActive   bool `json:"trial_active"`
}

func (h *SubscriptionHandlers) view(subscription *models.Subscription) subscriptionView {
	now := h.now()
	return subscriptionView{
		Subscription:  subscription,
		RemainingDays: subscription.RemainingDays(now),
		TrialActive:   subscription.IsTrialActiveAt(now),
	}
}

type changePlanRequest struct {
	PlanSlug string `json:"plan_slug"`
}

type startTrialRequest struct {
	PlanSlug string `json:"plan_slug"`
	Days     int    `json:"days"`
}

// validateUUID validates the :id path parameter
func (h *SubscriptionHandlers) validateUUID(c echo.Context) (uuid.UUID, error) {
	return common.ValidateUUID(c.Param("id"), "id")
}

// ListPlans handles GET /v1/plans
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	plans, err := h.catalog.ListPlans(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": plans,
	})
}

// ListSubscriptions handles GET /v1/subscriptions
func (h *SubscriptionHandlers) ListSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()
	principal := common.GetPrincipalFromContext(ctx)

	limit := 10
	offset := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}

	subscriptions, err := h.subscriptions.List(ctx, principal.UserID, limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	views := make([]subscriptionView, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		views = append(views, h.view(subscription))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": views,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetCurrentSubscription handles GET /v1/subscriptions/current
func (h *SubscriptionHandlers) GetCurrentSubscription(c echo.Context) error {
	ctx := c.Request().Context()
	principal := common.GetPrincipalFromContext(ctx)

	subscription, err := h.subscriptions.ActiveSubscriptionFor(ctx, principal.UserID)
	if err != nil {
		return common.SendError(c, err)
	}
	if subscription == nil {
		return common.SendNotFoundError(c, "Active subscription")
	}
	expired, err := h.subscriptions.ExpireIfDue(ctx, subscription)
	if err != nil {
		return common.SendError(c, err)
	}
	if expired {
		return common.SendNotFoundError(c, "Active subscription")
	}
	return c.JSON(http.StatusOK, h.view(subscription))
}

// GetSubscriptionByID handles GET /v1/subscriptions/:id
func (h *SubscriptionHandlers) GetSubscriptionByID(c echo.Context) error {
	id, err := h.validateUUID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	ctx := c.Request().Context()
	subscription, err := h.subscriptions.GetByID(ctx, common.GetPrincipalFromContext(ctx).UserID, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, h.view(subscription))
}

// ChangePlan handles POST /v1/subscriptions/change-plan
func (h *SubscriptionHandlers) ChangePlan(c echo.Context) error {
	var req changePlanRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.PlanSlug, "plan_slug"); err != nil {
		return common.SendValidationError(c, "plan_slug", err.Error())
	}

	ctx := c.Request().Context()
	subscription, err := h.subscriptions.ChangePlan(ctx, common.GetPrincipalFromContext(ctx).UserID, req.PlanSlug)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Plan changed successfully",
		"subscription": h.view(subscription),
	})
}

// StartTrial handles POST /v1/subscriptions/trial
func (h *SubscriptionHandlers) StartTrial(c echo.Context) error {
	var req startTrialRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.PlanSlug, "plan_slug"); err != nil {
		return common.SendValidationError(c, "plan_slug", err.Error())
	}

	ctx := c.Request().Context()
	subscription, err := h.subscriptions.StartTrial(ctx, common.GetPrincipalFromContext(ctx).UserID, req.PlanSlug, req.Days)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, h.view(subscription))
}

// CancelSubscription handles POST /v1/subscriptions/:id/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	return h.transition(c, h.subscriptions.Cancel, "Subscription cancelled successfully")
}

// PauseSubscription handles POST /v1/subscriptions/:id/pause
func (h *SubscriptionHandlers) PauseSubscription(c echo.Context) error {
	return h.transition(c, h.subscriptions.Pause, "Subscription paused successfully")
}

// ResumeSubscription handles POST /v1/subscriptions/:id/resume
func (h *SubscriptionHandlers) ResumeSubscription(c echo.Context) error {
	return h.transition(c, h.subscriptions.Resume, "Subscription resumed successfully")
}

// ToolUsage handles GET /v1/subscriptions/current/usage/:tool
func (h *SubscriptionHandlers) ToolUsage(c echo.Context) error {
	ctx := c.Request().Context()
	principal := common.GetPrincipalFromContext(ctx)

	tool, err := h.catalog.ToolBySlug(ctx, c.Param("tool"))
	if err != nil {
		return common.SendError(c, err)
	}
	subscription, err := h.subscriptions.ActiveSubscriptionFor(ctx, principal.UserID)
	if err != nil {
		return common.SendError(c, err)
	}
	if subscription == nil {
		return common.SendNotFoundError(c, "Active subscription")
	}

	snapshot, err := h.usage.Usage(ctx, subscription, tool.ID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *SubscriptionHandlers) transition(c echo.Context, apply func(ctx context.Context, userID, id uuid.UUID) error, message string) error {
	id, err := h.validateUUID(c)
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	ctx := c.Request().Context()
	if err := apply(ctx, common.GetPrincipalFromContext(ctx).UserID, id); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": message,
	})
}

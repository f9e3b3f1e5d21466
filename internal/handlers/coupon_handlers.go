package handlers

import (
	"net/http"

	"scangate/internal/common"
	"scangate/internal/metrics"
	"scangate/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CouponHandlers prices plan purchases and records redemptions.
type CouponHandlers struct {
	coupons services.CouponEngine
	metrics *metrics.Metrics
}

func NewCouponHandlers(coupons services.CouponEngine, m *metrics.Metrics) *CouponHandlers {
	return &CouponHandlers{coupons: coupons, metrics: m}
}

type quoteRequest struct {
	Codes    []string `json:"codes"`
	PlanSlug string   `json:"plan_slug"`
	Cycle    string   `json:"cycle"`
}

type redeemRequest struct {
	Code           string `json:"code"`
	PlanSlug       string `json:"plan_slug"`
	Cycle          string `json:"cycle"`
	SubscriptionID string `json:"subscription_id"`
}

// Quote handles POST /v1/coupons/quote. Nothing is reserved.
func (h *CouponHandlers) Quote(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.PlanSlug, "plan_slug"); err != nil {
		return common.SendValidationError(c, "plan_slug", err.Error())
	}

	ctx := c.Request().Context()
	quote, err := h.coupons.Quote(ctx, services.QuoteRequest{
		Codes:    req.Codes,
		UserID:   common.GetPrincipalFromContext(ctx).UserID,
		PlanSlug: req.PlanSlug,
		Cycle:    req.Cycle,
	})
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Redeem handles POST /v1/coupons/redeem. The discount is priced the same way as
// Quote and then recorded against the coupon.
func (h *CouponHandlers) Redeem(c echo.Context) error {
	var req redeemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Code, "code"); err != nil {
		return common.SendValidationError(c, "code", err.Error())
	}
	if err := common.ValidateRequiredString(req.PlanSlug, "plan_slug"); err != nil {
		return common.SendValidationError(c, "plan_slug", err.Error())
	}

	var subscriptionID *uuid.UUID
	if req.SubscriptionID != "" {
		id, err := common.ValidateUUID(req.SubscriptionID, "subscription_id")
		if err != nil {
			return common.SendValidationError(c, "subscription_id", err.Error())
		}
		subscriptionID = &id
	}

	ctx := c.Request().Context()
	userID := common.GetPrincipalFromContext(ctx).UserID

	quote, err := h.coupons.Quote(ctx, services.QuoteRequest{
		Codes:    []string{req.Code},
		UserID:   userID,
		PlanSlug: req.PlanSlug,
		Cycle:    req.Cycle,
	})
	if err != nil {
		h.record(err)
		return common.SendError(c, err)
	}

	redemption, err := h.coupons.Redeem(ctx, services.RedeemRequest{
		Code:           req.Code,
		UserID:         userID,
		PlanID:         &quote.PlanID,
		SubscriptionID: subscriptionID,
		Amount:         quote.Discount,
	})
	h.record(err)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"redemption": redemption,
		"quote":      quote,
	})
}

func (h *CouponHandlers) record(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case common.IsKind(err, common.ErrConflict):
		outcome = "conflict"
	case common.IsKind(err, common.ErrPermissionDenied):
		outcome = "denied"
	case common.IsKind(err, common.ErrNotFound):
		outcome = "not_found"
	case common.IsKind(err, common.ErrValidation):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	h.metrics.RedemptionsTotal.WithLabelValues(outcome).Inc()
}

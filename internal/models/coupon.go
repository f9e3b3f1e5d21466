package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

type Coupon struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Code         string          `json:"code" db:"code"`
	Description  string          `json:"description" db:"description"`
	DiscountType string          `json:"discount_type" db:"discount_type"`
	Value        decimal.Decimal `json:"value" db:"value"`
	ValidFrom    *time.Time      `json:"valid_from,omitempty" db:"valid_from"`
	ValidTo      *time.Time      `json:"valid_to,omitempty" db:"valid_to"`
	MaxUses      *int            `json:"max_uses,omitempty" db:"max_uses"`
	PerUserLimit int             `json:"per_user_limit" db:"per_user_limit"`
	Stackable    bool            `json:"stackable" db:"stackable"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	UsageCount   int             `json:"usage_count" db:"usage_count"`
	// Scope sets; empty means the coupon applies to everything of that kind.
	PlanIDs   []uuid.UUID `json:"plan_ids,omitempty"`
	ToolIDs   []uuid.UUID `json:"tool_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// IsValidAt checks the active flag, the validity window and the global use cap.
func (c *Coupon) IsValidAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	if c.MaxUses != nil && c.UsageCount >= *c.MaxUses {
		return false
	}
	return true
}

func (c *Coupon) AppliesToPlan(planID uuid.UUID) bool {
	return inScope(c.PlanIDs, planID)
}

func (c *Coupon) AppliesToTool(toolID uuid.UUID) bool {
	return inScope(c.ToolIDs, toolID)
}

func inScope(scope []uuid.UUID, id uuid.UUID) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if s == id {
			return true
		}
	}
	return false
}

// Discount returns the amount taken off price, never more than price itself.
func (c *Coupon) Discount(price decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		amount = price.Mul(c.Value).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(price) {
		amount = price
	}
	return amount.Round(2)
}

// CouponRedemption records one application of a coupon. Rows are never updated.
type CouponRedemption struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	CouponID         uuid.UUID       `json:"coupon_id" db:"coupon_id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	SubscriptionID   *uuid.UUID      `json:"subscription_id,omitempty" db:"subscription_id"`
	PlanID           *uuid.UUID      `json:"plan_id,omitempty" db:"plan_id"`
	AmountDiscounted decimal.Decimal `json:"amount_discounted" db:"amount_discounted"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PeriodMonth = "month"
	PeriodYear  = "year"
)

const (
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

type Plan struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	Slug                 string          `json:"slug" db:"slug"`
	Name                 string          `json:"name" db:"name"`
	Description          string          `json:"description" db:"description"`
	MonthlyPrice         decimal.Decimal `json:"monthly_price" db:"monthly_price"`
	YearlyPrice          decimal.Decimal `json:"yearly_price" db:"yearly_price"`
	MonthlyAttemptsLimit int             `json:"monthly_attempts_limit" db:"monthly_attempts_limit"`
	YearlyAttemptsLimit  int             `json:"yearly_attempts_limit" db:"yearly_attempts_limit"`
	MonthlyFeatures      string          `json:"monthly_features" db:"monthly_features"`
	YearlyFeatures       string          `json:"yearly_features" db:"yearly_features"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}

// PriceFor returns the plan price for a billing cycle ("monthly" or "yearly").
func (p *Plan) PriceFor(cycle string) decimal.Decimal {
	if cycle == BillingYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// AttemptsFor returns the attempt budget for a subscription window. Windows of at
// least 365 days get the yearly budget.
func (p *Plan) AttemptsFor(start, end time.Time) int {
	if IsYearlyWindow(start, end) {
		return p.YearlyAttemptsLimit
	}
	return p.MonthlyAttemptsLimit
}

func IsYearlyWindow(start, end time.Time) bool {
	return end.Sub(start) >= 365*24*time.Hour
}

type Tool struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Slug    string    `json:"slug" db:"slug"`
	Title   string    `json:"title" db:"title"`
	Command *string   `json:"command,omitempty" db:"command"`
}

type Scanner struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Command     string    `json:"command" db:"command"`
}

type IntegrationPartner struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// PlanAccess is a plan_tool_access or plan_scanner_access row.
type PlanAccess struct {
	PlanID     uuid.UUID       `json:"plan_id" db:"plan_id"`
	TargetID   uuid.UUID       `json:"target_id" db:"target_id"`
	Included   bool            `json:"included" db:"included"`
	ExtraPrice decimal.Decimal `json:"extra_price" db:"extra_price"`
}

type PlanIntegration struct {
	PlanID       uuid.UUID       `json:"plan_id" db:"plan_id"`
	PartnerID    uuid.UUID       `json:"partner_id" db:"partner_id"`
	Included     bool            `json:"included" db:"included"`
	MonthlyLimit int             `json:"monthly_limit" db:"monthly_limit"`
	OveragePrice decimal.Decimal `json:"overage_price" db:"overage_price"`
}

// ToolUsageLimit caps usage of one tool per period. Limit 0 means unlimited.
type ToolUsageLimit struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	PlanID       uuid.UUID       `json:"plan_id" db:"plan_id"`
	ToolID       uuid.UUID       `json:"tool_id" db:"tool_id"`
	Period       string          `json:"period" db:"period"`
	Limit        int             `json:"limit" db:"usage_limit"`
	OveragePrice decimal.Decimal `json:"overage_price" db:"overage_price"`
}

func (l *ToolUsageLimit) Unlimited() bool {
	return l == nil || l.Limit == 0
}

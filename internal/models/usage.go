package models

import (
	"time"

	"github.com/google/uuid"
)

// ToolUsageCounter tallies consumption of one tool for one subscription and period.
type ToolUsageCounter struct {
	ID              uuid.UUID `json:"id" db:"id"`
	SubscriptionID  uuid.UUID `json:"subscription_id" db:"subscription_id"`
	ToolID          uuid.UUID `json:"tool_id" db:"tool_id"`
	Period          string    `json:"period" db:"period"`
	WindowStartedAt time.Time `json:"window_started_at" db:"window_started_at"`
	Used            int       `json:"used" db:"used"`
}

// UsageSnapshot is a read-only view of a subscription's standing for one tool.
type UsageSnapshot struct {
	ToolID    uuid.UUID `json:"tool_id"`
	Included  bool      `json:"included"`
	Period    string    `json:"period"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Unlimited bool      `json:"unlimited"`
	Remaining int       `json:"remaining"`
}

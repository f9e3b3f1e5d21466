package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
	SubscriptionTrial     = "trial"
	SubscriptionPaused    = "paused"
)

type Subscription struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	PlanID        uuid.UUID  `json:"plan_id" db:"plan_id"`
	Status        string     `json:"status" db:"status"`
	PaymentMethod *string    `json:"payment_method,omitempty" db:"payment_method"`
	StartDate     time.Time  `json:"start_date" db:"start_date"`
	EndDate       time.Time  `json:"end_date" db:"end_date"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RenewedAt     *time.Time `json:"renewed_at,omitempty" db:"renewed_at"`
	AttemptsLeft  int        `json:"attempts_left" db:"attempts_left"`
	TimesRenewed  int        `json:"times_renewed" db:"times_renewed"`
	IsTrial       bool       `json:"is_trial" db:"is_trial"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActiveAt reports whether the subscription is flagged active and not past its end date.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndDate.After(now)
}

func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return !s.EndDate.After(now)
}

func (s *Subscription) RemainingDays(now time.Time) int {
	if !s.EndDate.After(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}

func (s *Subscription) IsTrialActiveAt(now time.Time) bool {
	return s.IsTrial && s.IsActiveAt(now)
}

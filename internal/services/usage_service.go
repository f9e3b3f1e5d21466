package services

import (
	"context"
	"fmt"
	"time"

	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/repositories"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UsageMeter keeps the per-tool, per-period consumption counters.
type UsageMeter interface {
	CanUseTool(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (bool, error)
	Consume(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID, units int) error
	ResetCounters(ctx context.Context, subscriptionID uuid.UUID, period string) (int64, error)
	Usage(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (*models.UsageSnapshot, error)
	StaleCounterSubscriptions(ctx context.Context, period string, olderThan time.Time) ([]uuid.UUID, error)
}

type usageService struct {
	counterRepo repositories.UsageCounterRepository
	planRepo    repositories.PlanRepository
	tx          database.TxManager
	now         func() time.Time
	logger      zerolog.Logger
}

func NewUsageService(
	counterRepo repositories.UsageCounterRepository,
	planRepo repositories.PlanRepository,
	tx database.TxManager,
	logger zerolog.Logger,
) UsageMeter {
	return &usageService{
		counterRepo: counterRepo,
		planRepo:    planRepo,
		tx:          tx,
		now:         time.Now,
		logger:      logger.With().Str("service", "usage").Logger(),
	}
}

// CanUseTool is a read-only check. Callers must have run ExpireIfDue first.
func (s *usageService) CanUseTool(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (bool, error) {
	included, err := toolIncluded(ctx, s.planRepo, subscription.PlanID, toolID)
	if err != nil || !included {
		return false, err
	}

	limit, err := governingLimit(ctx, s.planRepo, subscription.PlanID, toolID)
	if err != nil {
		return false, err
	}
	if limit.Unlimited() {
		return true, nil
	}

	used, err := s.used(ctx, subscription.ID, toolID, limit.Period)
	if err != nil {
		return false, err
	}
	return used < limit.Limit, nil
}

// Consume re-validates entitlement and records units against the governing counter.
// The counter row is created if missing and locked before the limit check, so the
// check and the increment see the same value.
func (s *usageService) Consume(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID, units int) error {
	if units < 1 {
		return common.Invalid("units must be at least 1")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		included, err := toolIncluded(ctx, s.planRepo, subscription.PlanID, toolID)
		if err != nil {
			return err
		}
		if !included {
			return common.Denied("tool is not included in the plan")
		}

		limit, err := governingLimit(ctx, s.planRepo, subscription.PlanID, toolID)
		if err != nil {
			return err
		}
		period := models.PeriodMonth
		if limit != nil {
			period = limit.Period
		}

		if err := s.counterRepo.Ensure(ctx, subscription.ID, toolID, period); err != nil {
			return fmt.Errorf("failed to create usage counter: %w", err)
		}
		counter, err := s.counterRepo.LockForUpdate(ctx, subscription.ID, toolID, period)
		if err != nil {
			return fmt.Errorf("failed to lock usage counter: %w", err)
		}

		if !limit.Unlimited() && counter.Used+units > limit.Limit {
			s.logger.Info().
				Str("subscription_id", subscription.ID.String()).
				Str("tool_id", toolID.String()).
				Int("used", counter.Used).
				Int("limit", limit.Limit).
				Msg("Usage limit reached")
			return common.Conflict("usage limit reached for this tool")
		}

		if err := s.counterRepo.Increment(ctx, counter.ID, units); err != nil {
			return fmt.Errorf("failed to increment usage counter: %w", err)
		}
		return nil
	})
}

// ResetCounters is invoked by the scheduler at period boundaries.
func (s *usageService) ResetCounters(ctx context.Context, subscriptionID uuid.UUID, period string) (int64, error) {
	if period != models.PeriodMonth && period != models.PeriodYear {
		return 0, common.Invalid("unknown period %q", period)
	}
	n, err := s.counterRepo.ResetForSubscription(ctx, subscriptionID, period, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset counters: %w", err)
	}
	return n, nil
}

func (s *usageService) Usage(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (*models.UsageSnapshot, error) {
	snapshot := &models.UsageSnapshot{ToolID: toolID, Period: models.PeriodMonth}

	included, err := toolIncluded(ctx, s.planRepo, subscription.PlanID, toolID)
	if err != nil {
		return nil, err
	}
	snapshot.Included = included

	limit, err := governingLimit(ctx, s.planRepo, subscription.PlanID, toolID)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		snapshot.Period = limit.Period
		snapshot.Limit = limit.Limit
	}
	snapshot.Unlimited = limit.Unlimited()

	if snapshot.Used, err = s.used(ctx, subscription.ID, toolID, snapshot.Period); err != nil {
		return nil, err
	}
	if !snapshot.Unlimited && snapshot.Limit > snapshot.Used {
		snapshot.Remaining = snapshot.Limit - snapshot.Used
	}
	return snapshot, nil
}

func (s *usageService) StaleCounterSubscriptions(ctx context.Context, period string, olderThan time.Time) ([]uuid.UUID, error) {
	return s.counterRepo.ListStaleSubscriptions(ctx, period, olderThan)
}

func (s *usageService) used(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (int, error) {
	counter, err := s.counterRepo.Get(ctx, subscriptionID, toolID, period)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load usage counter: %w", err)
	}
	return counter.Used, nil
}

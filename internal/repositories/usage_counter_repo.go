package repositories

import (
	"context"
	"time"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

type UsageCounterRepository interface {
	Get(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error)
	Ensure(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) error
	LockForUpdate(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error)
	Increment(ctx context.Context, id uuid.UUID, units int) error
	ResetForSubscription(ctx context.Context, subscriptionID uuid.UUID, period string, now time.Time) (int64, error)
	ListStaleSubscriptions(ctx context.Context, period string, before time.Time) ([]uuid.UUID, error)
}

type usageCounterRepo struct {
	db database.Pool
}

func NewUsageCounterRepo(db database.Pool) UsageCounterRepository {
	return &usageCounterRepo{db: db}
}

func (r *usageCounterRepo) Get(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error) {
	c := &models.ToolUsageCounter{}
	query := `
		SELECT id, subscription_id, tool_id, period, window_started_at, used
		FROM tool_usage_counters
		WHERE subscription_id = $1 AND tool_id = $2 AND period = $3
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, subscriptionID, toolID, period).Scan(&c.ID, &c.SubscriptionID, &c.ToolID, &c.Period, &c.WindowStartedAt, &c.Used)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Ensure creates the zero counter row if it is missing. Concurrent callers race on
// the unique key and the loser does nothing.
func (r *usageCounterRepo) Ensure(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) error {
	query := `
		INSERT INTO tool_usage_counters (id, subscription_id, tool_id, period, window_started_at, used)
		VALUES ($1, $2, $3, $4, NOW(), 0)
		ON CONFLICT (subscription_id, tool_id, period) DO NOTHING
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, uuid.New(), subscriptionID, toolID, period)
	return err
}

// LockForUpdate must run inside a transaction; the row stays locked until it ends.
func (r *usageCounterRepo) LockForUpdate(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error) {
	c := &models.ToolUsageCounter{}
	query := `
		SELECT id, subscription_id, tool_id, period, window_started_at, used
		FROM tool_usage_counters
		WHERE subscription_id = $1 AND tool_id = $2 AND period = $3
		FOR UPDATE
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, subscriptionID, toolID, period).Scan(&c.ID, &c.SubscriptionID, &c.ToolID, &c.Period, &c.WindowStartedAt, &c.Used)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *usageCounterRepo) Increment(ctx context.Context, id uuid.UUID, units int) error {
	query := `UPDATE tool_usage_counters SET used = used + $1 WHERE id = $2`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, units, id)
	return err
}

// ResetForSubscription zeroes every counter of one period for a subscription and
// starts a new window.
func (r *usageCounterRepo) ResetForSubscription(ctx context.Context, subscriptionID uuid.UUID, period string, now time.Time) (int64, error) {
	query := `
		UPDATE tool_usage_counters
		SET used = 0, window_started_at = $1
		WHERE subscription_id = $2 AND period = $3
	`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, now, subscriptionID, period)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListStaleSubscriptions returns subscriptions holding a counter of period whose
// window began before the cutoff.
func (r *usageCounterRepo) ListStaleSubscriptions(ctx context.Context, period string, before time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT subscription_id
		FROM tool_usage_counters
		WHERE period = $1 AND window_started_at < $2
	`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, period, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

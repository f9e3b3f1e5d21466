package repositories

import (
	"context"
	"errors"
	"time"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetLatestByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetByUserAndPlanForUpdate(ctx context.Context, userID, planID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	Cancel(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error)
	Pause(ctx context.Context, id, userID uuid.UUID) (bool, error)
	Resume(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	UseAttempt(ctx context.Context, id uuid.UUID) (int, bool, error)
	SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error
}

type subscriptionRepo struct {
	db database.Pool
}

func NewSubscriptionRepo(db database.Pool) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, payment_method, start_date, end_date, cancelled_at, renewed_at, attempts_left, times_renewed, is_trial, created_at, updated_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.PaymentMethod, &s.StartDate, &s.EndDate, &s.CancelledAt, &s.RenewedAt, &s.AttemptsLeft, &s.TimesRenewed, &s.IsTrial, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, s *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, payment_method, start_date, end_date, attempts_left, times_renewed, is_trial, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, s.ID, s.UserID, s.PlanID, s.Status, s.PaymentMethod, s.StartDate, s.EndDate, s.AttemptsLeft, s.TimesRenewed, s.IsTrial)
	return err
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(database.Conn(ctx, r.db).QueryRow(ctx, query, id))
}

// GetActiveByUser returns the user's subscription flagged active, newest end date first.
func (r *subscriptionRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY end_date DESC
		LIMIT 1
	`
	return scanSubscription(database.Conn(ctx, r.db).QueryRow(ctx, query, userID))
}

func (r *subscriptionRepo) GetLatestByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`
	return scanSubscription(database.Conn(ctx, r.db).QueryRow(ctx, query, userID))
}

func (r *subscriptionRepo) GetByUserAndPlanForUpdate(ctx context.Context, userID, planID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND plan_id = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`
	return scanSubscription(database.Conn(ctx, r.db).QueryRow(ctx, query, userID, planID))
}

// Update overwrites the lifecycle fields. attempts_left is written as an absolute
// value here; per-request consumption must go through UseAttempt.
func (r *subscriptionRepo) Update(ctx context.Context, s *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, status = $2, payment_method = $3, start_date = $4, end_date = $5, cancelled_at = $6, renewed_at = $7, attempts_left = $8, times_renewed = $9, is_trial = $10, updated_at = NOW()
		WHERE id = $11
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, s.PlanID, s.Status, s.PaymentMethod, s.StartDate, s.EndDate, s.CancelledAt, s.RenewedAt, s.AttemptsLeft, s.TimesRenewed, s.IsTrial, s.ID)
	return err
}

// Cancel, Pause and Resume write status columns only, guarded by the state the
// transition starts from. They report false when no row matched.
func (r *subscriptionRepo) Cancel(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status NOT IN ('cancelled', 'expired')
	`
	return r.transition(ctx, query, id, userID, now)
}

func (r *subscriptionRepo) Pause(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'paused', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`
	return r.transition(ctx, query, id, userID)
}

func (r *subscriptionRepo) Resume(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'paused' AND end_date > $3
	`
	return r.transition(ctx, query, id, userID, now)
}

func (r *subscriptionRepo) transition(ctx context.Context, query string, args ...any) (bool, error) {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, s)
	}
	return subscriptions, rows.Err()
}

// MarkExpired flips one subscription to expired if its end date has passed.
func (r *subscriptionRepo) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status <> 'expired' AND end_date <= $2
	`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireDue expires every active subscription past its end date.
func (r *subscriptionRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND end_date <= $1
	`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UseAttempt decrements attempts_left by one in a single conditional statement and
// returns the balance left after it. It reports false when nothing was left or the
// subscription is not active, which includes an active flag whose end date has
// already passed.
func (r *subscriptionRepo) UseAttempt(ctx context.Context, id uuid.UUID) (int, bool, error) {
	query := `
		UPDATE subscriptions
		SET attempts_left = attempts_left - 1, updated_at = NOW()
		WHERE id = $1 AND attempts_left > 0 AND status = 'active' AND end_date > NOW()
		RETURNING attempts_left
	`
	var left int
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return left, true, nil
}

func (r *subscriptionRepo) SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	query := `UPDATE subscriptions SET attempts_left = $1, updated_at = NOW() WHERE id = $2`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, attempts, id)
	return err
}

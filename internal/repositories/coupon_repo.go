package repositories

import (
	"context"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	CountRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int, error)
	CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	IncrementUsage(ctx context.Context, couponID uuid.UUID) error
}

type couponRepo struct {
	db database.Pool
}

func NewCouponRepo(db database.Pool) CouponRepository {
	return &couponRepo{db: db}
}

const couponColumns = `id, code, description, discount_type, value, valid_from, valid_to, max_uses, per_user_limit, stackable, is_active, usage_count, created_at, updated_at`

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	return r.load(ctx, query, code)
}

// GetByCodeForUpdate locks the coupon row; redemptions of one coupon serialize on it.
func (r *couponRepo) GetByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`
	return r.load(ctx, query, code)
}

func (r *couponRepo) load(ctx context.Context, query, code string) (*models.Coupon, error) {
	c := &models.Coupon{}
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.Value, &c.ValidFrom, &c.ValidTo,
		&c.MaxUses, &c.PerUserLimit, &c.Stackable, &c.IsActive, &c.UsageCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.PlanIDs, err = r.scopeIDs(ctx, `SELECT plan_id FROM coupon_plans WHERE coupon_id = $1`, c.ID); err != nil {
		return nil, err
	}
	if c.ToolIDs, err = r.scopeIDs(ctx, `SELECT tool_id FROM coupon_tools WHERE coupon_id = $1`, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *couponRepo) scopeIDs(ctx context.Context, query string, couponID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, couponID)
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

func (r *couponRepo) CountRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, couponID, userID).Scan(&count)
	return count, err
}

func (r *couponRepo) CreateRedemption(ctx context.Context, red *models.CouponRedemption) error {
	query := `
		INSERT INTO coupon_redemptions (id, coupon_id, user_id, subscription_id, plan_id, amount_discounted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	return database.Conn(ctx, r.db).QueryRow(ctx, query, red.ID, red.CouponID, red.UserID, red.SubscriptionID, red.PlanID, red.AmountDiscounted).Scan(&red.CreatedAt)
}

func (r *couponRepo) IncrementUsage(ctx context.Context, couponID uuid.UUID) error {
	query := `UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, couponID)
	return err
}

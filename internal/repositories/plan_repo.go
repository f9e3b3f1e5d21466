package repositories

import (
	"context"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

// PlanRepository is the read side of the entitlement catalog. Catalog rows are
// curated by administrators and read here without locks.
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetBySlug(ctx context.Context, slug string) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)
	GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error)
	GetToolAccess(ctx context.Context, planID, toolID uuid.UUID) (*models.PlanAccess, error)
	GetScannerAccess(ctx context.Context, planID, scannerID uuid.UUID) (*models.PlanAccess, error)
	GetIntegration(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error)
	ListUsageLimits(ctx context.Context, planID, toolID uuid.UUID) ([]*models.ToolUsageLimit, error)
}

type planRepo struct {
	db database.Pool
}

func NewPlanRepo(db database.Pool) PlanRepository {
	return &planRepo{db: db}
}

const planColumns = `id, slug, name, description, monthly_price, yearly_price, monthly_attempts_limit, yearly_attempts_limit, monthly_features, yearly_features, created_at`

func scanPlan(row interface{ Scan(dest ...any) error }) (*models.Plan, error) {
	p := &models.Plan{}
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.MonthlyPrice, &p.YearlyPrice, &p.MonthlyAttemptsLimit, &p.YearlyAttemptsLimit, &p.MonthlyFeatures, &p.YearlyFeatures, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return scanPlan(database.Conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *planRepo) GetBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE slug = $1`
	return scanPlan(database.Conn(ctx, r.db).QueryRow(ctx, query, slug))
}

func (r *planRepo) List(ctx context.Context) ([]*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY monthly_price`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *planRepo) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	tool := &models.Tool{}
	query := `SELECT id, slug, title, command FROM tools WHERE slug = $1`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, slug).Scan(&tool.ID, &tool.Slug, &tool.Title, &tool.Command)
	if err != nil {
		return nil, err
	}
	return tool, nil
}

func (r *planRepo) GetToolAccess(ctx context.Context, planID, toolID uuid.UUID) (*models.PlanAccess, error) {
	a := &models.PlanAccess{}
	query := `
		SELECT plan_id, tool_id, included, extra_price
		FROM plan_tool_access
		WHERE plan_id = $1 AND tool_id = $2
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, planID, toolID).Scan(&a.PlanID, &a.TargetID, &a.Included, &a.ExtraPrice)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *planRepo) GetScannerAccess(ctx context.Context, planID, scannerID uuid.UUID) (*models.PlanAccess, error) {
	a := &models.PlanAccess{}
	query := `
		SELECT plan_id, scanner_id, included, extra_price
		FROM plan_scanner_access
		WHERE plan_id = $1 AND scanner_id = $2
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, planID, scannerID).Scan(&a.PlanID, &a.TargetID, &a.Included, &a.ExtraPrice)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *planRepo) GetIntegration(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error) {
	pi := &models.PlanIntegration{}
	query := `
		SELECT plan_id, partner_id, included, monthly_limit, overage_price
		FROM plan_integrations
		WHERE plan_id = $1 AND partner_id = $2
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, planID, partnerID).Scan(&pi.PlanID, &pi.PartnerID, &pi.Included, &pi.MonthlyLimit, &pi.OveragePrice)
	if err != nil {
		return nil, err
	}
	return pi, nil
}

// ListUsageLimits returns every limit row for (plan, tool), monthly first.
func (r *planRepo) ListUsageLimits(ctx context.Context, planID, toolID uuid.UUID) ([]*models.ToolUsageLimit, error) {
	query := `
		SELECT id, plan_id, tool_id, period, usage_limit, overage_price
		FROM tool_usage_limits
		WHERE plan_id = $1 AND tool_id = $2
		ORDER BY CASE period WHEN 'month' THEN 0 ELSE 1 END
	`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, planID, toolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var limits []*models.ToolUsageLimit
	for rows.Next() {
		l := &models.ToolUsageLimit{}
		if err := rows.Scan(&l.ID, &l.PlanID, &l.ToolID, &l.Period, &l.Limit, &l.OveragePrice); err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

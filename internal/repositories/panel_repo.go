package repositories

import (
	"context"
	"strconv"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

// PanelRepository covers panels, their per-tenant enablement and per-user overrides.
type PanelRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Panel, error)
	IsEnabledForTenant(ctx context.Context, tenantID, panelID uuid.UUID) (bool, error)
	EnableForTenant(ctx context.Context, tenantID, panelID uuid.UUID) error
	GetUserPermission(ctx context.Context, membershipID, panelID uuid.UUID) (*models.UserPanelPermission, error)
	ListEnabled(ctx context.Context, scope TenantScopePolicy) ([]*models.Panel, error)
}

type panelRepo struct {
	db database.Pool
}

func NewPanelRepo(db database.Pool) PanelRepository {
	return &panelRepo{db: db}
}

func (r *panelRepo) GetByCode(ctx context.Context, code string) (*models.Panel, error) {
	panel := &models.Panel{}
	query := `SELECT id, code, name FROM panels WHERE code = $1`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, code).Scan(&panel.ID, &panel.Code, &panel.Name)
	if err != nil {
		return nil, err
	}
	return panel, nil
}

func (r *panelRepo) IsEnabledForTenant(ctx context.Context, tenantID, panelID uuid.UUID) (bool, error) {
	var enabled bool
	query := `SELECT EXISTS (SELECT 1 FROM firm_panels WHERE tenant_id = $1 AND panel_id = $2)`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, tenantID, panelID).Scan(&enabled)
	return enabled, err
}

func (r *panelRepo) EnableForTenant(ctx context.Context, tenantID, panelID uuid.UUID) error {
	query := `
		INSERT INTO firm_panels (id, tenant_id, panel_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, panel_id) DO NOTHING
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, uuid.New(), tenantID, panelID)
	return err
}

func (r *panelRepo) GetUserPermission(ctx context.Context, membershipID, panelID uuid.UUID) (*models.UserPanelPermission, error) {
	p := &models.UserPanelPermission{}
	query := `
		SELECT id, membership_id, panel_id, can_view, can_edit
		FROM user_panel_permissions
		WHERE membership_id = $1 AND panel_id = $2
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, membershipID, panelID).Scan(&p.ID, &p.MembershipID, &p.PanelID, &p.CanView, &p.CanEdit)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *panelRepo) ListEnabled(ctx context.Context, scope TenantScopePolicy) ([]*models.Panel, error) {
	query, args := scope.Apply(`
		SELECT DISTINCT p.id, p.code, p.name
		FROM panels p
		JOIN firm_panels fp ON fp.panel_id = p.id
		WHERE TRUE`, "fp.tenant_id", nil)
	query += " ORDER BY p.code"

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var panels []*models.Panel
	for rows.Next() {
		panel := &models.Panel{}
		if err := rows.Scan(&panel.ID, &panel.Code, &panel.Name); err != nil {
			return nil, err
		}
		panels = append(panels, panel)
	}
	return panels, rows.Err()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

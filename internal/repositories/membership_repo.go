package repositories

import (
	"context"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

// MembershipRepository stores (user, tenant, role) bindings. A pair is unique.
type MembershipRepository interface {
	Create(ctx context.Context, membership *models.Membership) error
	GetByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.Membership, error)
	List(ctx context.Context, scope TenantScopePolicy, limit, offset int) ([]*models.Membership, error)
}

type membershipRepo struct {
	db database.Pool
}

func NewMembershipRepo(db database.Pool) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (id, user_id, tenant_id, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET role = EXCLUDED.role
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, membership.ID, membership.UserID, membership.TenantID, membership.Role)
	return err
}

func (r *membershipRepo) GetByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.Membership, error) {
	m := &models.Membership{}
	query := `
		SELECT id, user_id, tenant_id, role, created_at
		FROM memberships
		WHERE user_id = $1 AND tenant_id = $2
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, userID, tenantID).Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *membershipRepo) List(ctx context.Context, scope TenantScopePolicy, limit, offset int) ([]*models.Membership, error) {
	query, args := scope.Apply(`
		SELECT id, user_id, tenant_id, role, created_at
		FROM memberships
		WHERE TRUE`, "tenant_id", nil)
	args = append(args, limit, offset)
	query += " ORDER BY created_at LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

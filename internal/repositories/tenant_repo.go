package repositories

import (
	"context"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Tenant, error)
}

type tenantRepo struct {
	db database.Pool
}

func NewTenantRepo(db database.Pool) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query, tenant.ID, tenant.Name, tenant.Slug)
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, slug).Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM tenants
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

func (r *tenantRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Tenant, error) {
	query := `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM tenants t
		JOIN memberships m ON m.tenant_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.name
	`
	return r.list(ctx, query, userID)
}

func (r *tenantRepo) list(ctx context.Context, query string, args ...any) ([]*models.Tenant, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

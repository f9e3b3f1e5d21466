package repositories

import (
	"fmt"

	"scangate/internal/models"

	"github.com/google/uuid"
)

// TenantScopePolicy narrows a tenant-owned lookup to one tenant. Read paths apply it
// explicitly; nothing is filtered implicitly.
type TenantScopePolicy struct {
	TenantID uuid.UUID
	// Unrestricted is set for platform admins; with no TenantID they see every tenant.
	Unrestricted bool
}

func ScopeFor(principal models.Principal, tenantID uuid.UUID) TenantScopePolicy {
	return TenantScopePolicy{TenantID: tenantID, Unrestricted: principal.IsPlatformAdmin}
}

// Apply appends the tenant predicate for column to a query that already has a WHERE clause.
func (p TenantScopePolicy) Apply(query, column string, args []any) (string, []any) {
	if p.TenantID != uuid.Nil {
		args = append(args, p.TenantID)
		return fmt.Sprintf("%s AND %s = $%d", query, column, len(args)), args
	}
	if p.Unrestricted {
		return query, args
	}
	return query + " AND FALSE", args
}

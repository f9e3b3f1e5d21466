package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a firm: the organizational scope that owns memberships and enabled panels.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TenantContext is the active tenant for one request. It is passed explicitly to
// every decision entry point; a nil *TenantContext means "no tenant selected".
type TenantContext struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	SessionID string    `json:"-"`
}

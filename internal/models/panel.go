package models

import (
	"time"

	"github.com/google/uuid"
)

// Panel is a named capability unit such as "scans" or "reports".
type Panel struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Code string    `json:"code" db:"code"`
	Name string    `json:"name" db:"name"`
}

// FirmPanel enables a panel for a tenant.
type FirmPanel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	PanelID   uuid.UUID `json:"panel_id" db:"panel_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserPanelPermission is the per-membership override for one panel.
type UserPanelPermission struct {
	ID           uuid.UUID `json:"id" db:"id"`
	MembershipID uuid.UUID `json:"membership_id" db:"membership_id"`
	PanelID      uuid.UUID `json:"panel_id" db:"panel_id"`
	CanView      bool      `json:"can_view" db:"can_view"`
	CanEdit      bool      `json:"can_edit" db:"can_edit"`
}

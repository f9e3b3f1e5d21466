package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Username    string    `json:"username" db:"username"`
	IsSuperuser bool      `json:"is_superuser" db:"is_superuser"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Principal is the caller on whose behalf an action is evaluated.
type Principal struct {
	UserID          uuid.UUID `json:"user_id"`
	Authenticated   bool      `json:"authenticated"`
	IsPlatformAdmin bool      `json:"is_platform_admin"`
	// GuestKey identifies an anonymous caller (usually the session id) for guest quotas.
	GuestKey string `json:"-"`
}

func AnonymousPrincipal() Principal {
	return Principal{}
}

func (p Principal) IsAnonymous() bool {
	return !p.Authenticated || p.UserID == uuid.Nil
}

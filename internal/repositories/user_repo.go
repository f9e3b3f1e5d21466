package repositories

import (
	"context"
	"errors"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository reads principals owned by the authentication layer.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (bool, error)
}

type userRepo struct {
	db database.Pool
}

func NewUserRepo(db database.Pool) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, username, is_superuser, is_active, created_at
		FROM users
		WHERE id = $1
	`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.Username, &user.IsSuperuser, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LockForUpdate row-locks the user until the surrounding transaction ends, which
// serializes subscription writes per user even when no subscription row exists yet.
// It reports false when the user does not exist.
func (r *userRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (bool, error) {
	var locked uuid.UUID
	query := `SELECT id FROM users WHERE id = $1 FOR UPDATE`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

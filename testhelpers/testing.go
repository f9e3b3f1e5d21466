//go:build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB holds a migrated database for integration tests
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL when set, otherwise starts a
// PostgreSQL container. The schema is applied either way.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	var container *postgres.PostgresContainer
	if dsn == "" {
		var err error
		container, err = postgres.Run(ctx, "postgres:15-alpine",
			postgres.WithDatabase("scangate_test"),
			postgres.WithUsername("scangate"),
			postgres.WithPassword("scangate"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			t.Fatalf("Failed to start postgres container: %v", err)
		}
		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("Failed to read container DSN: %v", err)
		}
	}

	pool, err := database.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			if container == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return container.Terminate(ctx)
		},
	}
}

func (db *TestDB) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	if _, err := db.Pool.Exec(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
}

// SetupTestUser creates an active, non-admin user
func SetupTestUser(t *testing.T, db *TestDB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	db.exec(t, `INSERT INTO users (id, email, username) VALUES ($1, $2, $3)`,
		id, id.String()+"@example.com", "user-"+id.String()[:8])
	return id
}

// SetupTestPlan creates a plan granting ten attempts per month
func SetupTestPlan(t *testing.T, db *TestDB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	db.exec(t, `
		INSERT INTO plans (id, slug, name, monthly_price, yearly_price, monthly_attempts_limit)
		VALUES ($1, $2, 'Pro', 100, 1000, 10)
	`, id, "pro-"+id.String()[:8])
	return id
}

// SetupTestTool creates a tool included in the plan, capped at limit uses per month.
// A zero limit leaves the tool without a limit row.
func SetupTestTool(t *testing.T, db *TestDB, planID uuid.UUID, limit int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	db.exec(t, `INSERT INTO tools (id, slug, title) VALUES ($1, $2, 'Nmap')`, id, "nmap-"+id.String()[:8])
	db.exec(t, `INSERT INTO plan_tool_access (plan_id, tool_id, included) VALUES ($1, $2, TRUE)`, planID, id)
	if limit > 0 {
		db.exec(t, `
			INSERT INTO tool_usage_limits (id, plan_id, tool_id, period, usage_limit)
			VALUES ($1, $2, $3, 'month', $4)
		`, uuid.New(), planID, id, limit)
	}
	return id
}

// SetupTestSubscription creates an active subscription ending at end
func SetupTestSubscription(t *testing.T, db *TestDB, userID, planID uuid.UUID, attempts int, end time.Time) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		PlanID:       planID,
		Status:       models.SubscriptionActive,
		StartDate:    time.Now().Add(-24 * time.Hour),
		EndDate:      end,
		AttemptsLeft: attempts,
	}
	db.exec(t, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, start_date, end_date, attempts_left)
		VALUES ($1, $2, $3, 'active', $4, $5, $6)
	`, sub.ID, userID, planID, sub.StartDate, sub.EndDate, attempts)
	return sub
}

// SetupTestCoupon creates an active percent coupon and returns its code
func SetupTestCoupon(t *testing.T, db *TestDB, percent, maxUses, perUser int) (uuid.UUID, string) {
	t.Helper()

	id := uuid.New()
	code := "SAVE" + id.String()[:8]
	db.exec(t, `
		INSERT INTO coupons (id, code, discount_type, value, max_uses, per_user_limit, is_active)
		VALUES ($1, $2, 'percent', $3, $4, $5, TRUE)
	`, id, code, percent, maxUses, perUser)
	return id, code
}

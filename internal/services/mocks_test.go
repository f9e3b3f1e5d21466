package services

import (
	"context"
	"time"

	"scangate/internal/models"
	"scangate/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// passthroughTx runs fn directly and counts how many transactions were opened.
type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Tenant, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	return m.Called(ctx, membership).Error(0)
}

func (m *MockMembershipRepository) GetByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.Membership, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) List(ctx context.Context, scope repositories.TenantScopePolicy, limit, offset int) ([]*models.Membership, error) {
	args := m.Called(ctx, scope, limit, offset)
	return args.Get(0).([]*models.Membership), args.Error(1)
}

type MockPanelRepository struct {
	mock.Mock
}

func (m *MockPanelRepository) GetByCode(ctx context.Context, code string) (*models.Panel, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Panel), args.Error(1)
}

func (m *MockPanelRepository) IsEnabledForTenant(ctx context.Context, tenantID, panelID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, panelID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPanelRepository) EnableForTenant(ctx context.Context, tenantID, panelID uuid.UUID) error {
	return m.Called(ctx, tenantID, panelID).Error(0)
}

func (m *MockPanelRepository) GetUserPermission(ctx context.Context, membershipID, panelID uuid.UUID) (*models.UserPanelPermission, error) {
	args := m.Called(ctx, membershipID, panelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPanelPermission), args.Error(1)
}

func (m *MockPanelRepository) ListEnabled(ctx context.Context, scope repositories.TenantScopePolicy) ([]*models.Panel, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]*models.Panel), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) GetBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) List(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tool), args.Error(1)
}

func (m *MockPlanRepository) GetToolAccess(ctx context.Context, planID, toolID uuid.UUID) (*models.PlanAccess, error) {
	args := m.Called(ctx, planID, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanAccess), args.Error(1)
}

func (m *MockPlanRepository) GetScannerAccess(ctx context.Context, planID, scannerID uuid.UUID) (*models.PlanAccess, error) {
	args := m.Called(ctx, planID, scannerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanAccess), args.Error(1)
}

func (m *MockPlanRepository) GetIntegration(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error) {
	args := m.Called(ctx, planID, partnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanIntegration), args.Error(1)
}

func (m *MockPlanRepository) ListUsageLimits(ctx context.Context, planID, toolID uuid.UUID) ([]*models.ToolUsageLimit, error) {
	args := m.Called(ctx, planID, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ToolUsageLimit), args.Error(1)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	return m.Called(ctx, subscription).Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetLatestByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByUserAndPlanForUpdate(ctx context.Context, userID, planID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	return m.Called(ctx, subscription).Error(0)
}

func (m *MockSubscriptionRepository) Cancel(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) Pause(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) Resume(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubscriptionRepository) UseAttempt(ctx context.Context, id uuid.UUID) (int, bool, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockSubscriptionRepository) SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	return m.Called(ctx, id, attempts).Error(0)
}

type MockUsageCounterRepository struct {
	mock.Mock
}

func (m *MockUsageCounterRepository) Get(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error) {
	args := m.Called(ctx, subscriptionID, toolID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolUsageCounter), args.Error(1)
}

func (m *MockUsageCounterRepository) Ensure(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) error {
	return m.Called(ctx, subscriptionID, toolID, period).Error(0)
}

func (m *MockUsageCounterRepository) LockForUpdate(ctx context.Context, subscriptionID, toolID uuid.UUID, period string) (*models.ToolUsageCounter, error) {
	args := m.Called(ctx, subscriptionID, toolID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolUsageCounter), args.Error(1)
}

func (m *MockUsageCounterRepository) Increment(ctx context.Context, id uuid.UUID, units int) error {
	return m.Called(ctx, id, units).Error(0)
}

func (m *MockUsageCounterRepository) ResetForSubscription(ctx context.Context, subscriptionID uuid.UUID, period string, now time.Time) (int64, error) {
	args := m.Called(ctx, subscriptionID, period, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageCounterRepository) ListStaleSubscriptions(ctx context.Context, period string, before time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, period, before)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponRepository) CountRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCouponRepository) CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return m.Called(ctx, redemption).Error(0)
}

func (m *MockCouponRepository) IncrementUsage(ctx context.Context, couponID uuid.UUID) error {
	return m.Called(ctx, couponID).Error(0)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetTenant(ctx context.Context, sessionID string) (uuid.UUID, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockSessionStore) SetTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error {
	return m.Called(ctx, sessionID, tenantID).Error(0)
}

func (m *MockSessionStore) ClearTenant(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type MockTenancyDirectory struct {
	mock.Mock
}

func (m *MockTenancyDirectory) CurrentTenant(ctx context.Context, sessionID string) (*models.Tenant, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenancyDirectory) SetCurrentTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error {
	return m.Called(ctx, sessionID, tenantID).Error(0)
}

func (m *MockTenancyDirectory) CanAccessPanel(ctx context.Context, principal models.Principal, tenantID uuid.UUID, panelCode string, needEdit bool) (bool, error) {
	args := m.Called(ctx, principal, tenantID, panelCode, needEdit)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenancyDirectory) ListTenantsFor(ctx context.Context, principal models.Principal) ([]*models.Tenant, error) {
	args := m.Called(ctx, principal)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenancyDirectory) ListEnabledPanels(ctx context.Context, principal models.Principal, tenantID uuid.UUID) ([]*models.Panel, error) {
	args := m.Called(ctx, principal, tenantID)
	return args.Get(0).([]*models.Panel), args.Error(1)
}

type MockEntitlementCatalog struct {
	mock.Mock
}

func (m *MockEntitlementCatalog) IsToolIncluded(ctx context.Context, planID, toolID uuid.UUID) (bool, error) {
	args := m.Called(ctx, planID, toolID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntitlementCatalog) IsScannerIncluded(ctx context.Context, planID, scannerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, planID, scannerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntitlementCatalog) UsageLimitFor(ctx context.Context, planID, toolID uuid.UUID) (*models.ToolUsageLimit, error) {
	args := m.Called(ctx, planID, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolUsageLimit), args.Error(1)
}

func (m *MockEntitlementCatalog) IntegrationFor(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error) {
	args := m.Called(ctx, planID, partnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanIntegration), args.Error(1)
}

func (m *MockEntitlementCatalog) ToolExtraPrice(ctx context.Context, planID, toolID uuid.UUID) (decimal.Decimal, bool, error) {
	args := m.Called(ctx, planID, toolID)
	return args.Get(0).(decimal.Decimal), args.Bool(1), args.Error(2)
}

func (m *MockEntitlementCatalog) PlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockEntitlementCatalog) ToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tool), args.Error(1)
}

func (m *MockEntitlementCatalog) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Plan), args.Error(1)
}

type MockSubscriptionLedger struct {
	mock.Mock
}

func (m *MockSubscriptionLedger) ActiveSubscriptionFor(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionLedger) ExpireIfDue(ctx context.Context, subscription *models.Subscription) (bool, error) {
	args := m.Called(ctx, subscription)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionLedger) ResetAttempts(ctx context.Context, subscription *models.Subscription) error {
	return m.Called(ctx, subscription).Error(0)
}

func (m *MockSubscriptionLedger) UseAttempt(ctx context.Context, subscriptionID uuid.UUID) (int, bool, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockSubscriptionLedger) ChangePlan(ctx context.Context, userID uuid.UUID, planSlug string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, planSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionLedger) ApplyExternalRenewal(ctx context.Context, event RenewalEvent) (*models.Subscription, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Subscription), args.Bool(1), args.Error(2)
}

func (m *MockSubscriptionLedger) StartTrial(ctx context.Context, userID uuid.UUID, planSlug string, days int) (*models.Subscription, error) {
	args := m.Called(ctx, userID, planSlug, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionLedger) GetByID(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionLedger) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionLedger) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	return m.Called(ctx, userID, subscriptionID).Error(0)
}

func (m *MockSubscriptionLedger) Pause(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	return m.Called(ctx, userID, subscriptionID).Error(0)
}

func (m *MockSubscriptionLedger) Resume(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	return m.Called(ctx, userID, subscriptionID).Error(0)
}

func (m *MockSubscriptionLedger) ExpireDue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockUsageMeter struct {
	mock.Mock
}

func (m *MockUsageMeter) CanUseTool(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (bool, error) {
	args := m.Called(ctx, subscription, toolID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageMeter) Consume(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID, units int) error {
	return m.Called(ctx, subscription, toolID, units).Error(0)
}

func (m *MockUsageMeter) ResetCounters(ctx context.Context, subscriptionID uuid.UUID, period string) (int64, error) {
	args := m.Called(ctx, subscriptionID, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageMeter) Usage(ctx context.Context, subscription *models.Subscription, toolID uuid.UUID) (*models.UsageSnapshot, error) {
	args := m.Called(ctx, subscription, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageSnapshot), args.Error(1)
}

func (m *MockUsageMeter) StaleCounterSubscriptions(ctx context.Context, period string, olderThan time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, period, olderThan)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockGuestQuota struct {
	mock.Mock
}

func (m *MockGuestQuota) Remaining(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockGuestQuota) Take(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

package handlers

import (
	"context"
	"time"

	"scangate/internal/jobs/background"
	"scangate/internal/models"
	"scangate/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

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

func (m *MockSubscriptionLedger) ApplyExternalRenewal(ctx context.Context, event services.RenewalEvent) (*models.Subscription, bool, error) {
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

type MockAccessDecisionService struct {
	mock.Mock
}

func (m *MockAccessDecisionService) AuthorizeToolUse(ctx context.Context, principal models.Principal, tenant *models.TenantContext, toolSlug string) (*services.Decision, error) {
	args := m.Called(ctx, principal, tenant, toolSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Decision), args.Error(1)
}

func (m *MockAccessDecisionService) Consume(ctx context.Context, principal models.Principal, toolSlug string, units int) (*services.Decision, error) {
	args := m.Called(ctx, principal, toolSlug, units)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Decision), args.Error(1)
}

func (m *MockAccessDecisionService) AuthorizePanelAccess(ctx context.Context, principal models.Principal, tenant *models.TenantContext, panelCode string, needEdit bool) (*services.Decision, error) {
	args := m.Called(ctx, principal, tenant, panelCode, needEdit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Decision), args.Error(1)
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

type MockCouponEngine struct {
	mock.Mock
}

func (m *MockCouponEngine) IsValidNow(coupon *models.Coupon) bool {
	return m.Called(coupon).Bool(0)
}

func (m *MockCouponEngine) RedemptionsByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCouponEngine) ApplicableToPlan(coupon *models.Coupon, planID uuid.UUID) bool {
	return m.Called(coupon, planID).Bool(0)
}

func (m *MockCouponEngine) ApplicableToTool(coupon *models.Coupon, toolID uuid.UUID) bool {
	return m.Called(coupon, toolID).Bool(0)
}

func (m *MockCouponEngine) Discount(coupon *models.Coupon, price decimal.Decimal) decimal.Decimal {
	return m.Called(coupon, price).Get(0).(decimal.Decimal)
}

func (m *MockCouponEngine) Quote(ctx context.Context, req services.QuoteRequest) (*services.Quote, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Quote), args.Error(1)
}

func (m *MockCouponEngine) Redeem(ctx context.Context, req services.RedeemRequest) (*models.CouponRedemption, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CouponRedemption), args.Error(1)
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

type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) RunNow(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockJobRunner) Status() []background.JobStatus {
	args := m.Called()
	return args.Get(0).([]background.JobStatus)
}

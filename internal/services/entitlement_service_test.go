package services

import (
	"context"
	"errors"
	"testing"

	"scangate/internal/common"
	"scangate/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EntitlementServiceTestSuite struct {
	suite.Suite
	plans   *MockPlanRepository
	service EntitlementCatalog

	ctx    context.Context
	planID uuid.UUID
	toolID uuid.UUID
}

func (suite *EntitlementServiceTestSuite) SetupTest() {
	suite.plans = &MockPlanRepository{}
	suite.service = NewEntitlementService(suite.plans)
	suite.ctx = context.Background()
	suite.planID = uuid.New()
	suite.toolID = uuid.New()
}

func (suite *EntitlementServiceTestSuite) TearDownTest() {
	suite.plans.AssertExpectations(suite.T())
}

func TestEntitlementServiceTestSuite(t *testing.T) {
	suite.Run(t, new(EntitlementServiceTestSuite))
}

func (suite *EntitlementServiceTestSuite) TestIsToolIncluded() {
	suite.plans.On("GetToolAccess", suite.ctx, suite.planID, suite.toolID).
		Return(&models.PlanAccess{PlanID: suite.planID, TargetID: suite.toolID, Included: true}, nil)

	ok, err := suite.service.IsToolIncluded(suite.ctx, suite.planID, suite.toolID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
}

func (suite *EntitlementServiceTestSuite) TestIsToolIncluded_MissingRowMeansExcluded() {
	suite.plans.On("GetToolAccess", suite.ctx, suite.planID, suite.toolID).Return(nil, pgx.ErrNoRows)

	ok, err := suite.service.IsToolIncluded(suite.ctx, suite.planID, suite.toolID)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *EntitlementServiceTestSuite) TestIsToolIncluded_StoreError() {
	suite.plans.On("GetToolAccess", suite.ctx, suite.planID, suite.toolID).Return(nil, errors.New("timeout"))

	_, err := suite.service.IsToolIncluded(suite.ctx, suite.planID, suite.toolID)
	assert.Error(suite.T(), err)
}

func (suite *EntitlementServiceTestSuite) TestIsScannerIncluded() {
	scannerID := uuid.New()
	suite.plans.On("GetScannerAccess", suite.ctx, suite.planID, scannerID).Return(nil, pgx.ErrNoRows)

	ok, err := suite.service.IsScannerIncluded(suite.ctx, suite.planID, scannerID)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *EntitlementServiceTestSuite) TestUsageLimitFor() {
	yearly := &models.ToolUsageLimit{ID: uuid.New(), Period: models.PeriodYear, Limit: 100}
	monthly := &models.ToolUsageLimit{ID: uuid.New(), Period: models.PeriodMonth, Limit: 10}

	tests := []struct {
		name   string
		limits []*models.ToolUsageLimit
		want   *models.ToolUsageLimit
	}{
		{name: "no rows", limits: []*models.ToolUsageLimit{}, want: nil},
		{name: "yearly only", limits: []*models.ToolUsageLimit{yearly}, want: yearly},
		{name: "monthly wins", limits: []*models.ToolUsageLimit{yearly, monthly}, want: monthly},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			plans := &MockPlanRepository{}
			plans.On("ListUsageLimits", suite.ctx, suite.planID, suite.toolID).Return(tt.limits, nil)

			got, err := NewEntitlementService(plans).UsageLimitFor(suite.ctx, suite.planID, suite.toolID)
			assert.NoError(suite.T(), err)
			assert.Equal(suite.T(), tt.want, got)
			plans.AssertExpectations(suite.T())
		})
	}
}

func (suite *EntitlementServiceTestSuite) TestIntegrationFor() {
	partnerID := uuid.New()
	suite.plans.On("GetIntegration", suite.ctx, suite.planID, partnerID).Return(nil, pgx.ErrNoRows).Once()
	suite.plans.On("GetIntegration", suite.ctx, suite.planID, partnerID).
		Return(&models.PlanIntegration{PlanID: suite.planID, PartnerID: partnerID, Included: true, MonthlyLimit: 50}, nil).Once()

	got, err := suite.service.IntegrationFor(suite.ctx, suite.planID, partnerID)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), got)

	got, err = suite.service.IntegrationFor(suite.ctx, suite.planID, partnerID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 50, got.MonthlyLimit)
}

func (suite *EntitlementServiceTestSuite) TestToolExtraPrice() {
	suite.plans.On("GetToolAccess", suite.ctx, suite.planID, suite.toolID).
		Return(&models.PlanAccess{Included: false, ExtraPrice: decimal.RequireFromString("4.99")}, nil).Once()
	suite.plans.On("GetToolAccess", suite.ctx, suite.planID, suite.toolID).
		Return(&models.PlanAccess{Included: true, ExtraPrice: decimal.RequireFromString("4.99")}, nil).Once()

	price, offered, err := suite.service.ToolExtraPrice(suite.ctx, suite.planID, suite.toolID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), offered)
	assert.True(suite.T(), price.Equal(decimal.RequireFromString("4.99")))

	_, offered, err = suite.service.ToolExtraPrice(suite.ctx, suite.planID, suite.toolID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), offered)
}

func (suite *EntitlementServiceTestSuite) TestPlanAndToolBySlug_NotFound() {
	suite.plans.On("GetBySlug", suite.ctx, "platinum").Return(nil, pgx.ErrNoRows)
	suite.plans.On("GetToolBySlug", suite.ctx, "sqlmap").Return(nil, pgx.ErrNoRows)

	_, err := suite.service.PlanBySlug(suite.ctx, "platinum")
	assert.True(suite.T(), common.IsKind(err, common.ErrNotFound))

	_, err = suite.service.ToolBySlug(suite.ctx, "sqlmap")
	assert.True(suite.T(), common.IsKind(err, common.ErrNotFound))
}

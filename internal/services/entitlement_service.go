package services

import (
	"context"
	"fmt"

	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntitlementCatalog is the read-only view of what each plan includes.
type EntitlementCatalog interface {
	IsToolIncluded(ctx context.Context, planID, toolID uuid.UUID) (bool, error)
	IsScannerIncluded(ctx context.Context, planID, scannerID uuid.UUID) (bool, error)
	UsageLimitFor(ctx context.Context, planID, toolID uuid.UUID) (*models.ToolUsageLimit, error)
	IntegrationFor(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error)
	ToolExtraPrice(ctx context.Context, planID, toolID uuid.UUID) (decimal.Decimal, bool, error)
	PlanBySlug(ctx context.Context, slug string) (*models.Plan, error)
	ToolBySlug(ctx context.Context, slug string) (*models.Tool, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

type entitlementService struct {
	planRepo repositories.PlanRepository
}

func NewEntitlementService(planRepo repositories.PlanRepository) EntitlementCatalog {
	return &entitlementService{planRepo: planRepo}
}

func (s *entitlementService) IsToolIncluded(ctx context.Context, planID, toolID uuid.UUID) (bool, error) {
	return toolIncluded(ctx, s.planRepo, planID, toolID)
}

func (s *entitlementService) IsScannerIncluded(ctx context.Context, planID, scannerID uuid.UUID) (bool, error) {
	access, err := s.planRepo.GetScannerAccess(ctx, planID, scannerID)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load scanner access: %w", err)
	}
	return access.Included, nil
}

// UsageLimitFor returns nil when the plan has no limit row for the tool.
func (s *entitlementService) UsageLimitFor(ctx context.Context, planID, toolID uuid.UUID) (*models.ToolUsageLimit, error) {
	return governingLimit(ctx, s.planRepo, planID, toolID)
}

// IntegrationFor returns nil when the partner is not offered on the plan.
func (s *entitlementService) IntegrationFor(ctx context.Context, planID, partnerID uuid.UUID) (*models.PlanIntegration, error) {
	integration, err := s.planRepo.GetIntegration(ctx, planID, partnerID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load plan integration: %w", err)
	}
	return integration, nil
}

// ToolExtraPrice reports the add-on price of a tool the plan does not include.
// The bool is false when the tool is included or not offered at all.
func (s *entitlementService) ToolExtraPrice(ctx context.Context, planID, toolID uuid.UUID) (decimal.Decimal, bool, error) {
	access, err := s.planRepo.GetToolAccess(ctx, planID, toolID)
	if err != nil {
		if isNoRows(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to load tool access: %w", err)
	}
	if access.Included {
		return decimal.Zero, false, nil
	}
	return access.ExtraPrice, true, nil
}

func (s *entitlementService) PlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	plan, err := s.planRepo.GetBySlug(ctx, slug)
	if err != nil {
		if isNoRows(err) {
			return nil, common.NotFound("plan")
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

func (s *entitlementService) ToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	tool, err := s.planRepo.GetToolBySlug(ctx, slug)
	if err != nil {
		if isNoRows(err) {
			return nil, common.NotFound("tool")
		}
		return nil, fmt.Errorf("failed to load tool: %w", err)
	}
	return tool, nil
}

func (s *entitlementService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	return s.planRepo.List(ctx)
}

func toolIncluded(ctx context.Context, planRepo repositories.PlanRepository, planID, toolID uuid.UUID) (bool, error) {
	access, err := planRepo.GetToolAccess(ctx, planID, toolID)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load tool access: %w", err)
	}
	return access.Included, nil
}

// governingLimit picks the monthly row whenever one exists; a yearly row only
// governs when it is the sole row.
func governingLimit(ctx context.Context, planRepo repositories.PlanRepository, planID, toolID uuid.UUID) (*models.ToolUsageLimit, error) {
	limits, err := planRepo.ListUsageLimits(ctx, planID, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage limits: %w", err)
	}
	if len(limits) == 0 {
		return nil, nil
	}
	for _, l := range limits {
		if l.Period == models.PeriodMonth {
			return l, nil
		}
	}
	return limits[0], nil
}

package services

import (
	"context"
	"fmt"

	"scangate/internal/caching"
	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TenancyDirectory resolves the session's tenant and answers panel access questions.
type TenancyDirectory interface {
	CurrentTenant(ctx context.Context, sessionID string) (*models.Tenant, error)
	SetCurrentTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error
	CanAccessPanel(ctx context.Context, principal models.Principal, tenantID uuid.UUID, panelCode string, needEdit bool) (bool, error)
	ListTenantsFor(ctx context.Context, principal models.Principal) ([]*models.Tenant, error)
	ListEnabledPanels(ctx context.Context, principal models.Principal, tenantID uuid.UUID) ([]*models.Panel, error)
}

type tenancyService struct {
	tenantRepo     repositories.TenantRepository
	membershipRepo repositories.MembershipRepository
	panelRepo      repositories.PanelRepository
	sessions       caching.SessionStore
	logger         zerolog.Logger
}

func NewTenancyService(
	tenantRepo repositories.TenantRepository,
	membershipRepo repositories.MembershipRepository,
	panelRepo repositories.PanelRepository,
	sessions caching.SessionStore,
	logger zerolog.Logger,
) TenancyDirectory {
	return &tenancyService{
		tenantRepo:     tenantRepo,
		membershipRepo: membershipRepo,
		panelRepo:      panelRepo,
		sessions:       sessions,
		logger:         logger.With().Str("service", "tenancy").Logger(),
	}
}

// CurrentTenant returns nil when no tenant is selected or the selected one was removed.
func (s *tenancyService) CurrentTenant(ctx context.Context, sessionID string) (*models.Tenant, error) {
	if sessionID == "" {
		return nil, nil
	}

	tenantID, err := s.sessions.GetTenant(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session tenant: %w", err)
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		if isNoRows(err) {
			s.logger.Debug().Str("tenant_id", tenantID.String()).Msg("Session references a removed tenant")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return tenant, nil
}

// SetCurrentTenant only checks that the tenant exists; the caller authorizes the switch.
func (s *tenancyService) SetCurrentTenant(ctx context.Context, sessionID string, tenantID uuid.UUID) error {
	if sessionID == "" {
		return common.Invalid("session is required")
	}

	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		if isNoRows(err) {
			return common.NotFound("tenant")
		}
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if err := s.sessions.SetTenant(ctx, sessionID, tenantID); err != nil {
		return fmt.Errorf("failed to store session tenant: %w", err)
	}
	return nil
}

func (s *tenancyService) CanAccessPanel(ctx context.Context, principal models.Principal, tenantID uuid.UUID, panelCode string, needEdit bool) (bool, error) {
	if principal.IsPlatformAdmin {
		return true, nil
	}
	if principal.IsAnonymous() || tenantID == uuid.Nil {
		return false, nil
	}

	panel, err := s.panelRepo.GetByCode(ctx, panelCode)
	if err != nil {
		if isNoRows(err) {
			return false, common.NotFound("panel")
		}
		return false, fmt.Errorf("failed to load panel: %w", err)
	}

	membership, err := s.membershipRepo.GetByUserAndTenant(ctx, principal.UserID, tenantID)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load membership: %w", err)
	}

	if membership.Role != models.RoleAdmin {
		perm, err := s.panelRepo.GetUserPermission(ctx, membership.ID, panel.ID)
		if err != nil {
			if isNoRows(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to load panel permission: %w", err)
		}
		if !perm.CanView || (needEdit && !perm.CanEdit) {
			return false, nil
		}
	}

	// A per-user grant never bypasses a tenant-level disablement.
	enabled, err := s.panelRepo.IsEnabledForTenant(ctx, tenantID, panel.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check panel enablement: %w", err)
	}
	return enabled, nil
}

// ListTenantsFor returns the tenants a principal may switch to. Platform admins see all.
func (s *tenancyService) ListTenantsFor(ctx context.Context, principal models.Principal) ([]*models.Tenant, error) {
	if principal.IsAnonymous() {
		return nil, nil
	}
	if principal.IsPlatformAdmin {
		return s.tenantRepo.List(ctx, 1000, 0)
	}
	return s.tenantRepo.ListForUser(ctx, principal.UserID)
}

// ListEnabledPanels lists the panels enabled for tenantID. Membership is checked on
// every call, so a session still pointing at a tenant the user left lists nothing.
func (s *tenancyService) ListEnabledPanels(ctx context.Context, principal models.Principal, tenantID uuid.UUID) ([]*models.Panel, error) {
	if !principal.IsPlatformAdmin {
		if principal.IsAnonymous() {
			return nil, common.Denied(ReasonSignInRequired)
		}
		if _, err := s.membershipRepo.GetByUserAndTenant(ctx, principal.UserID, tenantID); err != nil {
			if isNoRows(err) {
				return nil, common.Denied(ReasonNotMember)
			}
			return nil, fmt.Errorf("failed to load membership: %w", err)
		}
	}
	return s.panelRepo.ListEnabled(ctx, repositories.ScopeFor(principal, tenantID))
}

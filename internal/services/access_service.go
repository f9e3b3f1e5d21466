package services

import (
	"context"
	"fmt"

	"scangate/internal/common"
	"scangate/internal/metrics"
	"scangate/internal/models"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Denial reasons shown to callers.
const (
	ReasonSignInRequired   = "sign in required"
	ReasonGuestExhausted   = "guest attempts exhausted"
	ReasonNoSubscription   = "no active subscription"
	ReasonExpired          = "subscription expired"
	ReasonNoAttempts       = "no attempts left"
	ReasonNotIncluded      = "tool is not included in the plan"
	ReasonLimitReached     = "usage limit reached for this tool"
	ReasonNoTenant         = "no tenant selected"
	ReasonNotMember        = "not a member of this tenant"
	ReasonPanelUnavailable = "panel is not available"
)

// GuestQuota counts attempts for anonymous callers, keyed by guest key.
type GuestQuota interface {
	Remaining(ctx context.Context, key string) (int, error)
	Take(ctx context.Context, key string) (bool, error)
}

// Decision is the answer to an authorization question. When Allowed and
// MustConsume are set, the caller must call Consume exactly once after the
// action actually ran.
type Decision struct {
	Allowed        bool       `json:"allowed"`
	Reason         string     `json:"reason,omitempty"`
	MustConsume    bool       `json:"must_consume"`
	Guest          bool       `json:"guest"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	ToolID         *uuid.UUID `json:"tool_id,omitempty"`
	AttemptsLeft   int        `json:"attempts_left"`
}

// AccessDecisionService is the single gate every paid action passes through.
type AccessDecisionService interface {
	AuthorizeToolUse(ctx context.Context, principal models.Principal, tenant *models.TenantContext, toolSlug string) (*Decision, error)
	Consume(ctx context.Context, principal models.Principal, toolSlug string, units int) (*Decision, error)
	AuthorizePanelAccess(ctx context.Context, principal models.Principal, tenant *models.TenantContext, panelCode string, needEdit bool) (*Decision, error)
}

type accessService struct {
	tenancy       TenancyDirectory
	catalog       EntitlementCatalog
	subscriptions SubscriptionLedger
	usage         UsageMeter
	guests        GuestQuota
	tx            database.TxManager
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewAccessService(
	tenancy TenancyDirectory,
	catalog EntitlementCatalog,
	subscriptions SubscriptionLedger,
	usage UsageMeter,
	guests GuestQuota,
	tx database.TxManager,
	m *metrics.Metrics,
	logger zerolog.Logger,
) AccessDecisionService {
	return &accessService{
		tenancy:       tenancy,
		catalog:       catalog,
		subscriptions: subscriptions,
		usage:         usage,
		guests:        guests,
		tx:            tx,
		metrics:       m,
		logger:        logger.With().Str("service", "access").Logger(),
	}
}

func (s *accessService) AuthorizeToolUse(ctx context.Context, principal models.Principal, tenant *models.TenantContext, toolSlug string) (*Decision, error) {
	tool, err := s.catalog.ToolBySlug(ctx, toolSlug)
	if err != nil {
		return nil, err
	}

	decision, err := s.authorizeTool(ctx, principal, tool)
	if err != nil {
		return nil, err
	}
	s.record("tool", decision)

	event := s.logger.Debug().
		Str("tool", toolSlug).
		Bool("allowed", decision.Allowed).
		Str("reason", decision.Reason)
	if !principal.IsAnonymous() {
		event = event.Str("user_id", principal.UserID.String())
	}
	if tenant != nil {
		event = event.Str("tenant_id", tenant.TenantID.String())
	}
	event.Msg("Tool use decision")
	return decision, nil
}

func (s *accessService) authorizeTool(ctx context.Context, principal models.Principal, tool *models.Tool) (*Decision, error) {
	decision := &Decision{ToolID: &tool.ID}

	if principal.IsAnonymous() {
		decision.Guest = true
		if s.guests == nil || principal.GuestKey == "" {
			decision.Reason = ReasonSignInRequired
			return decision, nil
		}
		remaining, err := s.guests.Remaining(ctx, principal.GuestKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read guest quota: %w", err)
		}
		decision.AttemptsLeft = remaining
		if remaining <= 0 {
			decision.Reason = ReasonGuestExhausted
			return decision, nil
		}
		decision.Allowed, decision.MustConsume = true, true
		return decision, nil
	}

	subscription, err := s.subscriptions.ActiveSubscriptionFor(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		decision.Reason = ReasonNoSubscription
		return decision, nil
	}
	decision.SubscriptionID = &subscription.ID

	expired, err := s.subscriptions.ExpireIfDue(ctx, subscription)
	if err != nil {
		return nil, err
	}
	if expired {
		decision.Reason = ReasonExpired
		return decision, nil
	}

	decision.AttemptsLeft = subscription.AttemptsLeft
	if subscription.AttemptsLeft <= 0 {
		decision.Reason = ReasonNoAttempts
		return decision, nil
	}

	included, err := s.catalog.IsToolIncluded(ctx, subscription.PlanID, tool.ID)
	if err != nil {
		return nil, err
	}
	if !included {
		decision.Reason = ReasonNotIncluded
		return decision, nil
	}

	ok, err := s.usage.CanUseTool(ctx, subscription, tool.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		decision.Reason = ReasonLimitReached
		return decision, nil
	}

	decision.Allowed, decision.MustConsume = true, true
	return decision, nil
}

// Consume spends one attempt and records units of tool usage. For subscribers both
// happen in one transaction; if either fails neither is kept.
func (s *accessService) Consume(ctx context.Context, principal models.Principal, toolSlug string, units int) (*Decision, error) {
	if units < 1 {
		return nil, common.Invalid("units must be at least 1")
	}
	tool, err := s.catalog.ToolBySlug(ctx, toolSlug)
	if err != nil {
		return nil, err
	}

	decision, err := s.consume(ctx, principal, tool, units)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	s.metrics.ConsumptionsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		s.logger.Info().Err(err).Str("tool", toolSlug).Str("outcome", outcome).Msg("Consume rejected")
		return nil, err
	}
	return decision, nil
}

func (s *accessService) consume(ctx context.Context, principal models.Principal, tool *models.Tool, units int) (*Decision, error) {
	if principal.IsAnonymous() {
		if s.guests == nil || principal.GuestKey == "" {
			return nil, common.Denied(ReasonSignInRequired)
		}
		ok, err := s.guests.Take(ctx, principal.GuestKey)
		if err != nil {
			return nil, fmt.Errorf("failed to take guest attempt: %w", err)
		}
		if !ok {
			return nil, common.Conflict(ReasonGuestExhausted)
		}
		return &Decision{Allowed: true, Guest: true, ToolID: &tool.ID}, nil
	}

	subscription, err := s.subscriptions.ActiveSubscriptionFor(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, common.Denied(ReasonNoSubscription)
	}

	// Expiry is committed on its own so a denial below cannot roll it back.
	expired, err := s.subscriptions.ExpireIfDue(ctx, subscription)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.Denied(ReasonExpired)
	}

	var left int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		remaining, ok, err := s.subscriptions.UseAttempt(ctx, subscription.ID)
		if err != nil {
			return err
		}
		if !ok {
			return common.Conflict(ReasonNoAttempts)
		}
		left = remaining
		return s.usage.Consume(ctx, subscription, tool.ID, units)
	})
	if err != nil {
		return nil, err
	}

	return &Decision{
		Allowed:        true,
		SubscriptionID: &subscription.ID,
		ToolID:         &tool.ID,
		AttemptsLeft:   left,
	}, nil
}

func (s *accessService) AuthorizePanelAccess(ctx context.Context, principal models.Principal, tenant *models.TenantContext, panelCode string, needEdit bool) (*Decision, error) {
	decision := &Decision{}

	var tenantID uuid.UUID
	if tenant != nil {
		tenantID = tenant.TenantID
	}

	switch {
	case principal.IsAnonymous() && !principal.IsPlatformAdmin:
		decision.Reason = ReasonSignInRequired
	case tenantID == uuid.Nil && !principal.IsPlatformAdmin:
		decision.Reason = ReasonNoTenant
	default:
		ok, err := s.tenancy.CanAccessPanel(ctx, principal, tenantID, panelCode, needEdit)
		if err != nil {
			return nil, err
		}
		decision.Allowed = ok
		if !ok {
			decision.Reason = ReasonPanelUnavailable
		}
	}

	s.record("panel", decision)
	return decision, nil
}

func (s *accessService) record(kind string, decision *Decision) {
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
	}
	s.metrics.DecisionsTotal.WithLabelValues(kind, outcome).Inc()
}

func outcomeOf(err error) string {
	switch {
	case common.IsKind(err, common.ErrConflict):
		return "conflict"
	case common.IsKind(err, common.ErrPermissionDenied):
		return "denied"
	case common.IsKind(err, common.ErrNotFound):
		return "not_found"
	case common.IsKind(err, common.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/repositories"
	"scangate/pkg/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const planChangeWindow = 30 * 24 * time.Hour

// RenewalEvent is one billing-provider notification that a user paid for a plan period.
type RenewalEvent struct {
	UserID        uuid.UUID
	PlanSlug      string
	StartDate     time.Time
	EndDate       time.Time
	PaymentMethod string
}

// SubscriptionLedger owns subscription status and the attempt budget.
type SubscriptionLedger interface {
	ActiveSubscriptionFor(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ExpireIfDue(ctx context.Context, subscription *models.Subscription) (bool, error)
	ResetAttempts(ctx context.Context, subscription *models.Subscription) error
	UseAttempt(ctx context.Context, subscriptionID uuid.UUID) (int, bool, error)
	ChangePlan(ctx context.Context, userID uuid.UUID, planSlug string) (*models.Subscription, error)
	ApplyExternalRenewal(ctx context.Context, event RenewalEvent) (*models.Subscription, bool, error)
	StartTrial(ctx context.Context, userID uuid.UUID, planSlug string, days int) (*models.Subscription, error)
	GetByID(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) error
	Pause(ctx context.Context, userID, subscriptionID uuid.UUID) error
	Resume(ctx context.Context, userID, subscriptionID uuid.UUID) error
	ExpireDue(ctx context.Context) (int64, error)
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
	planRepo         repositories.PlanRepository
	userRepo         repositories.UserRepository
	tx               database.TxManager
	now              func() time.Time
	logger           zerolog.Logger
}

func NewSubscriptionService(
	subscriptionRepo repositories.SubscriptionRepository,
	planRepo repositories.PlanRepository,
	userRepo repositories.UserRepository,
	tx database.TxManager,
	logger zerolog.Logger,
) SubscriptionLedger {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		userRepo:         userRepo,
		tx:               tx,
		now:              time.Now,
		logger:           logger.With().Str("service", "subscriptions").Logger(),
	}
}

// ActiveSubscriptionFor returns nil when the user has no subscription flagged active.
func (s *subscriptionService) ActiveSubscriptionFor(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return subscription, nil
}

// ExpireIfDue moves a subscription past its end date to expired and reports whether
// it is expired afterwards. subscription is updated in place.
func (s *subscriptionService) ExpireIfDue(ctx context.Context, subscription *models.Subscription) (bool, error) {
	if subscription.Status == models.SubscriptionExpired {
		return true, nil
	}
	now := s.now()
	if !subscription.IsExpiredAt(now) {
		return false, nil
	}

	flipped, err := s.subscriptionRepo.MarkExpired(ctx, subscription.ID, now)
	if err != nil {
		return false, fmt.Errorf("failed to expire subscription: %w", err)
	}
	if flipped {
		s.logger.Info().Str("subscription_id", subscription.ID.String()).Msg("Subscription expired")
	}
	subscription.Status = models.SubscriptionExpired
	return true, nil
}

func (s *subscriptionService) ResetAttempts(ctx context.Context, subscription *models.Subscription) error {
	plan, err := s.planFor(ctx, subscription)
	if err != nil {
		return err
	}

	attempts := plan.AttemptsFor(subscription.StartDate, subscription.EndDate)
	if err := s.subscriptionRepo.SetAttempts(ctx, subscription.ID, attempts); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	subscription.AttemptsLeft = attempts
	return nil
}

// UseAttempt spends one attempt and returns the balance left after it.
func (s *subscriptionService) UseAttempt(ctx context.Context, subscriptionID uuid.UUID) (int, bool, error) {
	left, ok, err := s.subscriptionRepo.UseAttempt(ctx, subscriptionID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to use attempt: %w", err)
	}
	return left, ok, nil
}

// ChangePlan unconditionally resets the user's latest subscription to the new plan
// for a fresh 30-day window, creating one if the user has none. There is no proration.
func (s *subscriptionService) ChangePlan(ctx context.Context, userID uuid.UUID, planSlug string) (*models.Subscription, error) {
	var result *models.Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireUser(ctx, userID); err != nil {
			return err
		}
		plan, err := s.planBySlug(ctx, planSlug)
		if err != nil {
			return err
		}

		now := s.now()
		subscription, err := s.subscriptionRepo.GetLatestByUserForUpdate(ctx, userID)
		if err != nil && !isNoRows(err) {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		if subscription == nil {
			subscription = &models.Subscription{
				ID:           uuid.New(),
				UserID:       userID,
				PlanID:       plan.ID,
				Status:       models.SubscriptionActive,
				StartDate:    now,
				EndDate:      now.Add(planChangeWindow),
				AttemptsLeft: plan.MonthlyAttemptsLimit,
			}
			if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}
			result = subscription
			return nil
		}

		subscription.PlanID = plan.ID
		subscription.Status = models.SubscriptionActive
		subscription.StartDate = now
		subscription.EndDate = now.Add(planChangeWindow)
		subscription.AttemptsLeft = plan.MonthlyAttemptsLimit
		subscription.CancelledAt = nil
		subscription.IsTrial = false
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		result = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("plan", planSlug).
		Str("subscription_id", result.ID.String()).
		Msg("Plan changed")
	return result, nil
}

// ApplyExternalRenewal upserts the (user, plan) subscription from a billing event.
// The bool reports whether a new subscription was created. Events whose end date
// does not move the subscription forward are acknowledged without changes.
func (s *subscriptionService) ApplyExternalRenewal(ctx context.Context, event RenewalEvent) (*models.Subscription, bool, error) {
	if err := validateRenewal(event); err != nil {
		return nil, false, err
	}

	var (
		result  *models.Subscription
		created bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireUser(ctx, event.UserID); err != nil {
			return err
		}
		plan, err := s.planBySlug(ctx, event.PlanSlug)
		if err != nil {
			return err
		}

		var paymentMethod *string
		if pm := strings.TrimSpace(event.PaymentMethod); pm != "" {
			paymentMethod = &pm
		}

		subscription, err := s.subscriptionRepo.GetByUserAndPlanForUpdate(ctx, event.UserID, plan.ID)
		if err != nil && !isNoRows(err) {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		if subscription == nil {
			subscription = &models.Subscription{
				ID:            uuid.New(),
				UserID:        event.UserID,
				PlanID:        plan.ID,
				Status:        models.SubscriptionActive,
				PaymentMethod: paymentMethod,
				StartDate:     event.StartDate,
				EndDate:       event.EndDate,
				AttemptsLeft:  plan.AttemptsFor(event.StartDate, event.EndDate),
			}
			if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}
			result, created = subscription, true
			return nil
		}

		if !event.EndDate.After(subscription.EndDate) {
			result = subscription
			return nil
		}

		now := s.now()
		subscription.StartDate = event.StartDate
		subscription.EndDate = event.EndDate
		subscription.Status = models.SubscriptionActive
		subscription.TimesRenewed++
		subscription.RenewedAt = &now
		subscription.CancelledAt = nil
		subscription.IsTrial = false
		subscription.AttemptsLeft = plan.AttemptsFor(event.StartDate, event.EndDate)
		if paymentMethod != nil {
			subscription.PaymentMethod = paymentMethod
		}
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return fmt.Errorf("failed to renew subscription: %w", err)
		}
		result = subscription
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Info().
		Str("user_id", event.UserID.String()).
		Str("plan", event.PlanSlug).
		Bool("created", created).
		Int("times_renewed", result.TimesRenewed).
		Msg("Applied billing renewal")
	return result, created, nil
}

func validateRenewal(event RenewalEvent) error {
	if event.UserID == uuid.Nil {
		return common.Invalid("user_id is required")
	}
	if err := common.ValidateRequiredString(event.PlanSlug, "plan"); err != nil {
		return common.Invalid("%s", err.Error())
	}
	if event.StartDate.IsZero() || event.EndDate.IsZero() {
		return common.Invalid("start_date and end_date are required")
	}
	if err := common.ValidateDateRange(event.StartDate, event.EndDate); err != nil {
		return common.Invalid("%s", err.Error())
	}
	return nil
}

// StartTrial opens a trial on planSlug for days days. Users holding an active
// subscription cannot start a trial.
func (s *subscriptionService) StartTrial(ctx context.Context, userID uuid.UUID, planSlug string, days int) (*models.Subscription, error) {
	if days <= 0 {
		return nil, common.Invalid("trial length must be positive")
	}

	var result *models.Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireUser(ctx, userID); err != nil {
			return err
		}
		plan, err := s.planBySlug(ctx, planSlug)
		if err != nil {
			return err
		}

		active, err := s.ActiveSubscriptionFor(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil && active.IsActiveAt(s.now()) {
			return common.Conflict("an active subscription already exists")
		}

		now := s.now()
		result = &models.Subscription{
			ID:           uuid.New(),
			UserID:       userID,
			PlanID:       plan.ID,
			Status:       models.SubscriptionActive,
			StartDate:    now,
			EndDate:      now.AddDate(0, 0, days),
			AttemptsLeft: plan.MonthlyAttemptsLimit,
			IsTrial:      true,
		}
		if err := s.subscriptionRepo.Create(ctx, result); err != nil {
			return fmt.Errorf("failed to create trial: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *subscriptionService) GetByID(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		if isNoRows(err) {
			return nil, common.NotFound("subscription")
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if subscription.UserID != userID {
		return nil, common.NotFound("subscription")
	}
	return subscription, nil
}

func (s *subscriptionService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.subscriptionRepo.List(ctx, userID, limit, offset)
}

// Cancel, Pause and Resume write status columns only and never attempts_left or dates.
func (s *subscriptionService) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	ok, err := s.subscriptionRepo.Cancel(ctx, subscriptionID, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if ok {
		return nil
	}
	subscription, err := s.GetByID(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	return common.Invalid("subscription is already %s", subscription.Status)
}

func (s *subscriptionService) Pause(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	ok, err := s.subscriptionRepo.Pause(ctx, subscriptionID, userID)
	if err != nil {
		return fmt.Errorf("failed to pause subscription: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := s.GetByID(ctx, userID, subscriptionID); err != nil {
		return err
	}
	return common.Invalid("only active subscriptions can be paused")
}

func (s *subscriptionService) Resume(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	now := s.now()
	ok, err := s.subscriptionRepo.Resume(ctx, subscriptionID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to resume subscription: %w", err)
	}
	if ok {
		return nil
	}
	subscription, err := s.GetByID(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if subscription.Status != models.SubscriptionPaused {
		return common.Invalid("only paused subscriptions can be resumed")
	}
	return common.Invalid("subscription has ended")
}

// ExpireDue expires every active subscription past its end date.
func (s *subscriptionService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.subscriptionRepo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return n, nil
}

// requireUser locks the user row so concurrent creates for one user serialize
// even when there is no subscription row to lock yet. Call it inside a transaction.
func (s *subscriptionService) requireUser(ctx context.Context, userID uuid.UUID) error {
	exists, err := s.userRepo.LockForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !exists {
		return common.NotFound("user")
	}
	return nil
}

func (s *subscriptionService) planBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	plan, err := s.planRepo.GetBySlug(ctx, slug)
	if err != nil {
		if isNoRows(err) {
			return nil, common.NotFound("plan")
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

// planFor loads the subscription's plan. A dangling plan reference is a data
// inconsistency, not a caller error.
func (s *subscriptionService) planFor(ctx context.Context, subscription *models.Subscription) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, subscription.PlanID)
	if err != nil {
		if isNoRows(err) {
			return nil, common.InvalidState("subscription %s references missing plan %s", subscription.ID, subscription.PlanID)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

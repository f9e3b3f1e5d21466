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
	"github.com/shopspring/decimal"
)

// RedeemRequest records that Amount was taken off a purchase with Code.
type RedeemRequest struct {
	Code           string
	UserID         uuid.UUID
	PlanID         *uuid.UUID
	ToolID         *uuid.UUID
	SubscriptionID *uuid.UUID
	Amount         decimal.Decimal
}

type QuoteRequest struct {
	Codes    []string
	UserID   uuid.UUID
	PlanSlug string
	Cycle    string
}

type AppliedCoupon struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Quote is the price of a plan purchase after coupons. It reserves nothing.
type Quote struct {
	PlanID   uuid.UUID       `json:"plan_id"`
	Cycle    string          `json:"cycle"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Coupons  []AppliedCoupon `json:"coupons"`
}

// CouponEngine validates discount codes and keeps the redemption ledger.
type CouponEngine interface {
	IsValidNow(coupon *models.Coupon) bool
	RedemptionsByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error)
	ApplicableToPlan(coupon *models.Coupon, planID uuid.UUID) bool
	ApplicableToTool(coupon *models.Coupon, toolID uuid.UUID) bool
	Discount(coupon *models.Coupon, price decimal.Decimal) decimal.Decimal
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
	Redeem(ctx context.Context, req RedeemRequest) (*models.CouponRedemption, error)
}

type couponService struct {
	couponRepo repositories.CouponRepository
	planRepo   repositories.PlanRepository
	tx         database.TxManager
	now        func() time.Time
	logger     zerolog.Logger
}

func NewCouponService(
	couponRepo repositories.CouponRepository,
	planRepo repositories.PlanRepository,
	tx database.TxManager,
	logger zerolog.Logger,
) CouponEngine {
	return &couponService{
		couponRepo: couponRepo,
		planRepo:   planRepo,
		tx:         tx,
		now:        time.Now,
		logger:     logger.With().Str("service", "coupons").Logger(),
	}
}

func (s *couponService) IsValidNow(coupon *models.Coupon) bool {
	return coupon.IsValidAt(s.now())
}

func (s *couponService) RedemptionsByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	return s.couponRepo.CountRedemptions(ctx, couponID, userID)
}

func (s *couponService) ApplicableToPlan(coupon *models.Coupon, planID uuid.UUID) bool {
	return coupon.AppliesToPlan(planID)
}

func (s *couponService) ApplicableToTool(coupon *models.Coupon, toolID uuid.UUID) bool {
	return coupon.AppliesToTool(toolID)
}

func (s *couponService) Discount(coupon *models.Coupon, price decimal.Decimal) decimal.Decimal {
	return coupon.Discount(price)
}

// Quote applies the codes in order, each to the price left by the previous one.
// A non-stackable coupon cannot be combined with any other.
func (s *couponService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Cycle == "" {
		req.Cycle = models.BillingMonthly
	}
	if req.Cycle != models.BillingMonthly && req.Cycle != models.BillingYearly {
		return nil, common.Invalid("unknown billing cycle %q", req.Cycle)
	}

	plan, err := s.planRepo.GetBySlug(ctx, req.PlanSlug)
	if err != nil {
		if isNoRows(err) {
			return nil, common.NotFound("plan")
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	price := plan.PriceFor(req.Cycle)
	quote := &Quote{PlanID: plan.ID, Cycle: req.Cycle, Price: price, Discount: decimal.Zero, Total: price}

	seen := make(map[string]bool, len(req.Codes))
	remaining := price
	for _, raw := range req.Codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			return nil, common.Invalid("coupon code is required")
		}
		if seen[code] {
			return nil, common.Invalid("coupon %s given twice", code)
		}
		seen[code] = true

		coupon, err := s.couponRepo.GetByCode(ctx, code)
		if err != nil {
			if isNoRows(err) {
				return nil, common.NotFound("coupon")
			}
			return nil, fmt.Errorf("failed to load coupon: %w", err)
		}
		if err := s.checkEligible(ctx, coupon, req.UserID, &plan.ID, nil); err != nil {
			return nil, err
		}
		if len(req.Codes) > 1 && !coupon.Stackable {
			return nil, common.Conflict(fmt.Sprintf("coupon %s cannot be combined with other coupons", code))
		}

		amount := coupon.Discount(remaining)
		remaining = remaining.Sub(amount)
		quote.Coupons = append(quote.Coupons, AppliedCoupon{Code: coupon.Code, Amount: amount})
	}

	quote.Total = remaining
	quote.Discount = price.Sub(remaining)
	return quote, nil
}

// Redeem locks the coupon row and re-checks validity and the per-user limit against
// the locked state before recording the redemption and bumping usage_count.
func (s *couponService) Redeem(ctx context.Context, req RedeemRequest) (*models.CouponRedemption, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, common.Invalid("coupon code is required")
	}
	if req.UserID == uuid.Nil {
		return nil, common.Invalid("user is required")
	}
	if req.Amount.IsNegative() {
		return nil, common.Invalid("discount amount must not be negative")
	}

	var redemption *models.CouponRedemption
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		coupon, err := s.couponRepo.GetByCodeForUpdate(ctx, code)
		if err != nil {
			if isNoRows(err) {
				return common.NotFound("coupon")
			}
			return fmt.Errorf("failed to lock coupon: %w", err)
		}

		if !coupon.IsValidAt(s.now()) {
			return common.Conflict("coupon is no longer valid")
		}
		if err := s.checkEligible(ctx, coupon, req.UserID, req.PlanID, req.ToolID); err != nil {
			return err
		}

		redemption = &models.CouponRedemption{
			ID:               uuid.New(),
			CouponID:         coupon.ID,
			UserID:           req.UserID,
			SubscriptionID:   req.SubscriptionID,
			PlanID:           req.PlanID,
			AmountDiscounted: req.Amount,
		}
		if err := s.couponRepo.CreateRedemption(ctx, redemption); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		if err := s.couponRepo.IncrementUsage(ctx, coupon.ID); err != nil {
			return fmt.Errorf("failed to increment coupon usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("coupon", code).
		Str("user_id", req.UserID.String()).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Coupon redeemed")
	return redemption, nil
}

// checkEligible covers validity, scope and the per-user limit. A per-user limit
// of zero or less means no per-user cap.
func (s *couponService) checkEligible(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, planID, toolID *uuid.UUID) error {
	if !coupon.IsValidAt(s.now()) {
		return common.Denied(fmt.Sprintf("coupon %s is not valid", coupon.Code))
	}
	if planID != nil && !coupon.AppliesToPlan(*planID) {
		return common.Denied(fmt.Sprintf("coupon %s does not apply to this plan", coupon.Code))
	}
	if toolID != nil && !coupon.AppliesToTool(*toolID) {
		return common.Denied(fmt.Sprintf("coupon %s does not apply to this tool", coupon.Code))
	}
	if coupon.PerUserLimit > 0 && userID != uuid.Nil {
		used, err := s.couponRepo.CountRedemptions(ctx, coupon.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to count redemptions: %w", err)
		}
		if used >= coupon.PerUserLimit {
			return common.Denied(fmt.Sprintf("coupon %s was already used the maximum number of times", coupon.Code))
		}
	}
	return nil
}

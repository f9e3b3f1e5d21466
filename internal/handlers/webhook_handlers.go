package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"scangate/internal/common"
	"scangate/internal/metrics"
	"scangate/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	billingSignatureHeader = "X-Billing-Signature"
	maxBillingEventBytes   = 64 << 10
)

// WebhookHandlers receives renewal notifications from the billing provider.
type WebhookHandlers struct {
	subscriptions services.SubscriptionLedger
	webhookSecret string
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewWebhookHandlers(subscriptions services.SubscriptionLedger, webhookSecret string, m *metrics.Metrics, logger zerolog.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		subscriptions: subscriptions,
		webhookSecret: webhookSecret,
		metrics:       m,
		logger:        logger.With().Str("handler", "webhooks").Logger(),
	}
}

type billingEvent struct {
	UserID        string `json:"user_id"`
	Plan          string `json:"plan"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	PaymentMethod string `json:"payment_method"`
}

// verifySignature checks the hex HMAC-SHA256 of the raw body.
func (h *WebhookHandlers) verifySignature(signature string, body []byte) bool {
	if h.webhookSecret == "" {
		return false
	}
	hash := hmac.New(sha256.New, []byte(h.webhookSecret))
	hash.Write(body)
	expected := hex.EncodeToString(hash.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// BillingWebhook handles POST /v1/webhooks/billing
func (h *WebhookHandlers) BillingWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBillingEventBytes+1))
	if err != nil {
		return common.SendClientError(c, "failed to read request body")
	}
	if len(body) > maxBillingEventBytes {
		h.record("invalid")
		return c.JSON(http.StatusRequestEntityTooLarge, common.CreateErrorResponse("PAYLOAD_TOO_LARGE", "request body is too large", nil))
	}

	signature := c.Request().Header.Get(billingSignatureHeader)
	if signature == "" || !h.verifySignature(signature, body) {
		h.record("bad_signature")
		return common.SendUnauthorizedError(c)
	}

	event, err := parseBillingEvent(body)
	if err != nil {
		h.record("invalid")
		return common.SendClientError(c, err.Error())
	}

	subscription, created, err := h.subscriptions.ApplyExternalRenewal(c.Request().Context(), event)
	if err != nil {
		switch {
		case common.IsKind(err, common.ErrValidation):
			h.record("invalid")
		case common.IsKind(err, common.ErrNotFound):
			h.record("not_found")
		default:
			h.record("error")
			h.logger.Error().Err(err).Str("user_id", event.UserID.String()).Msg("Failed to apply renewal")
		}
		return common.SendError(c, err)
	}

	result := "renewed"
	if created {
		result = "created"
	}
	h.record(result)
	h.logger.Info().
		Str("user_id", event.UserID.String()).
		Str("plan", event.PlanSlug).
		Str("subscription_id", subscription.ID.String()).
		Bool("created", created).
		Msg("Billing renewal applied")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Subscription updated",
		"created":      created,
		"subscription": subscription,
	})
}

func (h *WebhookHandlers) record(result string) {
	h.metrics.RenewalsTotal.WithLabelValues(result).Inc()
}

func parseBillingEvent(body []byte) (services.RenewalEvent, error) {
	var raw billingEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return services.RenewalEvent{}, common.Invalid("malformed payload")
	}
	if raw.UserID == "" || raw.Plan == "" || raw.StartDate == "" || raw.EndDate == "" {
		return services.RenewalEvent{}, common.Invalid("missing data")
	}

	userID, err := uuid.Parse(raw.UserID)
	if err != nil {
		return services.RenewalEvent{}, common.Invalid("user_id is not a valid UUID")
	}
	start, err := parseEventTime(raw.StartDate)
	if err != nil {
		return services.RenewalEvent{}, common.Invalid("start_date is not a valid timestamp")
	}
	end, err := parseEventTime(raw.EndDate)
	if err != nil {
		return services.RenewalEvent{}, common.Invalid("end_date is not a valid timestamp")
	}

	return services.RenewalEvent{
		UserID:        userID,
		PlanSlug:      raw.Plan,
		StartDate:     start,
		EndDate:       end,
		PaymentMethod: raw.PaymentMethod,
	}, nil
}

// parseEventTime accepts RFC 3339 timestamps and bare dates.
func parseEventTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

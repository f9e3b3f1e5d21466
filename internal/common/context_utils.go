package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scangate/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey  contextKey = "tenant_id"
	PrincipalKey contextKey = "principal"
	SessionIDKey contextKey = "session_id"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendForbiddenError sends a denial with the reason the caller may show to the user
func SendForbiddenError(c echo.Context, code, reason string) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse(code, reason, nil))
}

// SendError maps the error taxonomy onto HTTP responses.
func SendError(c echo.Context, err error) error {
	var decision *DecisionError
	switch {
	case AsDecision(err, &decision) && decision.Kind == ErrConflict:
		return SendForbiddenError(c, "CONFLICT", decision.Reason)
	case AsDecision(err, &decision):
		return SendForbiddenError(c, "PERMISSION_DENIED", decision.Reason)
	case IsKind(err, ErrValidation):
		return SendClientError(c, err.Error())
	case IsKind(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", err.Error(), nil))
	case IsKind(err, ErrPermissionDenied):
		return SendForbiddenError(c, "PERMISSION_DENIED", err.Error())
	case IsKind(err, ErrConflict):
		return SendForbiddenError(c, "CONFLICT", err.Error())
	default:
		return SendServerError(c, "operation could not be completed")
	}
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid UUID: %v", fieldName, err)
	}

	return id, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateDateRange checks that end comes strictly after start
func ValidateDateRange(startDate, endDate time.Time) error {
	if !endDate.After(startDate) {
		return fmt.Errorf("end date must be after start date")
	}
	return nil
}

// GetTenantIDFromContext extracts the tenant ID from the request context
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// GetPrincipalFromContext returns the resolved principal, or an anonymous one.
func GetPrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(PrincipalKey).(models.Principal); ok {
		return p
	}
	return models.AnonymousPrincipal()
}

// GetSessionIDFromContext extracts the session identifier set by the session middleware
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(SessionIDKey).(string)
	return sid, ok && sid != ""
}

// GetTenantContext returns the active tenant for the request, or nil when none is selected.
func GetTenantContext(ctx context.Context) *models.TenantContext {
	tenantID, ok := GetTenantIDFromContext(ctx)
	if !ok || tenantID == uuid.Nil {
		return nil
	}
	sid, _ := GetSessionIDFromContext(ctx)
	return &models.TenantContext{TenantID: tenantID, SessionID: sid}
}

package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scangate/internal/common"
	"scangate/internal/models"
	"scangate/internal/repositories"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PrincipalResolver turns the bearer token into a models.Principal. Requests
// without a token continue as anonymous guests keyed by their session id.
type PrincipalResolver struct {
	userRepo repositories.UserRepository
	keyFunc  jwt.Keyfunc
	parser   *jwt.Parser
	logger   zerolog.Logger
}

// NewHMACResolver validates HS256 tokens signed with secret.
func NewHMACResolver(userRepo repositories.UserRepository, secret string, logger zerolog.Logger) *PrincipalResolver {
	return &PrincipalResolver{
		userRepo: userRepo,
		keyFunc: func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})),
		logger: logger.With().Str("middleware", "principal").Logger(),
	}
}

// NewJWKSResolver validates RS256 tokens against a remote key set. The returned
// stop function ends the background refresh.
func NewJWKSResolver(userRepo repositories.UserRepository, jwksURL string, logger zerolog.Logger) (*PrincipalResolver, func(), error) {
	l := logger.With().Str("middleware", "principal").Logger()
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			l.Warn().Err(err).Msg("JWKS refresh failed")
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	return &PrincipalResolver{
		userRepo: userRepo,
		keyFunc:  jwks.Keyfunc,
		parser: jwt.NewParser(
			jwt.WithLeeway(30*time.Second),
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name}),
		),
		logger: l,
	}, jwks.EndBackground, nil
}

// Middleware must run after Session so anonymous callers get a guest key.
func (r *PrincipalResolver) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				principal := models.AnonymousPrincipal()
				principal.GuestKey, _ = common.GetSessionIDFromContext(ctx)
				c.SetRequest(c.Request().WithContext(context.WithValue(ctx, common.PrincipalKey, principal)))
				return next(c)
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return common.SendUnauthorizedError(c)
			}

			userID, err := r.subject(tokenString)
			if err != nil {
				r.logger.Debug().Err(err).Msg("Rejected bearer token")
				return common.SendUnauthorizedError(c)
			}

			user, err := r.userRepo.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return common.SendUnauthorizedError(c)
				}
				r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to load principal")
				return common.SendServerError(c, "failed to resolve principal")
			}
			if !user.IsActive {
				return common.SendUnauthorizedError(c)
			}

			principal := models.Principal{
				UserID:          user.ID,
				Authenticated:   true,
				IsPlatformAdmin: user.IsSuperuser,
			}
			ctx = context.WithValue(ctx, common.PrincipalKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireUser rejects anonymous callers.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if common.GetPrincipalFromContext(c.Request().Context()).IsAnonymous() {
			return common.SendUnauthorizedError(c)
		}
		return next(c)
	}
}

func (r *PrincipalResolver) subject(tokenString string) (uuid.UUID, error) {
	token, err := r.parser.Parse(tokenString, r.keyFunc)
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("token not valid")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, errors.New("missing subject")
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

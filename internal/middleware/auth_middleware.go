package middleware

import (
	"context"
	"net/http"
	"qittMarket/domain"
	"qittMarket/pkg/logger"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	ContextKeyIdentity = "identity"
	ContextKeyUserID   = "user_id"
	ContextKeyToken    = "token"
)

// SessionResolver resolves a bearer token to the signed-in identity.
type SessionResolver interface {
	GetCurrentSession(ctx context.Context, token string) (*domain.Identity, error)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header.
func BearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") || tokenParts[1] == "" {
		return "", false
	}
	return tokenParts[1], true
}

// AuthMiddleware requires a live session and puts its identity on the
// echo context.
func AuthMiddleware(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code: "UNAUTHORIZED", Message: "Missing authorization header",
				})
			}

			token, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code: "UNAUTHORIZED", Message: "Invalid authorization format",
				})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			identity, err := resolver.GetCurrentSession(ctx, token)
			if err != nil {
				logger.Error("Failed to resolve session", err)
				return c.JSON(http.StatusServiceUnavailable, errorBody{
					Code: "UNAVAILABLE", Message: "Session store unavailable, please retry",
				})
			}
			if identity == nil {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code: "UNAUTHORIZED", Message: "Token expired or invalid",
				})
			}

			c.Set(ContextKeyIdentity, *identity)
			c.Set(ContextKeyUserID, identity.ID)
			c.Set(ContextKeyToken, token)

			return next(c)
		}
	}
}

// IdentityFrom returns the identity set by AuthMiddleware.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(ContextKeyIdentity).(domain.Identity)
	return identity, ok
}

package rest

import (
	"context"
	"errors"
	"net/http"
	"qittMarket/business/auth"
	"qittMarket/domain"
	"qittMarket/internal/identity"
	"qittMarket/internal/middleware"
	"qittMarket/pkg/logger"
	"qittMarket/pkg/metrics"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type RegistrationFlow interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.RegisterResult, error)
}

type OAuthFlow interface {
	Begin(ctx context.Context, provider, redirectTo string) (string, error)
	Complete(ctx context.Context, provider, state, code string) (auth.OAuthResult, error)
	SubmitProfile(ctx context.Context, identity domain.Identity, rc domain.RegistrationContext) domain.Snapshot
}

type IdentityService interface {
	SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error)
	SignOut(ctx context.Context, token string) error
	ConfirmEmail(ctx context.Context, code string) (domain.Identity, error)
	ResendConfirmation(ctx context.Context, email string) error
}

// SnapshotSource gives the provisioning state recorded for a signed-in user.
type SnapshotSource interface {
	Lookup(userID string) (*auth.AppContext, bool)
}

type AuthHandler struct {
	registration RegistrationFlow
	oauth        OAuthFlow
	identity     IdentityService
	snapshots    SnapshotSource
	validator    *validator.Validate
	timeout      time.Duration
}

func NewAuthHandler(registration RegistrationFlow, oauth OAuthFlow, identity IdentityService, snapshots SnapshotSource) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		oauth:        oauth,
		identity:     identity,
		snapshots:    snapshots,
		validator:    validator.New(),
		timeout:      10 * time.Second,
	}
}

type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Name       string `json:"name"`
	School     string `json:"school"`
	Department string `json:"department"`
	Level      string `json:"level"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResendConfirmationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResponseError represent the response error struct
type ResponseError struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validator.Struct(&req); err != nil {
		logger.Error("Failed to validate register request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.registration.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Registration: domain.RegistrationContext{
			Name:       req.Name,
			School:     req.School,
			Department: req.Department,
			Level:      req.Level,
		},
	})
	metrics.RecordAuth("register", err)
	if err != nil {
		return authError(c, err)
	}

	message := "Registration successful"
	if result.Snapshot.LastError != nil {
		message = result.Snapshot.LastError.Message
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      message,
		"identity":     result.Identity,
		"session":      result.Session,
		"provisioning": result.Snapshot,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validator.Struct(&req); err != nil {
		logger.Error("Failed to validate login request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	session, err := h.identity.SignInWithPassword(ctx, req.Email, req.Password)
	metrics.RecordAuth("login", err)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, ResponseError{Message: err.Error()})
		}
		return authError(c, err)
	}

	resp := map[string]interface{}{
		"message":    "Login successful",
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"identity":   session.Identity,
	}
	// Sign-in already resumed provisioning through the SIGNED_IN event.
	if appCtx, ok := h.snapshots.Lookup(session.Identity.ID); ok {
		resp["provisioning"] = appCtx.Snapshot()
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := c.Get(middleware.ContextKeyToken).(string)
	if !ok {
		logger.Error("Failed to get token from context")
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.identity.SignOut(ctx, token); err != nil {
		logger.Error("Failed to logout", err)
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Logout successful",
	})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	code := c.Param("code")

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	confirmed, err := h.identity.ConfirmEmail(ctx, code)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Email confirmed, you can now sign in",
		"identity": confirmed,
	})
}

func (h *AuthHandler) ResendConfirmation(c echo.Context) error {
	var req ResendConfirmationRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.identity.ResendConfirmation(ctx, req.Email); err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "If the address is registered and unconfirmed, a new link has been sent",
	})
}

// BeginOAuth redirects the browser to the provider.
func (h *AuthHandler) BeginOAuth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	authURL, err := h.oauth.Begin(ctx, c.Param("provider"), c.QueryParam("redirect_to"))
	if err != nil {
		return authError(c, err)
	}

	return c.Redirect(http.StatusFound, authURL)
}

func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if providerErr := c.QueryParam("error"); providerErr != "" {
		metrics.RecordAuth("oauth", errors.New(providerErr))
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "sign-in was cancelled or denied: " + providerErr})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.oauth.Complete(ctx, c.Param("provider"), c.QueryParam("state"), c.QueryParam("code"))
	metrics.RecordAuth("oauth", err)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"token":        result.Session.Token,
		"expires_at":   result.Session.ExpiresAt,
		"identity":     result.Session.Identity,
		"redirect_to":  result.RedirectTo,
		"provisioning": result.Snapshot,
	})
}

func authError(c echo.Context, err error) error {
	var formErr *auth.FormError

	switch {
	case errors.As(err, &formErr):
		return c.JSON(http.StatusUnprocessableEntity, ResponseError{Message: formErr.Error(), Fields: formErr.Fields})
	case errors.Is(err, identity.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	case errors.Is(err, identity.ErrEmailInUse):
		return c.JSON(http.StatusConflict, ResponseError{Message: err.Error()})
	case errors.Is(err, identity.ErrEmailUnconfirmed):
		return c.JSON(http.StatusForbidden, ResponseError{Message: "Please check your email and click the confirmation link to complete registration."})
	case errors.Is(err, identity.ErrInvalidCode), errors.Is(err, identity.ErrInvalidOAuthState):
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	case errors.Is(err, identity.ErrUnknownProvider):
		return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
	case errors.Is(err, identity.ErrNetwork):
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "service temporarily unavailable, please try again"})
	default:
		logger.Error("Unexpected auth error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
}

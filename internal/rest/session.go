package rest

import (
	"context"
	"net/http"
	"qittMarket/domain"
	"qittMarket/internal/middleware"
	"qittMarket/pkg/logger"
	"time"

	"github.com/labstack/echo/v4"
)

type SessionFlow interface {
	Resume(ctx context.Context, identity *domain.Identity) domain.Snapshot
	Retry(ctx context.Context, identity domain.Identity) domain.Snapshot
}

type ProfileSubmitter interface {
	SubmitProfile(ctx context.Context, identity domain.Identity, rc domain.RegistrationContext) domain.Snapshot
}

// SessionHandler exposes the provisioning machine of the signed-in user.
type SessionHandler struct {
	session SessionFlow
	profile ProfileSubmitter
	timeout time.Duration
}

func NewSessionHandler(session SessionFlow, profile ProfileSubmitter) *SessionHandler {
	return &SessionHandler{
		session: session,
		profile: profile,
		timeout: 10 * time.Second,
	}
}

type ProfileRequest struct {
	Name       string `json:"name"`
	School     string `json:"school"`
	Department string `json:"department"`
	Level      string `json:"level"`
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	snap := h.session.Resume(ctx, &identity)
	return snapshotResponse(c, identity, snap)
}

// SubmitProfile is the profile completion modal.
func (h *SessionHandler) SubmitProfile(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	snap := h.profile.SubmitProfile(ctx, identity, domain.RegistrationContext{
		Name:       req.Name,
		School:     req.School,
		Department: req.Department,
		Level:      req.Level,
	})
	return snapshotResponse(c, identity, snap)
}

func (h *SessionHandler) Retry(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	snap := h.session.Retry(ctx, identity)
	return snapshotResponse(c, identity, snap)
}

// snapshotResponse always returns the snapshot; the status code only
// summarizes it for clients that do not read the body.
func snapshotResponse(c echo.Context, identity domain.Identity, snap domain.Snapshot) error {
	status := http.StatusOK
	switch {
	case snap.State == domain.StateError && snap.LastError != nil && snap.LastError.Recoverable:
		status = http.StatusServiceUnavailable
	case snap.State == domain.StateError:
		status = http.StatusInternalServerError
	case snap.State == domain.StateAwaitingProfileInput && snap.LastError != nil:
		status = http.StatusUnprocessableEntity
	}

	return c.JSON(status, map[string]interface{}{
		"identity":     identity,
		"provisioning": snap,
	})
}

package rest

import (
	"context"
	"errors"
	"net/http"
	"qittMarket/business/wallet"
	"qittMarket/domain"
	"qittMarket/internal/middleware"
	"qittMarket/pkg/logger"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type WalletService interface {
	GetWallet(ctx context.Context, userID string) (domain.Wallet, error)
	ListTransactions(ctx context.Context, userID string, filter string) ([]domain.WalletTransaction, error)
}

type WalletHandler struct {
	walletService WalletService
	timeout       time.Duration
}

func NewWalletHandler(walletService WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		timeout:       10 * time.Second,
	}
}

// GetWallet returns the wallet of the signed-in user, creating it if a
// previous provisioning run left the account without one.
func (h *WalletHandler) GetWallet(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	w, err := h.walletService.GetWallet(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return c.JSON(http.StatusConflict, ResponseError{Message: "complete your profile before using the wallet"})
		}
		logger.Error("Failed to get wallet", err)
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "wallet temporarily unavailable, please try again"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(w))
}

func (h *WalletHandler) ListTransactions(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	txs, err := h.walletService.ListTransactions(ctx, identity.ID, c.QueryParam("type"))
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidFilter) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "type must be one of all, purchases, sales"})
		}
		logger.Error("Failed to list wallet transactions", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(txs))
}

package router

import (
	"net/http"
	"qittMarket/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupAuthRoutes(api *echo.Group, handler *rest.AuthHandler, authRequired echo.MiddlewareFunc) {
	auth := api.Group("/auth")

	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout, authRequired)
	auth.GET("/email-verification/:code", handler.VerifyEmail)
	auth.POST("/resend-confirmation", handler.ResendConfirmation)

	auth.GET("/oauth/:provider", handler.BeginOAuth)
	auth.GET("/oauth/:provider/callback", handler.OAuthCallback)
}

func SetupSessionRoutes(api *echo.Group, handler *rest.SessionHandler, authRequired echo.MiddlewareFunc) {
	session := api.Group("/session", authRequired)

	session.GET("", handler.GetSession)
	session.POST("/profile", handler.SubmitProfile)
	session.POST("/retry", handler.Retry)
}

func SetupWalletRoutes(api *echo.Group, handler *rest.WalletHandler, authRequired echo.MiddlewareFunc) {
	wallet := api.Group("/wallet", authRequired)

	wallet.GET("", handler.GetWallet)
	wallet.GET("/transactions", handler.ListTransactions)
}

func SetupCatalogRoutes(api *echo.Group, handler *rest.CatalogHandler) {
	catalog := api.Group("/catalog")

	catalog.GET("/departments", handler.GetDepartments)
	catalog.GET("/levels", handler.GetLevels)
}

func SetupOpsRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

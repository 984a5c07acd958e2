package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"qittMarket/app/echo-server/router"
	"qittMarket/business/auth"
	"qittMarket/business/provisioning"
	"qittMarket/business/wallet"
	"qittMarket/internal/identity"
	"qittMarket/internal/identity/oauth"
	"qittMarket/internal/middleware"
	"qittMarket/internal/repository/notification"
	psqlRepo "qittMarket/internal/repository/postgres"
	redisRepo "qittMarket/internal/repository/redis"
	"qittMarket/internal/rest"
	"qittMarket/pkg/config"
	"qittMarket/pkg/database"
	"qittMarket/pkg/logger"
	"qittMarket/pkg/metrics"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Qitt Marketplace", "version", cfg.App.Version)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := database.InitRedis(pingCtx, cfg)
	cancelPing()
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	defer rdb.Close()

	logger.Info("Redis connected successfully")

	metrics.Init()

	// Init notification from mailjet
	mailjetEmail := notification.NewMailjetRepository(
		notification.MailjetConfig{
			BaseURL:           cfg.Mailjet.MailjetBaseUrl,
			BasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
			BasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
			SenderEmail:       cfg.Mailjet.MailjetSenderEmail,
			SenderName:        cfg.Mailjet.MailjetSenderName,
		},
	)

	// Init oauth providers
	var oauthProviders []oauth.Provider
	if cfg.GoogleOAuth.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		google, err := oauth.NewGoogleProvider(ctx, cfg.GoogleOAuth.ClientID, cfg.GoogleOAuth.ClientSecret, cfg.GoogleOAuth.RedirectURL)
		cancel()
		if err != nil {
			logger.Fatal("Failed to init google oauth", "error", err)
		}
		oauthProviders = append(oauthProviders, google)
	} else {
		logger.Warn("Google OAuth is not configured, OAuth sign-in disabled")
	}

	// Init repo
	profileRepo := psqlRepo.NewProfileRepository(db)
	walletRepo := psqlRepo.NewWalletRepository(db)
	transactionRepo := psqlRepo.NewWalletTransactionRepository(db)
	credentialRepo := psqlRepo.NewCredentialRepository(db)
	sessionRepo := redisRepo.NewSessionRepository(rdb)
	oauthStateRepo := redisRepo.NewOAuthStateRepository(rdb)

	// Init identity adapter
	identityProvider := identity.NewProvider(
		identity.Config{
			JWTSecret:            cfg.JWT.SecretKey,
			EmailVerificationKey: cfg.App.AppEmailVerificationKey,
			DeploymentURL:        cfg.App.AppDeploymentUrl,
			SessionTTL:           cfg.JWT.SessionTTL,
			ConfirmationTTL:      cfg.JWT.ConfirmationTTL,
			OAuthStateTTL:        cfg.JWT.OAuthStateTTL,
			AutoConfirmEmail:     cfg.App.AutoConfirmEmail,
		},
		credentialRepo,
		sessionRepo,
		oauthStateRepo,
		mailjetEmail,
		oauth.NewRegistry(oauthProviders...),
	)

	// Init service
	engine := provisioning.NewEngine(profileRepo, walletRepo, provisioning.NewValidator())
	contexts := auth.NewContexts(engine, cfg.JWT.SessionTTL)
	registrationFlow := auth.NewRegistrationFlow(identityProvider, contexts)
	oauthFlow := auth.NewOAuthCompletionFlow(identityProvider, contexts)
	resumeFlow := auth.NewSessionResumeFlow(identityProvider, contexts)
	stopResume := resumeFlow.Start()
	defer stopResume()
	walletService := wallet.NewWalletService(walletRepo, profileRepo, transactionRepo)

	// Init handler
	authHandler := rest.NewAuthHandler(registrationFlow, oauthFlow, identityProvider, contexts)
	sessionHandler := rest.NewSessionHandler(resumeFlow, oauthFlow)
	walletHandler := rest.NewWalletHandler(walletService)
	catalogHandler := rest.NewCatalogHandler()

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.App.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(metrics.Middleware())

	// Auth middleware
	authRequired := middleware.AuthMiddleware(identityProvider)

	// Setup routes
	router.SetupOpsRoutes(e)
	api := e.Group("/api/v1")
	router.SetupAuthRoutes(api, authHandler, authRequired)
	router.SetupSessionRoutes(api, sessionHandler, authRequired)
	router.SetupWalletRoutes(api, walletHandler, authRequired)
	router.SetupCatalogRoutes(api, catalogHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

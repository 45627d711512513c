package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/db"
	"github.com/coursedesk/admin-gateway/internal/identity"
	"github.com/coursedesk/admin-gateway/internal/login"
	"github.com/coursedesk/admin-gateway/internal/redirects"
	"github.com/coursedesk/admin-gateway/internal/revproxy"
	"github.com/coursedesk/admin-gateway/internal/sessions"
	"github.com/coursedesk/admin-gateway/internal/tokenrefresher"
	"github.com/coursedesk/admin-gateway/internal/tokenstore"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// Logging setup
	slog.SetDefault(jsonLogger)
	// Load configuration
	ch := config.NewConfigHandler()
	gwConfig, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", gwConfig)
	// Set log level to "debug" if activated
	if gwConfig.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	// Setup
	e := echo.New()
	e.Pre(requestIDMiddleware, middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	// The banner and the port do not respect the logger formatting we set below so we remove them
	// the port will be logged further down when the server starts.
	e.HideBanner = true
	e.HidePort = true
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	// Version endpoint
	buildInfo, ok := debug.ReadBuildInfo()
	version := ""
	if ok && buildInfo != nil {
		version = buildInfo.Main.Version
	}
	e.GET("/version", func(c echo.Context) error {
		return c.String(http.StatusOK, version)
	})
	// Initialize the db adapter
	dbOptions := []db.RedisAdapterOption{db.WithRedisConfig(gwConfig.Redis)}
	if gwConfig.Auth.TokenEncryption.Enabled && gwConfig.Auth.TokenEncryption.SecretKey != "" {
		slog.Info("redis encryption is enabled")
		dbOptions = append(dbOptions, db.WithEncryption(string(gwConfig.Auth.TokenEncryption.SecretKey)))
	}
	dbAdapter, err := db.NewRedisAdapter(dbOptions...)
	if err != nil {
		slog.Error("DB adapter initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the backend auth client
	backendClient, err := backendauth.NewClient(backendauth.WithBackendConfig(gwConfig.Backend, gwConfig.Auth))
	if err != nil {
		slog.Error("backend auth client initialization failed", "error", err)
		os.Exit(1)
	}
	// Token recovery tries the refresh credential first and falls back
	// to exchanging the stored identity token
	recoverer, err := authflow.NewRecoverer(authflow.WithStrategies(
		authflow.RefreshStrategy(dbAdapter, backendClient),
		authflow.IdentityExchangeStrategy(dbAdapter, dbAdapter, backendClient),
	))
	if err != nil {
		slog.Error("token recoverer initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the token cache
	tokenCache, err := tokenstore.NewTokenCache(
		tokenstore.WithTokenRepository(dbAdapter),
		tokenstore.WithAuthConfig(gwConfig.Auth),
		tokenstore.WithAcquirer(recoverer.Recover),
	)
	if err != nil {
		slog.Error("token cache initialization failed", "error", err)
		os.Exit(1)
	}
	// Sign-in redirect resolution
	resolver, err := redirects.NewResolver(redirects.WithSigninConfig(gwConfig.Signin))
	if err != nil {
		slog.Error("redirect resolver initialization failed", "error", err)
		os.Exit(1)
	}
	// Create the session handler
	sessionHandler, err := sessions.NewSessionHandler(
		sessions.WithSessionConfig(gwConfig.Sessions, gwConfig.Auth, gwConfig.Environment),
		sessions.WithSessionStore(dbAdapter),
	)
	if err != nil {
		slog.Error("failed to initialize sessions", "error", err)
		os.Exit(1)
	}
	// Logout teardown shared by the proxy and the login server
	logoutCoordinator, err := authflow.NewLogoutCoordinator(
		authflow.WithBackendClient(backendClient),
		authflow.WithTokenCache(tokenCache),
		authflow.WithTokenRepository(dbAdapter),
		authflow.WithSessionRepository(dbAdapter),
		authflow.WithRedirectResolver(resolver),
	)
	if err != nil {
		slog.Error("logout coordinator initialization failed", "error", err)
		os.Exit(1)
	}
	// OIDC client for the LMS identity provider
	identityClient, err := identity.NewClient(identity.WithIdentityConfig(gwConfig.Identity, gwConfig.Environment))
	if err != nil {
		slog.Error("identity client initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the reverse proxy
	proxy, err := revproxy.NewServer(
		revproxy.WithBackendConfig(gwConfig.Backend, gwConfig.Auth),
		revproxy.WithSessionHandler(sessionHandler),
		revproxy.WithTokenCache(tokenCache),
		revproxy.WithRecoverer(recoverer),
		revproxy.WithLogoutCoordinator(logoutCoordinator),
		revproxy.WithRedirectResolver(resolver),
	)
	if err != nil {
		slog.Error("revproxy initialization failed", "error", err)
		os.Exit(1)
	}
	err = proxy.RegisterHandlers(e, commonMiddlewares...)
	if err != nil {
		slog.Error("revproxy handlers registration failed", "error", err)
		os.Exit(1)
	}
	// Initialize the login server
	loginServer, err := login.NewLoginServer(
		login.WithSessionHandler(sessionHandler),
		login.WithIdentityClient(identityClient),
		login.WithBackendClient(backendClient),
		login.WithTokenRepository(dbAdapter),
		login.WithLogoutCoordinator(logoutCoordinator),
	)
	if err != nil {
		slog.Error("login handlers initialization failed", "error", err)
		os.Exit(1)
	}
	loginServer.RegisterHandlers(e, commonMiddlewares...)
	// Background refresh of tokens that are about to expire
	refresher, err := tokenrefresher.NewTokenRefresher(
		tokenrefresher.WithTokenCache(tokenCache),
		tokenrefresher.WithRecoverer(recoverer),
	)
	if err != nil {
		slog.Error("token refresher initialization failed", "error", err)
		os.Exit(1)
	}
	scheduler, err := refresher.GetScheduler()
	if err != nil {
		slog.Error("token refresher scheduler initialization failed", "error", err)
		os.Exit(1)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()
	// Rate limiting
	if gwConfig.Server.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(gwConfig.Server.RateLimits.Rate),
					Burst:     gwConfig.Server.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		),
		)
	}
	// CORS
	if len(gwConfig.Server.AllowOrigin) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: gwConfig.Server.AllowOrigin}))
	}
	// Sentry
	if gwConfig.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(gwConfig.Monitoring.Sentry.Dsn),
			TracesSampleRate: gwConfig.Monitoring.Sentry.SampleRate,
			Environment:      gwConfig.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		}
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	// Prometheus
	if gwConfig.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("gateway"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", gwConfig.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	// Start server
	address := fmt.Sprintf("%s:%d", gwConfig.Server.Host, gwConfig.Server.Port)
	slog.Info("starting the server on address " + address)
	go func() {
		err := e.Start(address)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("shutting down the server gracefuly failed", "error", err)
			os.Exit(1)
		}
	}()
	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("received signal to shut down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}

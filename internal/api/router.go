package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/videotube/account-service/docs"
	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/api/middleware"
	"github.com/videotube/account-service/internal/core/ports"
)

const jsonBodyLimit = "16K"

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	CORSOrigin     string
	CookieSecure   bool
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	MaxUploadBytes int64
	// EnableMetrics mounts the Prometheus middleware and /metrics. The
	// middleware registers collectors globally, so only one router per process
	// may enable it.
	EnableMetrics bool
}

// Dependencies are the core services the handlers delegate to.
type Dependencies struct {
	Accounts ports.AccountService
	Sessions ports.SessionService
	Guard    ports.Authenticator
	Profiles ports.ProfileService
	Checks   map[string]handler.DependencyCheck
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig, deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: true,
	}))
	if cfg.EnableMetrics {
		e.Use(echoprometheus.NewMiddleware("accounts"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	// --- Dependencies ---
	cookies := handler.CookieOptions{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
	userHandler := handler.NewUserHandler(deps.Accounts, deps.Sessions, cookies, cfg.MaxUploadBytes)
	profileHandler := handler.NewProfileHandler(deps.Profiles)
	auth := middleware.Auth(deps.Guard)

	jsonLimit := echomiddleware.BodyLimit(jsonBodyLimit)
	uploadLimit := echomiddleware.BodyLimit(multipartLimit(cfg.MaxUploadBytes))

	// --- User routes ---
	users := e.Group("/api/v1/users")
	users.POST("/register", userHandler.Register, uploadLimit)
	users.POST("/login", userHandler.Login, jsonLimit)
	users.POST("/refresh-token", userHandler.RefreshToken, jsonLimit)

	users.POST("/logout", userHandler.Logout, auth)
	users.POST("/change-password", userHandler.ChangePassword, jsonLimit, auth)
	users.GET("/current-user", userHandler.CurrentUser, auth)
	users.PATCH("/update-account", userHandler.UpdateAccount, jsonLimit, auth)
	users.PATCH("/avatar", userHandler.UpdateAvatar, uploadLimit, auth)
	users.PATCH("/cover-image", userHandler.UpdateCoverImage, uploadLimit, auth)
	users.GET("/channel/:username", profileHandler.Channel, auth)
	users.GET("/watch-history", profileHandler.WatchHistory, auth)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)           // is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // are dependencies up?

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// multipartLimit allows two files of maxUpload bytes plus the text fields.
func multipartLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		return "10M"
	}
	kb := (2*maxUpload)/1024 + 64
	return fmt.Sprintf("%dK", kb)
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= 500 {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"signout/docs/schema/openapi"
	"signout/internal/core"
	"signout/internal/platform/middleware"
)

// ServerConfig tunes the echo instance built by NewServer.
type ServerConfig struct {
	Logger       zerolog.Logger
	CORSOrigins  []string
	RateLimitRPS float64
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewServer builds the echo instance serving the sign-out API.
func NewServer(svc *core.Service, cfg ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(cfg.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(cfg.Logger))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
		}))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "storage": svc.Store().Driver()})
	})
	e.GET("/openapi.yaml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, openapi.ContentType, openapi.Spec())
	})
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	api := e.Group(BasePath)
	if cfg.RateLimitRPS > 0 {
		api.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitRPS))))
	}
	NewHandler(svc).RegisterRoutes(api)
	return e
}

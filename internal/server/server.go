package server

import (
	"context"
	"fortunex-api/internal/apperror"
	"fortunex-api/internal/checkout"
	"fortunex-api/internal/config"
	"fortunex-api/internal/handler"
	"fortunex-api/internal/logger"
	appmiddleware "fortunex-api/internal/middleware"
	"fortunex-api/internal/service"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Webhook     service.WebhookService
	Analyzer    service.AnalyzerService
	Entitlement service.EntitlementService
	Session     service.SessionService
	Watchlist   service.WatchlistService
	Catalog     *checkout.Catalog
}

type Server struct {
	echo               *echo.Echo
	rateLimiter        *appmiddleware.RateLimiter
	session            echo.MiddlewareFunc
	webhookHandler     *handler.WebhookHandler
	analyzeHandler     *handler.AnalyzeHandler
	checkoutHandler    *handler.CheckoutHandler
	entitlementHandler *handler.EntitlementHandler
	sessionHandler     *handler.SessionHandler
	watchlistHandler   *handler.WatchlistHandler
}

func NewServer(cfg *config.Config, log *zap.Logger, svc Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.Handler(log)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logger.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, appmiddleware.SessionTokenHeader},
	}))

	s := &Server{
		echo:               e,
		rateLimiter:        appmiddleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, 10*time.Minute),
		session:            appmiddleware.Session(svc.Session),
		webhookHandler:     handler.NewWebhookHandler(svc.Webhook, cfg.Stripe.MaxBodyBytes, log),
		analyzeHandler:     handler.NewAnalyzeHandler(svc.Analyzer, svc.Catalog, cfg.BaseURL),
		checkoutHandler:    handler.NewCheckoutHandler(svc.Catalog, svc.Session, cfg.BaseURL),
		entitlementHandler: handler.NewEntitlementHandler(svc.Entitlement, svc.Analyzer),
		sessionHandler:     handler.NewSessionHandler(svc.Session),
		watchlistHandler:   handler.NewWatchlistHandler(svc.Watchlist),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- stripe webhooks --------
	// every method is routed so non-POST gets the webhook's own 405
	api.Any("/webhook", s.webhookHandler.StripeWebhook)
	api.Any("/stripe/webhook", s.webhookHandler.StripeWebhook)

	// -------- analysis --------
	api.POST("/analyze", s.analyzeHandler.Analyze, s.rateLimiter.Middleware(), s.session)
	api.GET("/entitlement", s.entitlementHandler.GetEntitlement, s.session)

	// -------- checkout / referral --------
	api.GET("/plans", s.checkoutHandler.ListPlans)
	api.GET("/checkout/:plan", s.checkoutHandler.Checkout, s.session)
	api.POST("/session", s.sessionHandler.StartSession, s.rateLimiter.Middleware())

	// -------- watchlist --------
	watchlist := api.Group("/watchlist", s.session)
	watchlist.GET("", s.watchlistHandler.List)
	watchlist.POST("", s.watchlistHandler.Add)
	watchlist.DELETE("", s.watchlistHandler.Remove)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Package api exposes the composer, automation and account operations over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/postcard/internal/asset"
	"github.com/foxzi/postcard/internal/campaign"
	"github.com/foxzi/postcard/internal/config"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/dnscheck"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/ipfilter"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/stripe"
	"github.com/foxzi/postcard/internal/subscriber"
	"github.com/foxzi/postcard/internal/template"
)

// Deps are the services the API serves. Optional ones may be nil and their
// routes answer 404.
type Deps struct {
	Templates   *template.Storage
	Rules       *rule.Storage
	Subscribers *subscriber.Storage
	Campaigns   *campaign.Storage
	Composer    *campaign.Composer
	Credits     *credits.Ledger

	Assets     asset.Store  // optional
	AssetFiles http.Handler // optional, serves /assets/* for the local store
	Sandbox    *gateway.Sandbox
	Webhooks   *stripe.Dispatcher
	Verifier   *stripe.Verifier
	Metrics    *metrics.Metrics
	Filter     *ipfilter.Filter

	DomainCheck  *dnscheck.Checker
	SenderDomain string // default domain for the DNS check
	DKIMSelector string
}

// Server is the HTTP API server
type Server struct {
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	config     *config.APIConfig
	logger     *slog.Logger
	startTime  time.Time
	now        func() time.Time
	tlsConfig  *tls.Config
}

// NewServer creates a new API server
func NewServer(deps Deps, cfg *config.APIConfig, logger *slog.Logger) *Server {
	s := &Server{
		deps:      deps,
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware(s.deps.Metrics))

	s.router.Get("/health", s.handleHealth)

	if s.deps.AssetFiles != nil {
		s.router.Handle("/assets/*", http.StripPrefix("/assets", s.deps.AssetFiles))
	}

	// Stripe authenticates with its signature, not the API key
	s.router.Post("/webhooks/stripe", s.handleStripeWebhook)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.deps.Filter.Middleware)
		r.Use(s.authMiddleware)

		r.Post("/preview", s.handlePreview)
		r.Get("/variants", s.handleVariants)
		r.Get("/placeholders", s.handlePlaceholders)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/preview", s.handlePreviewTemplate)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/defaults/{kind}", s.handleRuleDefaults)
			r.Get("/{id}", s.handleGetRule)
			r.Put("/{id}", s.handleUpdateRule)
			r.Delete("/{id}", s.handleDeleteRule)
			r.Post("/{id}/toggle", s.handleToggleRule)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", s.handleListSubscribers)
			r.Post("/", s.handleAddSubscriber)
			r.Post("/import", s.handleImportSubscribers)
			r.Delete("/{id}", s.handleDeleteSubscriber)
			r.Put("/{id}/status", s.handleSetSubscriberStatus)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/preview", s.handlePreviewCampaign)
			r.Post("/send", s.handleSendCampaign)
			r.Post("/schedule", s.handleScheduleCampaign)
			r.Get("/{id}", s.handleGetCampaign)
			r.Post("/{id}/cancel", s.handleCancelCampaign)
		})

		r.Get("/credits", s.handleCredits)
		r.Post("/credits/grant", s.handleGrantCredits)

		r.Post("/assets/logo", s.handleUploadLogo)
		r.Get("/domain/check", s.handleDomainCheck)

		r.Get("/sandbox", s.handleListSandbox)
		r.Get("/sandbox/{id}", s.handleGetSandbox)
		r.Delete("/sandbox", s.handleClearSandbox)
	})
}

// SetTLSConfig makes the server accept HTTPS only
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.tlsConfig = cfg
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP API server", "addr", ln.Addr().String(), "tls", s.tlsConfig != nil)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	return s.httpServer.Shutdown(ctx)
}

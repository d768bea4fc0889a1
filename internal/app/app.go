// Package app wires the stores, gateways and servers into a running service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/api"
	"github.com/foxzi/postcard/internal/asset"
	"github.com/foxzi/postcard/internal/campaign"
	"github.com/foxzi/postcard/internal/compose"
	"github.com/foxzi/postcard/internal/config"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/ipfilter"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/ratelimit"
	"github.com/foxzi/postcard/internal/storage"
	"github.com/foxzi/postcard/internal/stripe"
	pctls "github.com/foxzi/postcard/internal/tls"
)

// App is the main application
type App struct {
	config          *config.Config
	db              *bolt.DB
	stores          *Stores
	apiServer       *api.Server
	challengeServer *http.Server // ACME HTTP-01
	metricsServer   *metrics.Server
	collector       *metrics.Collector
	scheduler       *campaign.Scheduler
	rateLimiter     *ratelimit.Limiter
	logger          *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := SetupLogger(cfg.Logging)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	a, err := build(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *bolt.DB, logger *slog.Logger) (*App, error) {
	stores, err := OpenStores(db, cfg)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(cfg, db, logger.With("component", "gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	logger.Info("gateway configured", "driver", gw.Name())

	sender := compose.Sender{
		Company: cfg.Company.Name,
		From:    cfg.Company.From,
		ReplyTo: cfg.Company.ReplyTo,
	}

	deps := api.Deps{
		Templates:   stores.Templates,
		Rules:       stores.Rules,
		Subscribers: stores.Subscribers,
		Campaigns:   stores.Campaigns,
		Credits:     stores.Credits,
	}

	if sandbox, ok := gw.(*gateway.Sandbox); ok {
		deps.Sandbox = sandbox
		logger.Warn("sandbox gateway active, messages are captured and not delivered")
	}

	rateLimiter, err := newRateLimiter(cfg.RateLimit, db)
	if err != nil {
		return nil, err
	}
	if rateLimiter != nil {
		gw = ratelimit.Wrap(gw, rateLimiter)
		logger.Info("rate limiting enabled")
	}

	deps.Composer = campaign.NewComposer(
		stores.Campaigns,
		stores.Subscribers,
		stores.Credits,
		gw,
		sender,
		campaign.DefaultConcurrency,
		logger.With("component", "composer"),
	)

	if err := setupAssets(cfg, &deps, logger); err != nil {
		return nil, err
	}

	if cfg.Stripe.Enabled {
		events, err := stripe.NewEventLog(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create stripe event log: %w", err)
		}
		deps.Webhooks = stripe.NewDispatcher(stores.Rules, stores.Credits, gw, events, sender, logger.With("component", "stripe"))
		deps.Verifier = stripe.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.Tolerance)
		logger.Info("stripe webhooks enabled")
	}

	var opts []ipfilter.Option
	if cfg.API.TrustProxy {
		opts = append(opts, ipfilter.WithTrustedProxy())
	}
	apiFilter, err := ipfilter.New(cfg.API.AllowedIPs, logger.With("component", "api_ipfilter"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create api ip filter: %w", err)
	}
	deps.Filter = apiFilter

	a := &App{
		config:      cfg,
		db:          db,
		stores:      stores,
		rateLimiter: rateLimiter,
		logger:      logger,
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)
		deps.Metrics = m

		metricsFilter, err := ipfilter.New(cfg.Metrics.AllowedIPs, logger.With("component", "metrics_ipfilter"))
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics ip filter: %w", err)
		}
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, metricsFilter, logger.With("component", "metrics"))
		a.collector = metrics.NewCollector(m, stores, cfg.Storage.Path, 15*time.Second)
		logger.Info("metrics enabled", "addr", cfg.Metrics.ListenAddr, "path", cfg.Metrics.Path)
	}

	if cfg.Scheduler.Enabled {
		a.scheduler = campaign.NewScheduler(deps.Composer, cfg.Scheduler.Interval, logger.With("component", "scheduler"))
	}

	a.apiServer = api.NewServer(deps, &cfg.API, logger.With("component", "api"))
	if err := a.setupTLS(); err != nil {
		return nil, err
	}
	return a, nil
}

// setupTLS switches the API to HTTPS when certificates are configured
func (a *App) setupTLS() error {
	t := a.config.API.TLS
	opts := pctls.Options{
		CertFile: t.CertFile,
		KeyFile:  t.KeyFile,
		ACME:     t.ACME.Enabled,
		Email:    t.ACME.Email,
		Domains:  t.ACME.Domains,
		CacheDir: t.ACME.CacheDir,
	}
	if !opts.Enabled() {
		return nil
	}

	provider, err := pctls.New(opts)
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	a.apiServer.SetTLSConfig(provider.Config())

	if provider.ACME() {
		a.challengeServer = &http.Server{
			Addr:              t.ACME.HTTPAddr,
			Handler:           provider.ChallengeHandler(http.HandlerFunc(redirectHTTPS)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.logger.Info("ACME certificates enabled", "domains", t.ACME.Domains, "challenge_addr", t.ACME.HTTPAddr)
	} else {
		a.logger.Info("TLS enabled", "cert_file", t.CertFile)
	}
	return nil
}

func redirectHTTPS(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusMovedPermanently)
}

// newRateLimiter returns nil when rate limiting is disabled
func newRateLimiter(cfg config.RateLimitConfig, db *bolt.DB) (*ratelimit.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	limiter, err := ratelimit.NewLimiter(db, ratelimit.Config{
		Global:          limitConfig(cfg.Global),
		RecipientDomain: limitConfig(cfg.RecipientDomain),
		Tag:             limitConfig(cfg.Tag),
		FlushInterval:   cfg.FlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	return limiter, nil
}

func limitConfig(v *config.LimitValues) *ratelimit.LimitConfig {
	if v == nil {
		return nil
	}
	return &ratelimit.LimitConfig{
		MessagesPerHour: v.MessagesPerHour,
		MessagesPerDay:  v.MessagesPerDay,
	}
}

// setupAssets configures logo storage. The local store is also served under
// /assets by the API.
func setupAssets(cfg *config.Config, deps *api.Deps, logger *slog.Logger) error {
	switch cfg.Assets.Driver {
	case config.AssetsS3:
		s3cfg := cfg.Assets.S3
		store, err := asset.NewS3(context.Background(), asset.S3Options{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			Prefix:          s3cfg.Prefix,
			PublicURL:       s3cfg.PublicURL,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
			MaxSize:         cfg.Assets.MaxSize,
		})
		if err != nil {
			return fmt.Errorf("failed to create s3 asset store: %w", err)
		}
		deps.Assets = store
		logger.Info("asset storage configured", "driver", "s3", "bucket", s3cfg.Bucket)

	default:
		local, err := asset.NewLocal(cfg.Assets.Dir, publicAssetURL(cfg.API.PublicURL), cfg.Assets.MaxSize)
		if err != nil {
			return err
		}
		deps.Assets = local
		deps.AssetFiles = local.Handler()
		logger.Info("asset storage configured", "driver", "local", "dir", cfg.Assets.Dir)
	}
	return nil
}

func publicAssetURL(base string) string {
	if base == "" {
		return "/assets"
	}
	return strings.TrimRight(base, "/") + "/assets"
}

// Run starts all components and blocks until a signal or server error
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Start()
	}
	if a.collector != nil {
		a.collector.Start(ctx)
	}

	errCh := make(chan error, 3)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.challengeServer != nil {
		go func() {
			if err := a.challengeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("acme challenge server: %w", err)
			}
		}()
	}

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop producing work before the servers go away
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.challengeServer != nil {
		if err := a.challengeServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("acme challenge server shutdown error", "error", err)
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if a.collector != nil {
		a.collector.Stop()
	}
	if a.rateLimiter != nil {
		if err := a.rateLimiter.Stop(); err != nil {
			a.logger.Error("rate limiter flush error", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

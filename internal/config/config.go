package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/foxzi/postcard/internal/ipfilter"
)

// Gateway drivers
const (
	DriverSandbox  = "sandbox"
	DriverRelay    = "relay"
	DriverPostmark = "postmark"
)

// Asset drivers
const (
	AssetsLocal = "local"
	AssetsS3    = "s3"
)

// Config is the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Company   CompanyConfig   `yaml:"company"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	DKIM      DKIMConfig      `yaml:"dkim"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Credits   CreditsConfig   `yaml:"credits"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Assets    AssetsConfig    `yaml:"assets"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains process-wide settings
type ServerConfig struct {
	Hostname string `yaml:"hostname"`
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key" env:"POSTCARD_API_KEY"`
	APIKeyHash     string        `yaml:"api_key_hash" env:"POSTCARD_API_KEY_HASH"` // bcrypt hash, used instead of api_key
	PublicURL      string        `yaml:"public_url"`                               // base URL for served assets
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedIPs     []string      `yaml:"allowed_ips"`
	TrustProxy     bool          `yaml:"trust_proxy"` // read client IP from X-Forwarded-For
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig enables HTTPS for the API from PEM files or ACME
type TLSConfig struct {
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// ACMEConfig contains Let's Encrypt settings
type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
	HTTPAddr string   `yaml:"http_addr"` // HTTP-01 challenge listener
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path string `yaml:"path" env:"POSTCARD_STORAGE_PATH"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"POSTCARD_LOG_LEVEL"` // debug, info, warn, error
	Format string `yaml:"format"`                         // json, text
}

// CompanyConfig identifies the sender in rendered emails
type CompanyConfig struct {
	Name    string `yaml:"name"`
	From    string `yaml:"from"` // From address of every message
	ReplyTo string `yaml:"reply_to"`
}

// GatewayConfig selects and configures the delivery backend
type GatewayConfig struct {
	Driver   string         `yaml:"driver"`
	Relay    RelayConfig    `yaml:"relay"`
	Postmark PostmarkConfig `yaml:"postmark"`
}

// RelayConfig contains smarthost submission settings
type RelayConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password" env:"POSTCARD_RELAY_PASSWORD"`
	TLS        string        `yaml:"tls"` // none, starttls, implicit
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PostmarkConfig contains Postmark API credentials
type PostmarkConfig struct {
	ServerToken  string `yaml:"server_token" env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `yaml:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
	TrackOpens   bool   `yaml:"track_opens"`
}

// DKIMConfig contains DKIM signing settings for the relay gateway
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

// SchedulerConfig contains scheduled campaign worker settings
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// CreditsConfig contains the email allowance settings
type CreditsConfig struct {
	Initial int64 `yaml:"initial"` // granted once on first start
}

// RateLimitConfig contains sending quotas applied in front of the gateway
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Global limits (all messages)
	Global *LimitValues `yaml:"global,omitempty"`

	// Limits per recipient domain
	RecipientDomain *LimitValues `yaml:"recipient_domain,omitempty"`

	// Limits per message tag (campaign, or the rule kind)
	Tag *LimitValues `yaml:"tag,omitempty"`

	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LimitValues contains rate limit values. Zero means unlimited.
type LimitValues struct {
	MessagesPerHour int `yaml:"messages_per_hour"`
	MessagesPerDay  int `yaml:"messages_per_day"`
}

// AssetsConfig selects where uploaded logos are stored
type AssetsConfig struct {
	Driver  string   `yaml:"driver"`
	Dir     string   `yaml:"dir"`
	MaxSize int64    `yaml:"max_size"`
	S3      S3Config `yaml:"s3"`
}

// S3Config contains S3 bucket settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region" env:"AWS_REGION"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PublicURL       string `yaml:"public_url"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// StripeConfig contains webhook settings
type StripeConfig struct {
	Enabled       bool          `yaml:"enabled"`
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Tolerance     time.Duration `yaml:"tolerance"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Hostname == "" {
		hostname, _ := os.Hostname()
		c.Server.Hostname = hostname
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}

	if c.API.TLS.ACME.CacheDir == "" {
		c.API.TLS.ACME.CacheDir = "/var/lib/postcard/certs"
	}
	if c.API.TLS.ACME.HTTPAddr == "" {
		c.API.TLS.ACME.HTTPAddr = ":80"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/postcard/postcard.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Company.Name == "" {
		c.Company.Name = "ACME Store"
	}

	if c.Gateway.Driver == "" {
		c.Gateway.Driver = DriverSandbox
	}
	if c.Gateway.Relay.Port == 0 {
		c.Gateway.Relay.Port = 587
	}
	if c.Gateway.Relay.TLS == "" {
		c.Gateway.Relay.TLS = "starttls"
	}
	if c.Gateway.Relay.Timeout == 0 {
		c.Gateway.Relay.Timeout = 30 * time.Second
	}
	if c.Gateway.Relay.MaxRetries == 0 {
		c.Gateway.Relay.MaxRetries = 3
	}

	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 30 * time.Second
	}

	if c.RateLimit.FlushInterval == 0 {
		c.RateLimit.FlushInterval = 10 * time.Second
	}

	if c.Assets.Driver == "" {
		c.Assets.Driver = AssetsLocal
	}
	if c.Assets.Dir == "" {
		c.Assets.Dir = "/var/lib/postcard/assets"
	}
	if c.Assets.MaxSize == 0 {
		c.Assets.MaxSize = 2 << 20
	}

	if c.Stripe.Tolerance == 0 {
		c.Stripe.Tolerance = 5 * time.Minute
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Company.From == "" {
		return errors.New("company.from is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateDKIM(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateTLS(); err != nil {
		return err
	}

	if err := ipfilter.Validate(c.API.AllowedIPs); err != nil {
		return fmt.Errorf("invalid api.allowed_ips: %w", err)
	}
	if err := ipfilter.Validate(c.Metrics.AllowedIPs); err != nil {
		return fmt.Errorf("invalid metrics.allowed_ips: %w", err)
	}

	if c.Stripe.Enabled && c.Stripe.WebhookSecret == "" {
		return errors.New("stripe.webhook_secret is required when stripe is enabled")
	}
	if c.Credits.Initial < 0 {
		return errors.New("credits.initial must not be negative")
	}

	return nil
}

func (c *Config) validateGateway() error {
	switch c.Gateway.Driver {
	case DriverSandbox:
	case DriverRelay:
		if c.Gateway.Relay.Host == "" {
			return errors.New("gateway.relay.host is required for the relay driver")
		}
		switch c.Gateway.Relay.TLS {
		case "none", "starttls", "implicit":
		default:
			return fmt.Errorf("invalid gateway.relay.tls: %s (must be none, starttls, or implicit)", c.Gateway.Relay.TLS)
		}
		if c.Gateway.Relay.Password != "" && c.Gateway.Relay.Username == "" {
			return errors.New("gateway.relay.username is required when a password is set")
		}
	case DriverPostmark:
		if c.Gateway.Postmark.ServerToken == "" {
			return errors.New("gateway.postmark.server_token is required for the postmark driver")
		}
	default:
		return fmt.Errorf("invalid gateway.driver: %s (must be sandbox, relay, or postmark)", c.Gateway.Driver)
	}
	return nil
}

func (c *Config) validateDKIM() error {
	if !c.DKIM.Enabled {
		return nil
	}
	if c.DKIM.Selector == "" {
		return errors.New("dkim.selector is required when DKIM is enabled")
	}
	if c.DKIM.KeyFile == "" {
		return errors.New("dkim.key_file is required when DKIM is enabled")
	}
	if c.DKIM.Domain == "" {
		return errors.New("dkim.domain is required when DKIM is enabled")
	}
	return nil
}

func (c *Config) validateAssets() error {
	switch c.Assets.Driver {
	case AssetsLocal:
	case AssetsS3:
		if c.Assets.S3.Bucket == "" {
			return errors.New("assets.s3.bucket is required for the s3 driver")
		}
		if c.Assets.S3.Region == "" {
			return errors.New("assets.s3.region is required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid assets.driver: %s (must be local or s3)", c.Assets.Driver)
	}
	if c.Assets.MaxSize < 0 {
		return errors.New("assets.max_size must not be negative")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	limits := map[string]*LimitValues{
		"global":           c.RateLimit.Global,
		"recipient_domain": c.RateLimit.RecipientDomain,
		"tag":              c.RateLimit.Tag,
	}
	for name, l := range limits {
		if l == nil {
			continue
		}
		if l.MessagesPerHour < 0 || l.MessagesPerDay < 0 {
			return fmt.Errorf("rate_limit.%s values must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateTLS() error {
	t := c.API.TLS
	if t.ACME.Enabled {
		if len(t.ACME.Domains) == 0 {
			return errors.New("api.tls.acme.domains is required when ACME is enabled")
		}
		return nil
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		return errors.New("api.tls.cert_file and api.tls.key_file must be set together")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  hostname: "postcard.test"

api:
  listen_addr: ":9080"
  api_key: "test-api-key"

storage:
  path: "/tmp/postcard.db"

logging:
  level: "debug"
  format: "text"

company:
  name: "Engines Ltd"
  from: "shop@engines.test"

gateway:
  driver: relay
  relay:
    host: smtp.engines.test
    port: 2525
    username: postcard
    password: secret
    tls: none

scheduler:
  enabled: true
  interval: 1m

rate_limit:
  enabled: true
  global:
    messages_per_hour: 500
  recipient_domain:
    messages_per_hour: 50
    messages_per_day: 400
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Hostname != "postcard.test" {
		t.Errorf("Hostname = %v, want postcard.test", cfg.Server.Hostname)
	}
	if cfg.API.APIKey != "test-api-key" {
		t.Errorf("API.APIKey = %v, want test-api-key", cfg.API.APIKey)
	}
	if cfg.Company.Name != "Engines Ltd" {
		t.Errorf("Company.Name = %v", cfg.Company.Name)
	}
	if cfg.Gateway.Relay.Port != 2525 || cfg.Gateway.Relay.TLS != "none" {
		t.Errorf("Gateway.Relay = %+v", cfg.Gateway.Relay)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Errorf("Scheduler.Interval = %v, want 1m", cfg.Scheduler.Interval)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Global == nil || cfg.RateLimit.Global.MessagesPerHour != 500 {
		t.Errorf("RateLimit.Global = %+v", cfg.RateLimit.Global)
	}
	if rd := cfg.RateLimit.RecipientDomain; rd == nil || rd.MessagesPerDay != 400 {
		t.Errorf("RateLimit.RecipientDomain = %+v", rd)
	}
	if cfg.RateLimit.Tag != nil {
		t.Errorf("RateLimit.Tag = %+v, want nil", cfg.RateLimit.Tag)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "company:\n  from: shop@acme.test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"api listen", cfg.API.ListenAddr, ":8080"},
		{"api read timeout", cfg.API.ReadTimeout, 30 * time.Second},
		{"storage path", cfg.Storage.Path, "/var/lib/postcard/postcard.db"},
		{"log level", cfg.Logging.Level, "info"},
		{"log format", cfg.Logging.Format, "json"},
		{"company", cfg.Company.Name, "ACME Store"},
		{"gateway", cfg.Gateway.Driver, DriverSandbox},
		{"relay port", cfg.Gateway.Relay.Port, 587},
		{"relay tls", cfg.Gateway.Relay.TLS, "starttls"},
		{"scheduler interval", cfg.Scheduler.Interval, 30 * time.Second},
		{"assets driver", cfg.Assets.Driver, AssetsLocal},
		{"assets max size", cfg.Assets.MaxSize, int64(2 << 20)},
		{"stripe tolerance", cfg.Stripe.Tolerance, 5 * time.Minute},
		{"metrics path", cfg.Metrics.Path, "/metrics"},
		{"acme http addr", cfg.API.TLS.ACME.HTTPAddr, ":80"},
		{"rate limit flush", cfg.RateLimit.FlushInterval, 10 * time.Second},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTCARD_API_KEY", "from-env")
	t.Setenv("POSTMARK_SERVER_TOKEN", "pm-token")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	cfg, err := Load(writeConfig(t, `
api:
  api_key: from-file
company:
  from: shop@acme.test
gateway:
  driver: postmark
stripe:
  enabled: true
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.APIKey != "from-env" {
		t.Errorf("API.APIKey = %q, want from-env", cfg.API.APIKey)
	}
	if cfg.Gateway.Postmark.ServerToken != "pm-token" {
		t.Errorf("Postmark.ServerToken = %q, want pm-token", cfg.Gateway.Postmark.ServerToken)
	}
	if cfg.Stripe.WebhookSecret != "whsec_test" {
		t.Errorf("Stripe.WebhookSecret = %q", cfg.Stripe.WebhookSecret)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "api: [unterminated")); err == nil {
		t.Error("Load() expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Company: CompanyConfig{From: "shop@acme.test"}}
		cfg.setDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing from", func(c *Config) { c.Company.From = "" }, "company.from"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad driver", func(c *Config) { c.Gateway.Driver = "carrier-pigeon" }, "gateway.driver"},
		{"relay without host", func(c *Config) { c.Gateway.Driver = DriverRelay }, "gateway.relay.host"},
		{"relay bad tls", func(c *Config) {
			c.Gateway.Driver = DriverRelay
			c.Gateway.Relay.Host = "smtp.acme.test"
			c.Gateway.Relay.TLS = "maybe"
		}, "gateway.relay.tls"},
		{"relay password without user", func(c *Config) {
			c.Gateway.Driver = DriverRelay
			c.Gateway.Relay.Host = "smtp.acme.test"
			c.Gateway.Relay.Password = "secret"
		}, "gateway.relay.username"},
		{"postmark without token", func(c *Config) { c.Gateway.Driver = DriverPostmark }, "server_token"},
		{"dkim without selector", func(c *Config) {
			c.DKIM = DKIMConfig{Enabled: true, Domain: "acme.test", KeyFile: "k.pem"}
		}, "dkim.selector"},
		{"s3 without bucket", func(c *Config) { c.Assets.Driver = AssetsS3 }, "assets.s3.bucket"},
		{"bad assets driver", func(c *Config) { c.Assets.Driver = "ftp" }, "assets.driver"},
		{"stripe without secret", func(c *Config) { c.Stripe.Enabled = true }, "stripe.webhook_secret"},
		{"negative credits", func(c *Config) { c.Credits.Initial = -1 }, "credits.initial"},
		{"tls cert without key", func(c *Config) { c.API.TLS.CertFile = "cert.pem" }, "api.tls.cert_file"},
		{"acme without domains", func(c *Config) { c.API.TLS.ACME.Enabled = true }, "api.tls.acme.domains"},
		{"negative rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Tag = &LimitValues{MessagesPerDay: -5}
		}, "rate_limit.tag"},
		{"bad api allowed ip", func(c *Config) { c.API.AllowedIPs = []string{"10.0.0.300"} }, "api.allowed_ips"},
		{"bad metrics cidr", func(c *Config) { c.Metrics.AllowedIPs = []string{"10.0.0.0/40"} }, "metrics.allowed_ips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// Package gateway delivers rendered messages through a configurable backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/config"
	"github.com/foxzi/postcard/internal/dkim"
)

// Gateway sends one message
type Gateway interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// DeliveryError is a failed delivery. Temporary errors may succeed on retry.
type DeliveryError struct {
	Temporary bool
	Message   string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a retryable delivery error. Errors that
// are not DeliveryErrors are treated as temporary.
func IsTemporary(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true
}

// New creates the gateway selected by cfg.Gateway.Driver. db is only used by
// the sandbox driver.
func New(cfg *config.Config, db *bolt.DB, logger *slog.Logger) (Gateway, error) {
	switch cfg.Gateway.Driver {
	case config.DriverSandbox, "":
		return NewSandbox(db)

	case config.DriverRelay:
		relay := NewRelay(RelayOptions{
			Host:       cfg.Gateway.Relay.Host,
			Port:       cfg.Gateway.Relay.Port,
			Username:   cfg.Gateway.Relay.Username,
			Password:   cfg.Gateway.Relay.Password,
			TLS:        TLSMode(cfg.Gateway.Relay.TLS),
			Hostname:   cfg.Server.Hostname,
			Timeout:    cfg.Gateway.Relay.Timeout,
			MaxRetries: cfg.Gateway.Relay.MaxRetries,
		}, logger)

		if cfg.DKIM.Enabled {
			signer, err := dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
			if err != nil {
				return nil, err
			}
			relay.SetSigner(signer)
		}
		return relay, nil

	case config.DriverPostmark:
		return NewPostmark(cfg.Gateway.Postmark.ServerToken, cfg.Gateway.Postmark.AccountToken, cfg.Gateway.Postmark.TrackOpens)
	}

	return nil, fmt.Errorf("unknown gateway driver %q", cfg.Gateway.Driver)
}

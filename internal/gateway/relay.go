package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sethvargo/go-retry"

	"github.com/foxzi/postcard/internal/dkim"
	"github.com/foxzi/postcard/internal/email"
)

// TLSMode selects how the relay connection is secured
type TLSMode string

const (
	TLSNone     TLSMode = "none"
	TLSStartTLS TLSMode = "starttls"
	TLSImplicit TLSMode = "implicit"
)

// RelayOptions configures a Relay
type RelayOptions struct {
	Host       string
	Port       int
	Username   string
	Password   string
	TLS        TLSMode
	TLSConfig  *tls.Config // overrides the default client config
	Hostname   string      // EHLO name
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Relay submits messages to a smarthost over SMTP
type Relay struct {
	opts   RelayOptions
	signer *dkim.Signer
	logger *slog.Logger
	now    func() time.Time
}

// NewRelay creates a relay gateway
func NewRelay(opts RelayOptions, logger *slog.Logger) *Relay {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Hostname == "" {
		opts.Hostname = "localhost"
	}
	if opts.TLS == "" {
		opts.TLS = TLSStartTLS
	}
	return &Relay{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// SetSigner enables DKIM signing of outgoing messages
func (r *Relay) SetSigner(signer *dkim.Signer) {
	r.signer = signer
}

// Name returns the gateway name
func (r *Relay) Name() string { return "relay" }

// Send delivers msg, retrying temporary failures with exponential backoff
func (r *Relay) Send(ctx context.Context, msg *Message) error {
	from, err := email.Normalize(msg.From)
	if err != nil {
		return &DeliveryError{Message: "invalid sender " + msg.From, Err: err}
	}
	to, err := email.Normalize(msg.To)
	if err != nil {
		return &DeliveryError{Message: "invalid recipient " + msg.To, Err: err}
	}

	data := msg.Bytes(r.now())
	if r.signer != nil {
		signed, err := r.signer.Sign(data)
		if err != nil {
			r.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", r.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	backoff := retry.WithMaxRetries(uint64(max(0, r.opts.MaxRetries)), retry.NewExponential(r.opts.RetryDelay))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.deliver(ctx, from, to, data)
		if err != nil && IsTemporary(err) {
			r.logger.Warn("relay delivery failed, retrying",
				"to", to,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("message relayed",
		"host", r.opts.Host,
		"to", to,
		"message_id", msg.ID,
	)
	return nil
}

func (r *Relay) deliver(ctx context.Context, from, to string, data []byte) error {
	addr := net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))

	dialer := &net.Dialer{Timeout: r.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeliveryError{Temporary: true, Message: "connection to " + addr + " failed", Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(r.opts.Timeout))
	}

	if r.opts.TLS == TLSImplicit {
		conn = tls.Client(conn, r.tlsConfig())
	}

	client, err := r.newClient(conn, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if r.opts.Username != "" {
		auth := sasl.NewPlainClient("", r.opts.Username, r.opts.Password)
		if err := client.Auth(auth); err != nil {
			return categorize(err, "AUTH")
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return categorize(err, "MAIL FROM")
	}
	if err := client.Rcpt(to, nil); err != nil {
		return categorize(err, "RCPT TO "+to)
	}

	wc, err := client.Data()
	if err != nil {
		return categorize(err, "DATA")
	}
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		wc.Close()
		return &DeliveryError{Temporary: true, Message: "failed to write message data", Err: err}
	}
	if err := wc.Close(); err != nil {
		return categorize(err, "DATA")
	}

	// The message is accepted at this point; a failed QUIT is not a failed delivery.
	client.Quit()
	return nil
}

// newClient greets the relay. In STARTTLS mode the connection is upgraded
// first and EHLO is repeated with the configured hostname over TLS.
func (r *Relay) newClient(conn net.Conn, addr string) (*smtp.Client, error) {
	if r.opts.TLS != TLSStartTLS {
		client := smtp.NewClient(conn)
		if err := client.Hello(r.opts.Hostname); err != nil {
			client.Close()
			return nil, categorize(err, "EHLO")
		}
		return client, nil
	}

	client, err := smtp.NewClientStartTLS(conn, r.tlsConfig())
	if err != nil {
		var smtpErr *smtp.SMTPError
		if !errors.As(err, &smtpErr) && strings.Contains(err.Error(), "STARTTLS") {
			return nil, &DeliveryError{Message: "relay " + addr + " does not offer STARTTLS", Err: err}
		}
		return nil, categorize(err, "STARTTLS")
	}
	if err := client.Hello(r.opts.Hostname); err != nil {
		client.Close()
		return nil, categorize(err, "EHLO")
	}
	return client, nil
}

func (r *Relay) tlsConfig() *tls.Config {
	if r.opts.TLSConfig != nil {
		return r.opts.TLSConfig
	}
	return &tls.Config{
		ServerName: r.opts.Host,
		MinVersion: tls.VersionTLS12,
	}
}

// categorize maps an SMTP reply to a DeliveryError. 5xx replies are
// permanent, everything else is temporary.
func categorize(err error, stage string) *DeliveryError {
	de := &DeliveryError{Temporary: true, Message: stage + " failed", Err: err}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
		de.Temporary = false
		de.Message = fmt.Sprintf("%s rejected with %d", stage, smtpErr.Code)
	}
	return de
}

// Package tls builds the HTTPS configuration of the API server from PEM
// files or from Let's Encrypt certificates obtained with ACME.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// Options selects the certificate source. ACME takes precedence over files.
type Options struct {
	CertFile string
	KeyFile  string

	ACME     bool
	Email    string
	Domains  []string
	CacheDir string
}

// Enabled reports whether opts configure any certificate source
func (o Options) Enabled() bool {
	return o.ACME || o.CertFile != ""
}

// Provider holds the server TLS configuration
type Provider struct {
	config  *tls.Config
	manager *autocert.Manager
}

// New creates a provider for opts
func New(opts Options) (*Provider, error) {
	if opts.ACME {
		if len(opts.Domains) == 0 {
			return nil, errors.New("acme requires at least one domain")
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Email:      opts.Email,
			HostPolicy: autocert.HostWhitelist(opts.Domains...),
			Cache:      autocert.DirCache(opts.CacheDir),
		}
		return &Provider{
			config: &tls.Config{
				GetCertificate: m.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			},
			manager: m,
		}, nil
	}

	cfg, err := LoadCertificate(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, err
	}
	return &Provider{config: cfg}, nil
}

// Config returns the TLS configuration for the listener
func (p *Provider) Config() *tls.Config {
	return p.config
}

// ACME reports whether certificates are obtained automatically
func (p *Provider) ACME() bool {
	return p.manager != nil
}

// ChallengeHandler answers HTTP-01 challenges and passes everything else to
// fallback. Without ACME it returns fallback.
func (p *Provider) ChallengeHandler(fallback http.Handler) http.Handler {
	if p.manager == nil {
		return fallback
	}
	return p.manager.HTTPHandler(fallback)
}

// LoadCertificate loads a TLS certificate from PEM files
func LoadCertificate(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// CertificateInfo describes a certificate file
type CertificateInfo struct {
	Subject   string
	Issuer    string
	NotBefore time.Time
	NotAfter  time.Time
	DaysLeft  int
	DNSNames  []string
}

// ReadCertificateInfo reads the first certificate of a PEM file
func ReadCertificateInfo(certFile string, now time.Time) (*CertificateInfo, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &CertificateInfo{
		Subject:   cert.Subject.CommonName,
		Issuer:    cert.Issuer.CommonName,
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		DaysLeft:  int(cert.NotAfter.Sub(now).Hours() / 24),
		DNSNames:  cert.DNSNames,
	}, nil
}

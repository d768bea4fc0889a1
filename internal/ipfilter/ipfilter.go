// Package ipfilter restricts HTTP endpoints to a list of networks.
package ipfilter

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Filter matches client addresses against allowed prefixes.
// An empty filter allows everything.
type Filter struct {
	prefixes   []netip.Prefix
	trustProxy bool
	logger     *slog.Logger
}

// Option configures a Filter
type Option func(*Filter)

// WithTrustedProxy makes the filter read X-Forwarded-For and X-Real-IP.
// Only enable it behind a proxy that overwrites those headers.
func WithTrustedProxy() Option {
	return func(f *Filter) { f.trustProxy = true }
}

// New parses allowed IPs and CIDRs. Blank entries are ignored.
func New(allowed []string, logger *slog.Logger, opts ...Option) (*Filter, error) {
	f := &Filter{logger: logger}
	for _, o := range opts {
		o(f)
	}

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		f.prefixes = append(f.prefixes, prefix)
	}

	return f, nil
}

// Validate reports the first entry that is not an IP or CIDR
func Validate(allowed []string) error {
	for _, entry := range allowed {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		if _, err := parseEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", entry, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Enabled returns true if any prefix is configured
func (f *Filter) Enabled() bool {
	return f != nil && len(f.prefixes) > 0
}

// Allows reports whether addr is inside an allowed prefix
func (f *Filter) Allows(addr netip.Addr) bool {
	if !f.Enabled() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range f.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddr returns the client address of r
func (f *Filter) ClientAddr(r *http.Request) (netip.Addr, bool) {
	if f != nil && f.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr, true
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
				return addr, true
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	return addr, err == nil
}

// Middleware rejects requests from addresses outside the filter with 403
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		addr, ok := f.ClientAddr(r)
		if !ok {
			f.logger.Warn("could not parse client IP", "remote_addr", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if !f.Allows(addr) {
			f.logger.Warn("access denied by IP filter", "ip", addr.String(), "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

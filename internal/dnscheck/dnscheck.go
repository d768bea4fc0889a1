// Package dnscheck verifies the DNS records a sending domain needs for
// authenticated delivery.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	ErrInvalidDomain   = errors.New("invalid domain name")
	ErrInvalidSelector = errors.New("invalid DKIM selector")
)

// Status of a single check
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
	StatusNotFound Status = "not_found"
)

// domainRegex validates domain name format (RFC 1035)
var domainRegex = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

var selectorRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidateDomain checks if domain name is valid
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > 253 || !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateSelector checks if a DKIM selector is a valid DNS label
func ValidateSelector(selector string) error {
	if len(selector) > 63 || !selectorRegex.MatchString(selector) {
		return ErrInvalidSelector
	}
	return nil
}

// Resolver looks up TXT records
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// CheckResult represents a single DNS check result
type CheckResult struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Report contains all DNS check results for a domain
type Report struct {
	Domain  string        `json:"domain"`
	Results []CheckResult `json:"results"`
	Summary Summary       `json:"summary"`
}

// Summary contains check statistics
type Summary struct {
	OK       int `json:"ok"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	NotFound int `json:"not_found"`
}

// Ready reports whether every record is present and usable
func (r *Report) Ready() bool {
	return r.Summary.Errors == 0 && r.Summary.NotFound == 0
}

// Checker runs the sender domain checks
type Checker struct {
	resolver Resolver
}

// New creates a checker. A nil resolver uses the system resolver.
func New(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{resolver: resolver}
}

// Check looks up SPF, DKIM and DMARC for domain
func (c *Checker) Check(ctx context.Context, domain, selector string) (*Report, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	if err := ValidateSelector(selector); err != nil {
		return nil, err
	}

	report := &Report{
		Domain: domain,
		Results: []CheckResult{
			c.checkSPF(ctx, domain),
			c.checkDKIM(ctx, domain, selector),
			c.checkDMARC(ctx, domain),
		},
	}

	for _, r := range report.Results {
		switch r.Status {
		case StatusOK:
			report.Summary.OK++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		case StatusNotFound:
			report.Summary.NotFound++
		}
	}

	return report, nil
}

// lookup returns the TXT records of name. A failed result is returned when
// the lookup fails or finds nothing.
func (c *Checker) lookup(ctx context.Context, result *CheckResult, missing string) ([]string, bool) {
	records, err := c.resolver.LookupTXT(ctx, result.Name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			result.Status = StatusNotFound
			result.Message = missing
			return nil, false
		}
		result.Status = StatusError
		result.Message = fmt.Sprintf("Lookup failed: %v", err)
		return nil, false
	}
	if len(records) == 0 {
		result.Status = StatusNotFound
		result.Message = missing
		return nil, false
	}
	return records, true
}

func (c *Checker) checkSPF(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "SPF", Name: domain}

	records, ok := c.lookup(ctx, &result, "No SPF record found")
	if !ok {
		return result
	}

	for _, txt := range records {
		if !strings.HasPrefix(txt, "v=spf1") {
			continue
		}
		result.Status = StatusOK
		result.Value = txt

		switch {
		case strings.Contains(txt, "+all"):
			result.Status = StatusWarning
			result.Message = "SPF uses +all (allows any sender), use ~all or -all"
		case strings.Contains(txt, "-all"):
			result.Message = "SPF configured with strict policy (-all)"
		case strings.Contains(txt, "~all"):
			result.Message = "SPF configured with soft fail (~all)"
		}
		return result
	}

	result.Status = StatusNotFound
	result.Message = "No SPF record found"
	return result
}

func (c *Checker) checkDKIM(ctx context.Context, domain, selector string) CheckResult {
	result := CheckResult{Type: "DKIM", Name: selector + "._domainkey." + domain}

	records, ok := c.lookup(ctx, &result, fmt.Sprintf("No DKIM record found for selector %q", selector))
	if !ok {
		return result
	}

	// Long keys are split across several strings
	record := strings.Join(records, "")
	result.Value = truncateString(record, 100)

	if !strings.Contains(record, "v=DKIM1") {
		result.Status = StatusWarning
		result.Message = "TXT record found but is not a DKIM record"
		return result
	}
	if !strings.Contains(record, "p=") || strings.Contains(record, "p=;") || strings.HasSuffix(record, "p=") {
		result.Status = StatusWarning
		result.Message = "DKIM record has no public key (p=)"
		return result
	}

	result.Status = StatusOK
	result.Message = "DKIM public key published"
	return result
}

func (c *Checker) checkDMARC(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "DMARC", Name: "_dmarc." + domain}

	records, ok := c.lookup(ctx, &result, "No DMARC record found")
	if !ok {
		return result
	}

	record := strings.Join(records, "")
	result.Value = record

	if !strings.HasPrefix(record, "v=DMARC1") {
		result.Status = StatusWarning
		result.Message = "TXT record found but is not a DMARC record"
		return result
	}

	result.Status = StatusOK
	switch {
	case strings.Contains(record, "p=reject"):
		result.Message = "DMARC configured with reject policy"
	case strings.Contains(record, "p=quarantine"):
		result.Message = "DMARC configured with quarantine policy"
	case strings.Contains(record, "p=none"):
		result.Status = StatusWarning
		result.Message = "DMARC configured with none policy (monitoring only)"
	}
	return result
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

package dnscheck

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if name == "broken.example.com" {
		return nil, errors.New("server misbehaving")
	}
	records, ok := f[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{"valid simple", "example.com", false},
		{"valid subdomain", "sub.example.com", false},
		{"valid with dash", "my-domain.com", false},
		{"valid with numbers", "123.example.com", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 254)), true},
		{"invalid chars", "example!.com", true},
		{"starts with dash", "-example.com", true},
		{"ends with dash", "example-.com", true},
		{"double dot", "example..com", true},
		{"path injection", "../etc/passwd", true},
		{"null byte", "example\x00.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDomain(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		wantErr  bool
	}{
		{"valid simple", "default", false},
		{"valid with numbers", "key2024", false},
		{"valid with dash", "dkim-key", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 64)), true},
		{"invalid chars", "selector!", true},
		{"starts with dash", "-selector", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelector(tt.selector)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSelector(%q) error = %v, wantErr %v", tt.selector, err, tt.wantErr)
			}
		})
	}
}

func TestCheck_AllRecords(t *testing.T) {
	checker := New(fakeResolver{
		"acme.test":                     {"google-site-verification=abc", "v=spf1 include:spf.mtasv.net -all"},
		"postcard._domainkey.acme.test": {"v=DKIM1; k=rsa; ", "p=MIIBIjANBgkq"},
		"_dmarc.acme.test":              {"v=DMARC1; p=quarantine; rua=mailto:d@acme.test"},
	})

	report, err := checker.Check(context.Background(), "ACME.test.", "postcard")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if report.Domain != "acme.test" {
		t.Errorf("Domain = %q, want acme.test", report.Domain)
	}
	if diff := cmp.Diff(Summary{OK: 3}, report.Summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if !report.Ready() {
		t.Error("Ready() = false, want true")
	}
	if got := report.Results[1].Value; got != "v=DKIM1; k=rsa; p=MIIBIjANBgkq" {
		t.Errorf("DKIM value = %q, want joined record", got)
	}
}

func TestCheck_Problems(t *testing.T) {
	tests := []struct {
		name     string
		records  fakeResolver
		index    int
		want     Status
		wantText string
	}{
		{
			name:    "spf allows all",
			records: fakeResolver{"acme.test": {"v=spf1 +all"}},
			index:   0,
			want:    StatusWarning,
		},
		{
			name:    "no spf among txt",
			records: fakeResolver{"acme.test": {"something else"}},
			index:   0,
			want:    StatusNotFound,
		},
		{
			name:    "dkim revoked",
			records: fakeResolver{"postcard._domainkey.acme.test": {"v=DKIM1; k=rsa; p="}},
			index:   1,
			want:    StatusWarning,
		},
		{
			name:    "dkim missing",
			records: fakeResolver{},
			index:   1,
			want:    StatusNotFound,
		},
		{
			name:    "dmarc monitoring only",
			records: fakeResolver{"_dmarc.acme.test": {"v=DMARC1; p=none"}},
			index:   2,
			want:    StatusWarning,
		},
		{
			name:    "not dmarc",
			records: fakeResolver{"_dmarc.acme.test": {"hello"}},
			index:   2,
			want:    StatusWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := New(tt.records).Check(context.Background(), "acme.test", "postcard")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got := report.Results[tt.index].Status; got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
			if report.Ready() {
				t.Error("Ready() = true, want false")
			}
		})
	}
}

func TestCheck_LookupError(t *testing.T) {
	report, err := New(fakeResolver{}).Check(context.Background(), "broken.example.com", "postcard")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.Results[0].Status != StatusError || report.Summary.Errors != 1 {
		t.Errorf("SPF result = %+v, want lookup error", report.Results[0])
	}
}

func TestCheck_InvalidInput(t *testing.T) {
	checker := New(fakeResolver{})
	ctx := context.Background()

	if _, err := checker.Check(ctx, "../etc", "postcard"); !errors.Is(err, ErrInvalidDomain) {
		t.Errorf("Check() bad domain error = %v, want ErrInvalidDomain", err)
	}
	if _, err := checker.Check(ctx, "acme.test", "bad selector"); !errors.Is(err, ErrInvalidSelector) {
		t.Errorf("Check() bad selector error = %v, want ErrInvalidSelector", err)
	}
}

package email

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		want    string
		wantErr bool
	}{
		{"simple", "user@example.com", "user@example.com", false},
		{"with name", "User Name <user@example.com>", "user@example.com", false},
		{"uppercase", " User@EXAMPLE.COM ", "user@example.com", false},
		{"no at", "invalid", "", true},
		{"empty local part", "@example.com", "", true},
		{"empty domain", "user@", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.addr)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("Normalize(%q) error = %v, want ErrInvalidAddress", tc.addr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) error = %v", tc.addr, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.addr, got, tc.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		addr     string
		fallback string
		want     string
	}{
		{"user@Mail.Example.com", "localhost", "mail.example.com"},
		{"Shop <orders@acme.test>", "localhost", "acme.test"},
		{"invalid", "localhost", "localhost"},
		{"", "postcard.local", "postcard.local"},
	}

	for _, tc := range tests {
		if got := Domain(tc.addr, tc.fallback); got != tc.want {
			t.Errorf("Domain(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}

func TestFirstName(t *testing.T) {
	tests := []struct {
		name, addr, want string
	}{
		{"Jane Smith", "jane@example.com", "Jane"},
		{"  Ada ", "ada@example.com", "Ada"},
		{"", "bob@example.com", "bob"},
		{"", "", ""},
	}

	for _, tc := range tests {
		if got := FirstName(tc.name, tc.addr); got != tc.want {
			t.Errorf("FirstName(%q, %q) = %q, want %q", tc.name, tc.addr, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format("", "a@example.com"); got != "a@example.com" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format("ACME Store", "shop@acme.test"); got != `"ACME Store" <shop@acme.test>` {
		t.Errorf("Format() = %q", got)
	}
}

package dkim

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// signedHeaders are covered by the signature when present
var signedHeaders = []string{
	"From", "To", "Reply-To", "Subject", "Date", "Message-ID",
	"MIME-Version", "Content-Type", "List-Unsubscribe",
}

// Signer adds a DKIM-Signature header to messages
type Signer struct {
	key      *rsa.PrivateKey
	domain   string
	selector string
}

// NewSigner creates a signer for domain and selector
func NewSigner(key *rsa.PrivateKey, domain, selector string) *Signer {
	return &Signer{key: key, domain: domain, selector: selector}
}

// NewSignerFromFile loads the key at path and creates a signer
func NewSignerFromFile(path, domain, selector string) (*Signer, error) {
	key, err := LoadKey(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load DKIM key: %w", err)
	}
	return NewSigner(key, domain, selector), nil
}

// Domain returns the signing domain
func (s *Signer) Domain() string { return s.domain }

// Sign returns message with a relaxed/relaxed SHA-256 signature prepended
func (s *Signer) Sign(message []byte) ([]byte, error) {
	opts := &dkim.SignOptions{
		Domain:                 s.domain,
		Selector:               s.selector,
		Signer:                 s.key,
		Hash:                   crypto.SHA256,
		HeaderKeys:             presentHeaders(message),
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
	}

	var out bytes.Buffer
	if err := dkim.Sign(&out, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return out.Bytes(), nil
}

// presentHeaders returns the subset of signedHeaders found in the header
// section of message. From is always included.
func presentHeaders(message []byte) []string {
	header := string(message)
	if end := strings.Index(header, "\r\n\r\n"); end >= 0 {
		header = header[:end+2]
	}
	header = "\r\n" + strings.ToLower(header)

	keys := []string{"From"}
	for _, h := range signedHeaders[1:] {
		if strings.Contains(header, "\r\n"+strings.ToLower(h)+":") {
			keys = append(keys, h)
		}
	}
	return keys
}

// Package dkim signs outgoing messages with DomainKeys Identified Mail.
package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKeyBits is the RSA modulus size used by GenerateKey
const DefaultKeyBits = 2048

var errNotRSA = errors.New("key is not RSA")

// KeyPair is a signing key bound to a domain and selector
type KeyPair struct {
	Key      *rsa.PrivateKey
	Domain   string
	Selector string
}

// GenerateKey creates a new RSA key pair. bits below DefaultKeyBits are raised.
func GenerateKey(domain, selector string, bits int) (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, max(bits, DefaultKeyBits))
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &KeyPair{Key: key, Domain: domain, Selector: selector}, nil
}

// Save writes the private key as PKCS#1 PEM with owner-only permissions
func (kp *KeyPair) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.Key),
	})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// RecordName is the DNS name of the TXT record publishing the key
func (kp *KeyPair) RecordName() string {
	return kp.Selector + "._domainkey." + kp.Domain
}

// RecordValue is the TXT record content for the public key
func (kp *KeyPair) RecordValue() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&kp.Key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return "v=DKIM1; k=rsa; p=" + base64.StdEncoding.EncodeToString(der), nil
}

// LoadKey reads a PKCS#1 or PKCS#8 RSA private key from a PEM file
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParseKey(data)
}

// ParseKey decodes a PEM encoded RSA private key
func ParseKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errNotRSA
		}
		return rsaKey, nil
	}
	return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
}

// Package stripe turns Stripe webhook events into automated emails.
package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the request header carrying the webhook signature
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the maximum accepted age of a signed payload
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature    = errors.New("missing stripe signature")
	ErrInvalidHeader       = errors.New("invalid stripe signature header")
	ErrNoValidSignature    = errors.New("no valid stripe signature")
	ErrTimestampOutOfRange = errors.New("stripe signature timestamp out of range")
)

// ComputeSignature returns hex HMAC-SHA256(secret, "{timestamp}.{payload}")
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignHeader produces a Stripe-Signature header value for payload
func SignHeader(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(ts, payload, secret))
}

// Verifier checks webhook signatures against a shared secret
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier. A non-positive tolerance uses DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// Verify checks header against payload. Any v1 signature may match.
func (v *Verifier) Verify(payload []byte, header string) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	ts, sigs, err := parseHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: age %s", ErrTimestampOutOfRange, age.Round(time.Second))
	}

	expected, _ := hex.DecodeString(ComputeSignature(ts, payload, v.secret))
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrNoValidSignature
}

func parseHeader(header string) (int64, [][]byte, error) {
	var (
		ts    int64
		found bool
		sigs  [][]byte
	)

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, fmt.Errorf("%w: malformed pair %q", ErrInvalidHeader, part)
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidHeader)
			}
			ts, found = n, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	if !found {
		return 0, nil, fmt.Errorf("%w: no timestamp", ErrInvalidHeader)
	}
	if len(sigs) == 0 {
		return 0, nil, ErrNoValidSignature
	}
	return ts, sigs, nil
}

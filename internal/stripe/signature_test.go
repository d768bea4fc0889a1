package stripe

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestVerifier_Verify(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	v := NewVerifier(secret, 0)
	v.now = func() time.Time { return now }

	valid := SignHeader(payload, secret, now)
	ts := now.Unix()

	tests := []struct {
		name    string
		header  string
		payload []byte
		wantErr error
	}{
		{"valid", valid, payload, nil},
		{"second v1 matches", fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, ComputeSignature(ts, payload, "old"), ComputeSignature(ts, payload, secret)), payload, nil},
		{"unknown scheme ignored", fmt.Sprintf("t=%d,v0=abc,v1=%s", ts, ComputeSignature(ts, payload, secret)), payload, nil},
		{"empty", "", payload, ErrMissingSignature},
		{"tampered payload", valid, []byte(`{"id":"evt_2"}`), ErrNoValidSignature},
		{"wrong secret", SignHeader(payload, "other", now), payload, ErrNoValidSignature},
		{"no v1", fmt.Sprintf("t=%d", ts), payload, ErrNoValidSignature},
		{"no timestamp", "v1=abcd", payload, ErrInvalidHeader},
		{"bad timestamp", "t=soon,v1=abcd", payload, ErrInvalidHeader},
		{"malformed pair", "garbage", payload, ErrInvalidHeader},
		{"too old", SignHeader(payload, secret, now.Add(-6*time.Minute)), payload, ErrTimestampOutOfRange},
		{"from the future", SignHeader(payload, secret, now.Add(6*time.Minute)), payload, ErrTimestampOutOfRange},
		{"within tolerance", SignHeader(payload, secret, now.Add(-4*time.Minute)), payload, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.payload, tt.header)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeSignature(t *testing.T) {
	// HMAC-SHA256("secret", "1.{}")
	got := ComputeSignature(1, []byte("{}"), "secret")
	if len(got) != 64 {
		t.Fatalf("ComputeSignature() length = %d, want 64 hex chars", len(got))
	}
	if got != ComputeSignature(1, []byte("{}"), "secret") {
		t.Error("ComputeSignature() is not deterministic")
	}
	if got == ComputeSignature(2, []byte("{}"), "secret") {
		t.Error("ComputeSignature() ignores the timestamp")
	}
}

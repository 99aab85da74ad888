package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	payload := map[string]any{"id": "user-42", "name": "Test User"}
	token, exp, err := codec.Issue(payload)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}
	if len(strings.Split(token, ".")) != 3 {
		t.Fatalf("expected three-part token, got %q", token)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got["id"] != "user-42" || got["name"] != "Test User" {
		t.Fatalf("payload not preserved: %v", got)
	}
}

func TestTokenExpiry(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	issued := time.Now()
	codec.now = func() time.Time { return issued }

	token, _, err := codec.Issue(map[string]any{"id": "user-42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Still inside the window.
	codec.now = func() time.Time { return issued.Add(30 * time.Second) }
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("expected token valid inside window: %v", err)
	}

	// Signature and audience are still correct; only time has passed.
	codec.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestTokenAudienceMismatch(t *testing.T) {
	issuer, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	issuer.audience = "some-other-api"

	token, _, err := issuer.Issue(map[string]any{"id": "user-42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	verifier, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong audience, got %v", err)
	}
}

func TestTokenTampered(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := codec.Issue(map[string]any{"id": "user-42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := map[string]string{
		"empty":             "",
		"garbage":           "not-a-token",
		"two segments":      token[:strings.LastIndex(token, ".")],
		"flipped signature": token[:len(token)-2] + "zz",
	}
	for name, bad := range cases {
		if _, err := codec.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestTokenWrongSecret(t *testing.T) {
	a, _ := NewTokenCodec("secret-a", time.Hour)
	b, _ := NewTokenCodec("secret-b", time.Hour)

	token, _, err := a.Issue(map[string]any{"id": "user-42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestNewTokenCodecValidation(t *testing.T) {
	if _, err := NewTokenCodec("", time.Hour); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewTokenCodec("   ", time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}
	if _, err := NewTokenCodec("secret", 0); err == nil {
		t.Fatal("expected error for zero lifetime")
	}
}

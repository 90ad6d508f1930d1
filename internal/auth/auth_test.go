package auth

import (
	"errors"
	"testing"
	"time"
)

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("short password accepted")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}
	if !VerifyPassword(hash, "correct horse battery") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}

	token, err := issuer.Issue("42")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	owner, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if owner != "42" {
		t.Errorf("owner = %q, want 42", owner)
	}
}

func TestTokenRejections(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	other, _ := NewTokenIssuer("other-secret", time.Hour)
	// Negative ttl falls back to the default, so the expiry case uses
	// the smallest positive ttl instead.
	short, _ := NewTokenIssuer("test-secret", time.Nanosecond)

	tests := []struct {
		name  string
		token func() string
	}{
		{"garbage", func() string { return "not-a-token" }},
		{"empty", func() string { return "" }},
		{"wrong secret", func() string {
			tok, _ := other.Issue("42")
			return tok
		}},
		{"expired", func() string {
			tok, _ := short.Issue("42")
			time.Sleep(5 * time.Millisecond)
			return tok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token()); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Error("empty secret accepted")
	}
}

func TestIssueRequiresOwner(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	if _, err := issuer.Issue(""); err == nil {
		t.Error("empty owner id accepted")
	}
}

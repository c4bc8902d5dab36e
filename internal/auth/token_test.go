package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndVerify(t *testing.T) {
	tokens, err := NewTokens("secret")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}

	raw, err := tokens.Mint("ops@example.com", true, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ops@example.com")
	}
	if !claims.Admin {
		t.Error("Admin = false, want true")
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens, _ := NewTokens("secret")
	other, _ := NewTokens("other")

	foreign, _ := other.Mint("x", true, time.Hour)

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := tokens.Mint("x", true, time.Hour)
	tokens.now = time.Now

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Admin:            true,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Verify(tt.raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

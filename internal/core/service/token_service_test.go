package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  TokenConfig
	}{
		{"missing access secret", TokenConfig{RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"missing refresh secret", TokenConfig{AccessSecret: "a", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"same secrets", TokenConfig{AccessSecret: "s", RefreshSecret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"zero ttl", TokenConfig{AccessSecret: "a", RefreshSecret: "r", RefreshTTL: time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTokenService(tc.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := newTestTokens(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	access, err := svc.IssueAccessToken("acc-1")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	if !access.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", access.ExpiresAt)
	}

	id, err := svc.Verify(access.Value, domain.TokenAccess)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if id != "acc-1" {
		t.Fatalf("expected acc-1, got %q", id)
	}

	other, err := svc.IssueAccessToken("acc-1")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	if other.Value == access.Value {
		t.Fatalf("tokens issued in the same second must differ")
	}
}

func TestTokenService_KindsAreNotInterchangeable(t *testing.T) {
	svc := newTestTokens(t)

	access, _ := svc.IssueAccessToken("acc-1")
	refresh, _ := svc.IssueRefreshToken("acc-1")

	if _, err := svc.Verify(access.Value, domain.TokenRefresh); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := svc.Verify(refresh.Value, domain.TokenAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestTokenService_Expiry(t *testing.T) {
	svc := newTestTokens(t)
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	access, _ := svc.IssueAccessToken("acc-1")

	svc.now = func() time.Time { return issuedAt.Add(15*time.Minute - time.Second) }
	if _, err := svc.Verify(access.Value, domain.TokenAccess); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(15 * time.Minute) }
	if _, err := svc.Verify(access.Value, domain.TokenAccess); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at expiry, got %v", err)
	}
}

func TestTokenService_RejectsTampering(t *testing.T) {
	svc := newTestTokens(t)
	access, _ := svc.IssueAccessToken("acc-1")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Kind: domain.TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Kind:             domain.TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1"},
	}).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign token without expiry: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		Kind: domain.TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	cases := map[string]string{
		"garbage":      "not.a.jwt",
		"truncated":    access.Value[:len(access.Value)-4],
		"wrong secret": forged,
		"no expiry":    noExpiry,
		"alg none":     unsigned,
		"empty":        "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Verify(token, domain.TokenAccess); !errors.Is(err, domain.ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestTokenService_ReissueAccessFromRefresh(t *testing.T) {
	svc := newTestTokens(t)
	refresh, _ := svc.IssueRefreshToken("acc-9")

	access, id, err := svc.ReissueAccessFromRefresh(refresh.Value)
	if err != nil {
		t.Fatalf("ReissueAccessFromRefresh returned error: %v", err)
	}
	if id != "acc-9" {
		t.Fatalf("expected acc-9, got %q", id)
	}
	if got, err := svc.Verify(access.Value, domain.TokenAccess); err != nil || got != "acc-9" {
		t.Fatalf("reissued token invalid: id=%q err=%v", got, err)
	}

	old, _ := svc.IssueAccessToken("acc-9")
	if _, _, err := svc.ReissueAccessFromRefresh(old.Value); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for access token, got %v", err)
	}
}

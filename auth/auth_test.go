package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleAdmin, PolicyDelete, true},
		{RoleAdmin, AuditRead, true},
		{RoleManager, PolicyRead, true},
		{RoleManager, PolicyWrite, true},
		{RoleManager, PolicyActivate, true},
		{RoleManager, AuditRead, true},
		{RoleManager, PolicyDelete, false},
		{RoleOperation, PolicyWrite, false},
		{RoleSale, PolicyRead, false},
		{RoleCustomer, PolicyRead, false},
		{Role(42), PolicyRead, false},
	}
	for _, tt := range tests {
		if got := Can(tt.role, tt.cap); got != tt.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestMatchGlob(t *testing.T) {
	if !matchGlob("policy:*", "policy:read") {
		t.Error("policy:* should match policy:read")
	}
	if matchGlob("policy:*", "audit:read") {
		t.Error("policy:* should not match audit:read")
	}
	if !matchGlob("*", "anything") {
		t.Error("* should match everything")
	}
	if matchGlob("policy:read", "policy:write") {
		t.Error("exact pattern should not match a different action")
	}
}

func TestParseRole(t *testing.T) {
	for n := 0; n <= 4; n++ {
		if _, err := ParseRole(n); err != nil {
			t.Errorf("ParseRole(%d): %v", n, err)
		}
	}
	if _, err := ParseRole(5); err == nil {
		t.Error("expected error for role 5")
	}
	if _, err := ParseRole(-1); err == nil {
		t.Error("expected error for role -1")
	}
	r, err := ParseRoleName("manager")
	if err != nil || r != RoleManager {
		t.Errorf("ParseRoleName(manager) = %v, %v", r, err)
	}
}

func TestSignVerify(t *testing.T) {
	a := NewAuthenticator([]byte("secret"), WithIssuer("charter"))

	tok, err := a.Sign("user-9", RoleManager, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.VerifyHeader("Bearer " + tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "user-9" || p.Role != RoleManager {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.Can(PolicyWrite) || p.Can(PolicyDelete) {
		t.Fatal("principal capabilities do not follow role grants")
	}
}

func TestVerifyRejects(t *testing.T) {
	a := NewAuthenticator([]byte("secret"))

	if _, err := a.VerifyHeader(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := a.VerifyHeader("Basic abc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for basic scheme, got %v", err)
	}
	if _, err := a.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	other := NewAuthenticator([]byte("other"))
	tok, _ := other.Sign("u", RoleAdmin, time.Hour)
	if _, err := a.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	past := NewAuthenticator([]byte("secret"), WithNow(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	tok, _ = past.Sign("u", RoleAdmin, time.Hour)
	if _, err := a.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry failure, got %v", err)
	}

	tok, _ = a.Sign("u", Role(9), time.Hour)
	if _, err := a.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown role failure, got %v", err)
	}

	tok, _ = a.Sign("u", RoleAdmin, time.Hour)
	if _, err := NewAuthenticator([]byte("secret"), WithIssuer("elsewhere")).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer failure, got %v", err)
	}
}

func TestVerifyRejectsNoneAlg(t *testing.T) {
	a := NewAuthenticator([]byte("secret"))
	admin := int(RoleAdmin)
	claims := Claims{Role: &admin, RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}

func TestVerifyRejectsMissingRole(t *testing.T) {
	a := NewAuthenticator([]byte("secret"))
	claims := jwt.RegisteredClaims{
		Subject:   "customer-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.Verify(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a token without a role, got %+v, %v", p, err)
	}
}

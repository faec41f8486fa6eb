package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	return NewService(testJWTConfig())
}

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func TestIssueAndResolve(t *testing.T) {
	svc := newTestAuthService(t)

	token, err := svc.Issue(42, "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := svc.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.UserID != 42 || id.Name != "alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	// Header form is accepted as well.
	if _, err := svc.Resolve("Bearer " + token); err != nil {
		t.Fatalf("resolve bearer: %v", err)
	}
}

func TestIssue_RejectsInvalidUserID(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Issue(0, "nobody"); err == nil {
		t.Fatalf("expected error for user id 0")
	}
}

func TestResolve_RejectsBadTokens(t *testing.T) {
	svc := newTestAuthService(t)

	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"
	wrongIssuer, _ := GenerateToken(otherIssuer, 1, "x")

	otherAudience := testJWTConfig()
	otherAudience.Audience = "elsewhere"
	wrongAudience, _ := GenerateToken(otherAudience, 1, "x")

	otherSecret := testJWTConfig()
	otherSecret.Secret = []byte("not-the-secret")
	wrongSecret, _ := GenerateToken(otherSecret, 1, "x")

	expiredCfg := testJWTConfig()
	expiredCfg.TTL = -time.Minute
	expired, _ := GenerateToken(expiredCfg, 1, "x")

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test",
			Audience:  jwt.ClaimStrings{"test"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"wrong secret":   wrongSecret,
		"expired":        expired,
		"alg none":       noneToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Resolve(token); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestValidateToken_RequiresUserID(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, 0, "ghost")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatalf("expected missing user id error")
	}
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medcore-hms/medcore/internal/authz"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func mintToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() Claims {
	return Claims{
		UserID: "u7",
		Email:  "priya@stmarys.example",
		Name:   "Priya Nair",
		Role:   "lab_technician",
		OrgID:  "org-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u7",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestNewVerifier_EmptySecretFailsInProduction(t *testing.T) {
	t.Setenv("DEV_MODE", "")
	t.Setenv("GIN_MODE", "release")
	if _, err := NewVerifier(""); err == nil {
		t.Error("expected error for empty secret outside dev mode")
	}
}

func TestNewVerifier_EmptySecretGeneratesInDevMode(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	v, err := NewVerifier("")
	if err != nil {
		t.Fatalf("NewVerifier error in dev mode: %v", err)
	}
	if len(v.secret) == 0 {
		t.Error("dev-mode verifier has no secret")
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims, err := v.Verify(mintToken(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u7" || claims.Role != "lab_technician" || claims.OrgID != "org-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerify_Rejections(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := []struct {
		name  string
		token string
	}{
		{"wrong secret", mintToken(t, "another-secret-another-secret-xx", validClaims())},
		{"expired", mintToken(t, testSecret, expired)},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); err == nil {
				t.Error("expected verification error, got nil")
			}
		})
	}
}

func TestVerify_RejectsNonHMACSigningMethod(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	// alg=none tokens must never pass.
	claims := validClaims()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := v.Verify(signed); err == nil {
		t.Error("alg=none token verified")
	}
}

func TestActorFromClaims(t *testing.T) {
	claims := validClaims()
	actor := ActorFromClaims(&claims)

	if actor.ID != "u7" || actor.Email != "priya@stmarys.example" {
		t.Errorf("actor = %+v", actor)
	}
	if actor.Role != authz.RoleLabTechnician {
		t.Errorf("role = %q", actor.Role)
	}
	if actor.CurrentOrg != nil {
		t.Error("CurrentOrg should be unresolved until membership lookup")
	}
}

// Package auth verifies bearer tokens issued by the Medcore identity service
// and turns them into actor identities. This service never mints or refreshes
// tokens; it only checks the HMAC signature and standard validity claims of
// tokens presented to it.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medcore-hms/medcore/internal/authz"
)

// Claims is the token payload shared with the identity service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	OrgID  string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for tokens that parse but fail validation.
var ErrInvalidToken = errors.New("invalid token")

// isDevMode checks if we're in development mode
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")
	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less secure but functional secret
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// Verifier checks bearer tokens against the shared signing secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the configured secret. An empty secret
// is a startup error in production; in dev mode a random secret is generated
// so the binary still runs, with the caveat that no externally issued token
// will verify against it.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		if !isDevMode() {
			return nil, errors.New("JWT secret is required in production. " +
				"Set security.jwt_secret (or JWT_SECRET). Generate one with: openssl rand -hex 32")
		}
		secret = generateRandomSecret()
		slog.Warn("JWT secret not set; using auto-generated secret for development")
		slog.Warn("tokens issued elsewhere will not verify against this instance")
	} else if len(secret) < 32 {
		slog.Warn("JWT secret is shorter than the recommended 32 characters")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ActorFromClaims builds the bare actor identity carried by the token. The
// caller resolves organization membership from the database before access
// checks that depend on plan or org type.
func ActorFromClaims(claims *Claims) *authz.Actor {
	return &authz.Actor{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  authz.Role(claims.Role),
	}
}

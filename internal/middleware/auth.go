// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → RBAC → Audit → Handler
//
// Security headers run first so they appear on all responses including
// errors. Rate limiting runs before auth to blunt brute-force attempts before
// any DB work. Auth resolves the bearer token into an actor; RBAC reads that
// actor from the context. The request audit middleware runs after RBAC so
// denied requests are recorded by the RBAC layer, not double-counted here.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/auth"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/repositories"
)

// ActorKey is the gin.Context key under which the resolved actor is stored.
const ActorKey = "actor"

// ActorFromContext returns the actor resolved by AuthMiddleware, or nil when
// the request is unauthenticated (public route or middleware not run).
func ActorFromContext(c *gin.Context) *authz.Actor {
	val, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	actor, ok := val.(*authz.Actor)
	if !ok {
		return nil
	}
	return actor
}

// AuthMiddleware validates the bearer token and resolves it into an actor
// with organization memberships loaded. Verification is stateless; the single
// DB round-trip loads the user row and memberships so permission checks can
// see role, plan, and org type.
func AuthMiddleware(verifier *auth.Verifier, users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		actor, err := users.ResolveActor(c.Request.Context(), claims.UserID, claims.OrgID)
		if errors.Is(err, repositories.ErrUserSuspended) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Account suspended",
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(ActorKey, actor)
		c.Set("user_id", actor.ID)

		c.Next()
	}
}

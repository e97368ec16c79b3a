// Package access exposes the policy evaluator over HTTP so frontends can ask
// "may the signed-in user do X" without re-encoding the policy tables
// client-side. Every endpoint answers for the actor resolved by the auth
// middleware; there is no way to query another user's permissions here.
package access

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
)

// Handlers serves the access-check endpoints.
type Handlers struct {
	orgs *repositories.OrganizationRepository
}

// NewHandlers creates the access-check handlers.
func NewHandlers(orgs *repositories.OrganizationRepository) *Handlers {
	return &Handlers{orgs: orgs}
}

// MePermissions returns the actor's role and its full permission set, sorted
// for stable output.
func (h *Handlers) MePermissions(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	perms := authz.UserPermissions(actor)
	list := make([]string, 0, len(perms))
	for p := range perms {
		list = append(list, string(p))
	}
	sort.Strings(list)

	resp := gin.H{
		"user_id":     actor.ID,
		"role":        actor.Role,
		"permissions": list,
	}
	if actor.CurrentOrg != nil {
		resp["organization"] = gin.H{
			"id":   actor.CurrentOrg.ID,
			"name": actor.CurrentOrg.Name,
			"type": actor.CurrentOrg.Type,
			"plan": actor.CurrentOrg.Plan,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckFeature reports whether the actor's current organization plan includes
// the feature named by the :tag parameter. Unknown tags are simply not in any
// plan's feature set, so they answer false rather than 400.
func (h *Handlers) CheckFeature(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	feature := authz.Feature(c.Param("tag"))
	c.JSON(http.StatusOK, gin.H{
		"feature": feature,
		"allowed": authz.CanAccessFeature(actor, feature),
	})
}

// CheckQuota reports whether the actor's current organization may create one
// more resource of the :kind parameter, alongside the current count and the
// plan limit.
func (h *Handlers) CheckQuota(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	kind := authz.ResourceKind(c.Param("kind"))
	if !validResourceKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown resource kind", "kind": kind})
		return
	}
	if actor.CurrentOrg == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No organization context"})
		return
	}

	count, err := h.orgs.ResourceCount(c.Request.Context(), actor.CurrentOrg.ID, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check resource quota"})
		return
	}

	check := authz.CanCreateMore(actor, kind, count)
	c.JSON(http.StatusOK, gin.H{
		"kind":          kind,
		"current_count": count,
		"allowed":       check.Allowed,
		"limit":         check.Limit,
		"message":       check.Message,
	})
}

func validResourceKind(kind authz.ResourceKind) bool {
	for _, k := range authz.AllResourceKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

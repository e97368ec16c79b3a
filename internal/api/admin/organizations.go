package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/models"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
	"github.com/medcore-hms/medcore/internal/telemetry"
)

// OrganizationHandlers serves admin organization-management endpoints.
type OrganizationHandlers struct {
	orgs     *repositories.OrganizationRepository
	recorder *audit.Recorder
}

// NewOrganizationHandlers creates the organization-management handlers.
func NewOrganizationHandlers(orgs *repositories.OrganizationRepository, recorder *audit.Recorder) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: orgs, recorder: recorder}
}

type createOrgRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
	Plan string `json:"plan"`
}

var orgTypes = map[authz.OrgType]struct{}{
	authz.OrgTypeHeadquarters: {},
	authz.OrgTypeHospital:     {},
	authz.OrgTypeClinic:       {},
	authz.OrgTypeLaboratory:   {},
	authz.OrgTypePharmacy:     {},
}

var plans = map[authz.Plan]struct{}{
	authz.PlanBasic:        {},
	authz.PlanProfessional: {},
	authz.PlanEnterprise:   {},
}

// CreateOrganization registers a new care facility.
func (h *OrganizationHandlers) CreateOrganization(c *gin.Context) {
	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	orgType := authz.OrgType(req.Type)
	if _, ok := orgTypes[orgType]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown organization type", "type": req.Type})
		return
	}
	plan := authz.Plan(req.Plan)
	if req.Plan == "" {
		plan = authz.PlanBasic
	}
	if _, ok := plans[plan]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan", "plan": req.Plan})
		return
	}

	org := &models.Organization{
		Name: req.Name,
		Type: orgType,
		Plan: plan,
	}
	if err := h.orgs.Create(c.Request.Context(), org); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	actor := middleware.ActorFromContext(c)
	h.recorder.RecordEvent(audit.EventOrgCreate, audit.SnapshotActor(actor), org.Name,
		audit.WithResourceID(org.ID),
		audit.WithMetadata(map[string]any{"type": org.Type, "plan": org.Plan}),
		audit.WithClientInfo(c.ClientIP(), c.Request.UserAgent()))

	c.JSON(http.StatusCreated, org)
}

// GetOrganization returns one organization with its per-kind resource counts.
func (h *OrganizationHandlers) GetOrganization(c *gin.Context) {
	org, err := h.orgs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	counts := make(map[authz.ResourceKind]int, 4)
	for _, kind := range authz.AllResourceKinds() {
		n, err := h.orgs.ResourceCount(c.Request.Context(), org.ID, kind)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count resources"})
			return
		}
		counts[kind] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"organization":    org,
		"resource_counts": counts,
	})
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddMember adds a user to the organization.
func (h *OrganizationHandlers) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.orgs.AddMember(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization_id": c.Param("id"), "user_id": req.UserID})
}

type addResourceRequest struct {
	Kind string `json:"kind" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// AddResource registers a department, room, bed, or staff position against
// the organization. The quota check runs against the target organization, not
// the caller's, so headquarters staff provisioning a hospital are checked
// against that hospital's plan.
func (h *OrganizationHandlers) AddResource(c *gin.Context) {
	var req addResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind := authz.ResourceKind(req.Kind)
	valid := false
	for _, k := range authz.AllResourceKinds() {
		if k == kind {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown resource kind", "kind": req.Kind})
		return
	}

	org, err := h.orgs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	count, err := h.orgs.ResourceCount(c.Request.Context(), org.ID, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check resource quota"})
		return
	}

	// Evaluate the quota as if acting inside the target organization.
	target := &authz.Actor{
		CurrentOrg: &authz.Organization{
			ID:   org.ID,
			Name: org.Name,
			Type: org.Type,
			Plan: org.Plan,
		},
	}
	check := authz.CanCreateMore(target, kind, count)
	if !check.Allowed {
		telemetry.QuotaDenialsTotal.WithLabelValues(string(kind)).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": check.Message, "limit": check.Limit})
		return
	}

	res := &models.OrgResource{
		OrganizationID: org.ID,
		Kind:           kind,
		Name:           req.Name,
	}
	if err := h.orgs.AddResource(c.Request.Context(), res); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add resource"})
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RemoveResource deletes one inventoried resource.
func (h *OrganizationHandlers) RemoveResource(c *gin.Context) {
	if err := h.orgs.RemoveResource(c.Request.Context(), c.Param("resource_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove resource"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("resource_id"), "removed": true})
}

// Package admin implements the administrative HTTP handlers: user and
// organization management plus the audit-trail query, export, and archive
// endpoints. All routes in this package sit behind the auth middleware and an
// RBAC guard; handlers only implement the operation itself.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/auth"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/models"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
)

// UserHandlers serves admin user-management endpoints.
type UserHandlers struct {
	users    *repositories.UserRepository
	recorder *audit.Recorder
}

// NewUserHandlers creates the user-management handlers.
func NewUserHandlers(users *repositories.UserRepository, recorder *audit.Recorder) *UserHandlers {
	return &UserHandlers{users: users, recorder: recorder}
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func validRole(role authz.Role) bool {
	for _, r := range authz.AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// userResponse strips the password hash from API output.
func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"status":     u.Status,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

// CreateUser creates a staff or patient account.
func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	role := authz.Role(req.Role)
	if !validRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role", "role": req.Role})
		return
	}

	existing, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid password", "details": err.Error()})
		return
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: hash,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	actor := middleware.ActorFromContext(c)
	h.recorder.RecordEvent(audit.EventUserCreate, audit.SnapshotActor(actor), user.Email,
		audit.WithResourceID(user.ID),
		audit.WithClientInfo(c.ClientIP(), c.Request.UserAgent()))

	c.JSON(http.StatusCreated, userResponse(user))
}

// GetUser returns one user account.
func (h *UserHandlers) GetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// SuspendUser disables sign-in for the account. The row and its audit history
// are kept.
func (h *UserHandlers) SuspendUser(c *gin.Context) {
	h.setStatus(c, models.UserStatusSuspended, audit.EventUserSuspend)
}

// ActivateUser re-enables a suspended account.
func (h *UserHandlers) ActivateUser(c *gin.Context) {
	h.setStatus(c, models.UserStatusActive, audit.EventUserActivate)
}

func (h *UserHandlers) setStatus(c *gin.Context, status string, event audit.Event) {
	id := c.Param("id")
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.users.SetStatus(c.Request.Context(), id, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user status"})
		return
	}

	actor := middleware.ActorFromContext(c)
	h.recorder.RecordEvent(event, audit.SnapshotActor(actor), user.Email,
		audit.WithResourceID(user.ID),
		audit.WithChanges(map[string]audit.FieldChange{
			"status": audit.Change(user.Status, status),
		}),
		audit.WithClientInfo(c.ClientIP(), c.Request.UserAgent()))

	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

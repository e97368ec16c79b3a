package models

import (
	"time"

	"github.com/medcore-hms/medcore/internal/authz"
)

// Organization represents a care facility or the operator headquarters
type Organization struct {
	ID        string        `db:"id"`
	Name      string        `db:"name"`
	Type      authz.OrgType `db:"type"`
	Plan      authz.Plan    `db:"plan"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// OrgMember links a user to an organization
type OrgMember struct {
	OrganizationID string    `db:"organization_id"`
	UserID         string    `db:"user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// OrgResource is one inventoried resource (department, room, bed, staff
// position) counted against the organization's plan quota.
type OrgResource struct {
	ID             string             `db:"id"`
	OrganizationID string             `db:"organization_id"`
	Kind           authz.ResourceKind `db:"kind"`
	Name           string             `db:"name"`
	CreatedAt      time.Time          `db:"created_at"`
}

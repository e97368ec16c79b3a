// Package models defines the database row types shared by the repositories.
package models

import (
	"time"

	"github.com/medcore-hms/medcore/internal/authz"
)

// User account statuses. Suspended users keep their rows and audit history
// but cannot sign in.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// User represents a platform user account
type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	Role         authz.Role `db:"role"`
	PasswordHash string     `db:"password_hash"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

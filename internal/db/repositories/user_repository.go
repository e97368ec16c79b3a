package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/models"
)

// ErrUserSuspended is returned by ResolveActor when the account exists but
// has been suspended. Callers map it to a 403 rather than a 401 so the user
// learns the account state instead of retrying credentials.
var ErrUserSuspended = errors.New("user account is suspended")

// UserRepository handles user account database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. ID and timestamps are assigned here.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	query := `
		INSERT INTO users (id, email, name, role, password_hash, status, created_at, updated_at)
		VALUES (:id, :email, :name, :role, :password_hash, :status, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, user)
	return err
}

// GetByID returns the user with the given id, or (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns the user with the given email, or (nil, nil) when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetStatus moves the user between active and suspended.
func (r *UserRepository) SetStatus(ctx context.Context, id, status string) error {
	if status != models.UserStatusActive && status != models.UserStatusSuspended {
		return fmt.Errorf("invalid user status: %s", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

// SetPasswordHash replaces the stored password hash.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		hash, time.Now().UTC(), id)
	return err
}

// ResolveActor loads the user and its organization memberships into an
// authz.Actor. The first membership (oldest join) becomes CurrentOrg unless
// orgID names another one the user belongs to. Returns (nil, nil) for an
// unknown user.
func (r *UserRepository) ResolveActor(ctx context.Context, userID, orgID string) (*authz.Actor, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}
	if user.Status == models.UserStatusSuspended {
		return nil, ErrUserSuspended
	}

	var orgs []models.Organization
	err = r.db.SelectContext(ctx, &orgs, `
		SELECT o.* FROM organizations o
		JOIN org_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.created_at
	`, userID)
	if err != nil {
		return nil, err
	}

	actor := &authz.Actor{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
	for _, org := range orgs {
		actor.Organizations = append(actor.Organizations, authz.Organization{
			ID:   org.ID,
			Name: org.Name,
			Type: org.Type,
			Plan: org.Plan,
		})
	}
	if len(actor.Organizations) > 0 {
		actor.CurrentOrg = &actor.Organizations[0]
		for i := range actor.Organizations {
			if actor.Organizations[i].ID == orgID {
				actor.CurrentOrg = &actor.Organizations[i]
				break
			}
		}
	}
	return actor, nil
}

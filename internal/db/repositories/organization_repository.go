package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/models"
)

// OrganizationRepository handles organization and resource inventory database
// operations. Resource counts from here feed the plan quota checks.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization. ID and timestamps are assigned here.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	org.ID = uuid.New().String()
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.Plan == "" {
		org.Plan = authz.PlanBasic
	}

	query := `
		INSERT INTO organizations (id, name, type, plan, created_at, updated_at)
		VALUES (:id, :name, :type, :plan, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, org)
	return err
}

// GetByID returns the organization with the given id, or (nil, nil) when
// absent.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.GetContext(ctx, &org, `SELECT * FROM organizations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// AddMember links a user to an organization. Adding an existing member is a
// no-op.
func (r *OrganizationRepository) AddMember(ctx context.Context, orgID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO org_members (organization_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, orgID, userID, time.Now().UTC())
	return err
}

// ResourceCount returns how many resources of one kind the organization
// currently has. Quota checks compare this against the plan limit.
func (r *OrganizationRepository) ResourceCount(ctx context.Context, orgID string, kind authz.ResourceKind) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM org_resources WHERE organization_id = $1 AND kind = $2`,
		orgID, kind)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddResource records a new inventoried resource. The caller is responsible
// for checking the quota first; the table itself enforces nothing.
func (r *OrganizationRepository) AddResource(ctx context.Context, res *models.OrgResource) error {
	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO org_resources (id, organization_id, kind, name, created_at)
		VALUES (:id, :organization_id, :kind, :name, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, res)
	return err
}

// RemoveResource deletes one inventoried resource.
func (r *OrganizationRepository) RemoveResource(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM org_resources WHERE id = $1`, id)
	return err
}

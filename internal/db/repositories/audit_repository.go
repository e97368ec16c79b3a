// Package repositories implements the database access layer. Repositories
// return (nil, nil) for lookups that find nothing; callers decide whether
// absence is an error.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/db/models"
)

// AuditRepository persists audit entries to the audit_logs table. It
// satisfies audit.Store, so the recorder's side-channel writes land here.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters narrows ListAuditLogs. Nil fields are absent filters.
type AuditFilters struct {
	UserID    *string
	Action    *string
	Category  *string
	Severity  *string
	StartDate *time.Time
	EndDate   *time.Time
}

// strPtr returns nil for empty strings so optional columns store NULL
// instead of "".
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Insert persists one ledger entry. Implements audit.Store.
func (r *AuditRepository) Insert(ctx context.Context, entry *audit.Entry) error {
	var changesJSON, metadataJSON []byte
	var err error
	if entry.Changes != nil {
		if changesJSON, err = json.Marshal(entry.Changes); err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}
	if entry.Metadata != nil {
		if metadataJSON, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	row := &models.AuditLog{
		ID:           uuid.New().String(),
		EntrySeq:     entry.ID,
		OccurredAt:   entry.Timestamp,
		UserID:       strPtr(entry.Actor.UserID),
		UserEmail:    strPtr(entry.Actor.Email),
		UserName:     strPtr(entry.Actor.Name),
		UserRole:     strPtr(string(entry.Actor.Role)),
		OrgID:        strPtr(entry.Actor.OrgID),
		OrgName:      strPtr(entry.Actor.OrgName),
		Action:       entry.Action,
		Category:     entry.Category,
		Severity:     entry.Severity,
		Changes:      changesJSON,
		Metadata:     metadataJSON,
		Success:      entry.Success,
		ErrorMessage: strPtr(entry.ErrorMessage),
		IPAddress:    strPtr(entry.IPAddress),
		UserAgent:    strPtr(entry.UserAgent),
		Description:  entry.Description,
		CreatedAt:    time.Now().UTC(),
	}
	if entry.Resource != nil {
		row.ResourceType = strPtr(entry.Resource.Type)
		row.ResourceID = strPtr(entry.Resource.ID)
		row.ResourceName = strPtr(entry.Resource.Name)
	}

	query := `
		INSERT INTO audit_logs (
			id, entry_seq, occurred_at,
			user_id, user_email, user_name, user_role, org_id, org_name,
			action, category, severity,
			resource_type, resource_id, resource_name,
			changes, metadata, success, error_message,
			ip_address, user_agent, description, created_at
		) VALUES (
			:id, :entry_seq, :occurred_at,
			:user_id, :user_email, :user_name, :user_role, :org_id, :org_name,
			:action, :category, :severity,
			:resource_type, :resource_id, :resource_name,
			:changes, :metadata, :success, :error_message,
			:ip_address, :user_agent, :description, :created_at
		)
	`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

// ListAuditLogs retrieves persisted entries with optional filters and
// pagination, newest first.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := `SELECT * FROM audit_logs WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		cond := fmt.Sprintf(clause, paramIndex)
		countQuery += cond
		query += cond
		args = append(args, value)
		paramIndex++
	}

	if filters.UserID != nil {
		addFilter(` AND user_id = $%d`, *filters.UserID)
	}
	if filters.Action != nil {
		addFilter(` AND action = $%d`, *filters.Action)
	}
	if filters.Category != nil {
		addFilter(` AND category = $%d`, *filters.Category)
	}
	if filters.Severity != nil {
		addFilter(` AND severity = $%d`, *filters.Severity)
	}
	if filters.StartDate != nil {
		addFilter(` AND occurred_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND occurred_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	logs := make([]*models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// PurgeOlderThan deletes persisted entries that occurred before the cutoff
// and returns how many rows went away. The in-memory ledger is unaffected;
// it has its own capacity bound.
func (r *AuditRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

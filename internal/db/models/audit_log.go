// audit_log.go defines the persisted form of an audit entry. Columns are a
// flattened copy of audit.Entry so the durable record is self-contained even
// if users or organizations are later renamed or deleted.
package models

import (
	"time"

	"github.com/medcore-hms/medcore/internal/audit"
)

// AuditLog is one persisted audit entry
type AuditLog struct {
	ID           string         `db:"id"`
	EntrySeq     int64          `db:"entry_seq"`
	OccurredAt   time.Time      `db:"occurred_at"`
	UserID       *string        `db:"user_id"` // nullable for unauthenticated events
	UserEmail    *string        `db:"user_email"`
	UserName     *string        `db:"user_name"`
	UserRole     *string        `db:"user_role"`
	OrgID        *string        `db:"org_id"`
	OrgName      *string        `db:"org_name"`
	Action       string         `db:"action"`
	Category     audit.Category `db:"category"`
	Severity     audit.Severity `db:"severity"`
	ResourceType *string        `db:"resource_type"`
	ResourceID   *string        `db:"resource_id"`
	ResourceName *string        `db:"resource_name"`
	Changes      []byte         `db:"changes"`  // JSONB
	Metadata     []byte         `db:"metadata"` // JSONB
	Success      bool           `db:"success"`
	ErrorMessage *string        `db:"error_message"`
	IPAddress    *string        `db:"ip_address"`
	UserAgent    *string        `db:"user_agent"`
	Description  string         `db:"description"`
	CreatedAt    time.Time      `db:"created_at"`
}

// Package audit implements the append-only audit trail for the Medcore
// platform: an ordered, capacity-bounded in-memory ledger of immutable
// entries, deterministic classification of actions into category and
// severity, filtered querying, aggregate statistics, and CSV export.
//
// Entries are created exactly once by Ledger.Append and never mutated or
// individually deleted afterwards; the only removal is bulk FIFO eviction
// when the ledger exceeds its capacity. Audit writes are fire-and-forget
// with respect to the business operation that triggered them — a failure to
// persist an entry is reported on a side channel (structured log plus a
// Prometheus counter) and never propagated to the caller.
package audit

import (
	"encoding/json"
	"time"

	"github.com/medcore-hms/medcore/internal/authz"
)

// Severity grades how sensitive an audited action is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities returns every severity, lowest first.
func AllSeverities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Category groups audited actions by the subsystem they touch. It is derived
// from the action tag's prefix (the part before the first dot).
type Category string

const (
	CategoryUser     Category = "user"
	CategoryAuth     Category = "auth"
	CategoryData     Category = "data"
	CategorySystem   Category = "system"
	CategorySecurity Category = "security"
	CategoryIT       Category = "it"
	CategoryAdmin    Category = "admin"
	CategoryFinance  Category = "finance"
)

// AllCategories returns every category.
func AllCategories() []Category {
	return []Category{
		CategoryUser, CategoryAuth, CategoryData, CategorySystem,
		CategorySecurity, CategoryIT, CategoryAdmin, CategoryFinance,
	}
}

// ActorSnapshot captures who performed an action at the time it happened.
// It is a value copy, not a live reference: renaming a user or moving them
// between organizations later must not retroactively rewrite history.
type ActorSnapshot struct {
	UserID  string     `json:"user_id"`
	Email   string     `json:"email"`
	Name    string     `json:"name"`
	Role    authz.Role `json:"role"`
	OrgID   string     `json:"org_id,omitempty"`
	OrgName string     `json:"org_name,omitempty"`
}

// SnapshotActor builds an ActorSnapshot from an authz.Actor. A nil actor
// yields the zero snapshot (used for unauthenticated events such as failed
// logins).
func SnapshotActor(actor *authz.Actor) ActorSnapshot {
	if actor == nil {
		return ActorSnapshot{}
	}
	snap := ActorSnapshot{
		UserID: actor.ID,
		Email:  actor.Email,
		Name:   actor.Name,
		Role:   actor.Role,
	}
	if actor.CurrentOrg != nil {
		snap.OrgID = actor.CurrentOrg.ID
		snap.OrgName = actor.CurrentOrg.Name
	}
	return snap
}

// ResourceRef identifies the resource an action affected.
type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// FieldChange records an old/new value pair for one field. Values are kept
// as raw JSON so arbitrary field types survive round-tripping without the
// ledger needing to know their shape.
type FieldChange struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// Change builds a FieldChange from two Go values. Marshal failures degrade
// to JSON null rather than failing the audit write.
func Change(oldVal, newVal any) FieldChange {
	return FieldChange{Old: marshalValue(oldVal), New: marshalValue(newVal)}
}

func marshalValue(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// Entry is one immutable audit record. ID is a monotonically increasing
// sequence number assigned by the ledger at append time.
type Entry struct {
	ID           int64                  `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Actor        ActorSnapshot          `json:"actor"`
	Action       string                 `json:"action"`
	Category     Category               `json:"category"`
	Severity     Severity               `json:"severity"`
	Resource     *ResourceRef           `json:"resource,omitempty"`
	Changes      map[string]FieldChange `json:"changes,omitempty"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Description  string                 `json:"description"`
}

// Record is the caller-supplied input to Ledger.Append: an entry without its
// ledger-assigned identity. Category and Severity may be left empty, in
// which case the classifier derives them from Action. Timestamp may be left
// zero to use the append time.
type Record struct {
	Timestamp    time.Time
	Actor        ActorSnapshot
	Action       string
	Category     Category
	Severity     Severity
	Resource     *ResourceRef
	Changes      map[string]FieldChange
	Metadata     map[string]any
	Success      bool
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	Description  string
}

// recorder.go layers persistence and a catalogue of well-known events on top
// of the ledger. The ledger append is synchronous and cannot fail; the
// database write and downstream shipping happen on a background goroutine so
// the business operation that triggered the entry never waits on — or fails
// because of — the audit trail.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medcore-hms/medcore/internal/safego"
	"github.com/medcore-hms/medcore/internal/telemetry"
)

// Store persists audit entries durably. The in-memory ledger is the hot
// query path; the store is the compliance record that survives restarts.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
}

// Recorder appends audit entries to the ledger and fans them out to the
// optional durable store and shipper. Safe for concurrent use.
type Recorder struct {
	ledger  *Ledger
	store   Store
	shipper Shipper
	timeout time.Duration
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithStore attaches a durable store. Entries are written to it
// asynchronously after the ledger append.
func WithStore(s Store) RecorderOption {
	return func(r *Recorder) { r.store = s }
}

// WithShipper attaches a downstream shipper (file, webhook) that receives
// every entry after the ledger append.
func WithShipper(s Shipper) RecorderOption {
	return func(r *Recorder) { r.shipper = s }
}

// WithPersistTimeout bounds each background store/ship attempt. Default 10s.
func WithPersistTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder creates a recorder over the given ledger.
func NewRecorder(ledger *Ledger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ledger:  ledger,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ledger exposes the underlying ledger for queries, stats, and export.
func (r *Recorder) Ledger() *Ledger {
	return r.ledger
}

// Record appends the record to the ledger and kicks off asynchronous
// persistence. It always returns the appended entry; persistence failures
// surface only as logs and metrics.
func (r *Recorder) Record(rec Record) *Entry {
	entry := r.ledger.Append(rec)

	telemetry.AuditEntriesTotal.WithLabelValues(string(entry.Severity), string(entry.Category)).Inc()
	telemetry.AuditLedgerSize.Set(float64(r.ledger.Len()))

	if r.store != nil || r.shipper != nil {
		safego.Go(func() { r.persist(entry) })
	}
	return entry
}

func (r *Recorder) persist(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Insert(ctx, entry); err != nil {
			telemetry.AuditWriteFailuresTotal.Inc()
			slog.Error("audit entry not persisted",
				"entry_id", entry.ID,
				"action", entry.Action,
				"severity", entry.Severity,
				"error", err)
		}
	}
	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, entry); err != nil {
			slog.Warn("audit entry not shipped",
				"entry_id", entry.ID,
				"action", entry.Action,
				"error", err)
		}
	}
}

// Event identifies a catalogued audit action. The catalogue fixes the action
// tag, the resource type, the description wording, and (where the default
// classification would be wrong) a severity override, so call sites cannot
// drift in how they describe the same operation.
type Event string

const (
	EventUserCreate        Event = "user.create"
	EventUserUpdate        Event = "user.update"
	EventUserSuspend       Event = "user.suspend"
	EventUserActivate      Event = "user.activate"
	EventUserPasswordReset Event = "user.password_reset"

	EventLogin       Event = "auth.login"
	EventLoginFailed Event = "auth.login_failed"
	EventLogout      Event = "auth.logout"

	EventPatientRecordView Event = "data.patient_record_view"
	EventDataExport        Event = "data.export"
	EventDataBulkExport    Event = "data.bulk_export"
	EventDataImport        Event = "data.import"

	EventBackupStart    Event = "system.backup_start"
	EventBackupComplete Event = "system.backup_complete"
	EventConfigChange   Event = "system.config_change"

	EventSecurityAlertResolve Event = "security.alert_resolve"
	EventUnauthorizedAccess   Event = "security.unauthorized_access"

	EventReportGenerate Event = "it.report_generate"
	EventLogExport      Event = "it.log_export"

	EventUserExport      Event = "admin.user_export"
	EventOrgCreate       Event = "admin.org_create"
	EventSettingsChange  Event = "admin.settings_change"
	EventDashboardExport Event = "admin.dashboard_export"
)

type eventSpec struct {
	severity    Severity // "" = derive from the action tag
	resource    string
	description string // fmt template; %s is the subject
}

// eventCatalog drives RecordEvent. Overrides exist where the cascade default
// would misgrade the event: auth.login would be low anyway but is pinned so a
// future rename cannot silently regrade sign-ins, and admin.org_create is
// critical despite matching no cascade rule.
var eventCatalog = map[Event]eventSpec{
	EventUserCreate:        {resource: "user", description: "Created user account %s"},
	EventUserUpdate:        {resource: "user", description: "Updated user account %s"},
	EventUserSuspend:       {severity: SeverityCritical, resource: "user", description: "Suspended user account %s"},
	EventUserActivate:      {resource: "user", description: "Activated user account %s"},
	EventUserPasswordReset: {resource: "user", description: "Reset password for %s"},

	EventLogin:       {severity: SeverityLow, resource: "session", description: "User %s signed in"},
	EventLoginFailed: {resource: "session", description: "Failed sign-in attempt for %s"},
	EventLogout:      {severity: SeverityLow, resource: "session", description: "User %s signed out"},

	EventPatientRecordView: {resource: "patient_record", description: "Viewed patient record %s"},
	EventDataExport:        {resource: "export", description: "Exported data set %s"},
	EventDataBulkExport:    {resource: "export", description: "Bulk export of %s"},
	EventDataImport:        {resource: "import", description: "Imported data set %s"},

	EventBackupStart:    {resource: "backup", description: "Started backup %s"},
	EventBackupComplete: {resource: "backup", description: "Completed backup %s"},
	EventConfigChange:   {resource: "config", description: "Changed system configuration %s"},

	EventSecurityAlertResolve: {resource: "alert", description: "Resolved security alert %s"},
	EventUnauthorizedAccess:   {severity: SeverityCritical, resource: "endpoint", description: "Unauthorized access attempt on %s"},

	EventReportGenerate: {resource: "report", description: "Generated report %s"},
	EventLogExport:      {resource: "log", description: "Exported system logs %s"},

	EventUserExport:      {resource: "export", description: "Exported user list %s"},
	EventOrgCreate:       {severity: SeverityCritical, resource: "organization", description: "Created organization %s"},
	EventSettingsChange:  {resource: "settings", description: "Changed organization settings %s"},
	EventDashboardExport: {resource: "dashboard", description: "Exported dashboard %s"},
}

// EventOption customises a catalogued event before it is recorded.
type EventOption func(*Record)

// WithResourceID sets the id of the affected resource.
func WithResourceID(id string) EventOption {
	return func(rec *Record) { rec.Resource.ID = id }
}

// WithChanges attaches the field-level old/new values of the operation.
func WithChanges(changes map[string]FieldChange) EventOption {
	return func(rec *Record) { rec.Changes = changes }
}

// WithMetadata attaches free-form context to the entry.
func WithMetadata(md map[string]any) EventOption {
	return func(rec *Record) { rec.Metadata = md }
}

// WithFailure marks the entry unsuccessful and records why.
func WithFailure(errMsg string) EventOption {
	return func(rec *Record) {
		rec.Success = false
		rec.ErrorMessage = errMsg
	}
}

// WithClientInfo records the caller's network identity.
func WithClientInfo(ip, userAgent string) EventOption {
	return func(rec *Record) {
		rec.IPAddress = ip
		rec.UserAgent = userAgent
	}
}

// RecordEvent records a catalogued event. subject names the affected thing
// and is interpolated into the catalogue's description template (and used as
// the resource name). Unknown events are still recorded, with the event tag
// as action and classification fully derived, so a missing catalogue entry
// loses wording, not the audit record.
func (r *Recorder) RecordEvent(event Event, actor ActorSnapshot, subject string, opts ...EventOption) *Entry {
	spec, ok := eventCatalog[event]
	if !ok {
		spec = eventSpec{resource: "unknown", description: "%s"}
	}

	rec := Record{
		Actor:       actor,
		Action:      string(event),
		Severity:    spec.severity,
		Resource:    &ResourceRef{Type: spec.resource, Name: subject},
		Success:     true,
		Description: fmt.Sprintf(spec.description, subject),
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return r.Record(rec)
}

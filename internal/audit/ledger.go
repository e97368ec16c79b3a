// ledger.go implements the ordered, capacity-bounded in-memory audit store.
// Append is the single critical section: sequence-id assignment, head
// insertion, and tail eviction all happen under one mutex so concurrent
// appends can neither duplicate ids nor corrupt ordering.
package audit

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries the ledger retains before FIFO
// eviction kicks in.
const DefaultCapacity = 1000

// Ledger is an append-only, newest-first store of audit entries bounded to a
// maximum retained count. It is safe for concurrent use. Entries handed out
// by Snapshot and Query are shared pointers and must be treated as
// read-only.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	entries  []*Entry // newest first
}

// NewLedger creates a ledger retaining at most capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		entries:  make([]*Entry, 0, capacity),
	}
}

// Append materializes the record into an immutable entry: it assigns the
// next sequence id, stamps the current time (unless the record carries its
// own), derives category and severity when the caller left them empty,
// inserts the entry at the head, and evicts from the tail until the ledger
// is within capacity. The returned entry must not be mutated.
func (l *Ledger) Append(rec Record) *Entry {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	category := rec.Category
	if category == "" {
		category = CategoryFor(rec.Action)
	}
	severity := rec.Severity
	if severity == "" {
		severity = SeverityFor(rec.Action)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	entry := &Entry{
		ID:           l.nextID,
		Timestamp:    ts,
		Actor:        rec.Actor,
		Action:       rec.Action,
		Category:     category,
		Severity:     severity,
		Resource:     rec.Resource,
		Changes:      rec.Changes,
		Metadata:     rec.Metadata,
		Success:      rec.Success,
		ErrorMessage: rec.ErrorMessage,
		IPAddress:    rec.IPAddress,
		UserAgent:    rec.UserAgent,
		Description:  rec.Description,
	}

	l.entries = append([]*Entry{entry}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}

	return entry
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Capacity returns the maximum number of retained entries.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Snapshot returns a newest-first copy of the retained entries. The slice is
// owned by the caller; the entries it points to are shared and read-only.
func (l *Ledger) Snapshot() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// query.go implements filtered retrieval and aggregate statistics over the
// ledger.
package audit

import "time"

// DefaultQueryLimit caps query results when the caller does not supply a
// limit.
const DefaultQueryLimit = 100

// Filters narrows a ledger query. All fields are optional and combined with
// AND semantics. StartDate and EndDate are inclusive ISO-8601 timestamps
// (RFC 3339, or a bare YYYY-MM-DD date) compared lexicographically against
// each entry's UTC timestamp, matching the exported CSV representation. A
// malformed date fails closed: the query returns no entries rather than
// silently ignoring the filter.
type Filters struct {
	UserID    string
	Action    string
	Category  Category
	Severity  Severity
	StartDate string
	EndDate   string
	Limit     int
}

const dateOnlyFormat = "2006-01-02"

// validDateBound reports whether a filter date is well-formed. Empty bounds
// are valid (absent filter).
func validDateBound(s string) bool {
	if s == "" {
		return true
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	if _, err := time.Parse(dateOnlyFormat, s); err == nil {
		return true
	}
	return false
}

// Query returns the entries matching the filters, newest first, truncated to
// the limit (DefaultQueryLimit when unset) after filtering.
func (l *Ledger) Query(f Filters) []*Entry {
	if !validDateBound(f.StartDate) || !validDateBound(f.EndDate) {
		return []*Entry{}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	matched := make([]*Entry, 0)
	for _, e := range l.Snapshot() {
		if f.UserID != "" && e.Actor.UserID != f.UserID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Severity != "" && e.Severity != f.Severity {
			continue
		}
		ts := e.Timestamp.UTC().Format(time.RFC3339)
		if f.StartDate != "" && ts < f.StartDate {
			continue
		}
		if f.EndDate != "" && ts > f.EndDate && ts[:len(dateOnlyFormat)] != f.EndDate {
			continue
		}
		matched = append(matched, e)
		if len(matched) >= limit {
			break
		}
	}
	return matched
}

// Stats aggregates the current ledger contents.
type Stats struct {
	Total         int              `json:"total"`
	Last24Hours   int              `json:"last_24_hours"`
	Last7Days     int              `json:"last_7_days"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
	FailedActions int              `json:"failed_actions"`
}

// Stats computes aggregate counts over every retained entry. The severity
// and category maps are zero-filled so dashboards always see all buckets.
func (l *Ledger) Stats() Stats {
	now := time.Now().UTC()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := Stats{
		BySeverity: make(map[Severity]int, 4),
		ByCategory: make(map[Category]int, 8),
	}
	for _, s := range AllSeverities() {
		stats.BySeverity[s] = 0
	}
	for _, c := range AllCategories() {
		stats.ByCategory[c] = 0
	}

	for _, e := range l.Snapshot() {
		stats.Total++
		if !e.Timestamp.Before(dayAgo) {
			stats.Last24Hours++
		}
		if !e.Timestamp.Before(weekAgo) {
			stats.Last7Days++
		}
		stats.BySeverity[e.Severity]++
		stats.ByCategory[e.Category]++
		if !e.Success {
			stats.FailedActions++
		}
	}
	return stats
}

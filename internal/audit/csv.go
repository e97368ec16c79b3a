// csv.go serializes audit entries to the fixed 14-column CSV layout consumed
// by the compliance export endpoint and the archive job.
//
// The format is hand-rolled rather than built on encoding/csv on purpose:
// only the Description and Error Message columns are quote-wrapped, and
// internal double quotes are NOT escaped. That matches the byte output the
// platform has always produced and that downstream tooling ingests; an RFC
// 4180 writer would change the exported bytes. Known gap, kept as-is — see
// DESIGN.md.
package audit

import (
	"strings"
	"time"
)

// csvHeader is the fixed export header. Column order is a contract with
// downstream consumers; never reorder.
var csvHeader = []string{
	"Timestamp",
	"User",
	"Email",
	"Role",
	"Organization",
	"Action",
	"Category",
	"Severity",
	"Description",
	"Resource Type",
	"Resource ID",
	"Success",
	"IP Address",
	"Error Message",
}

// ExportCSV renders the entries in input order, one row each, under the
// fixed header.
func ExportCSV(entries []*Entry) string {
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteByte('\n')

	for _, e := range entries {
		resourceType := ""
		resourceID := ""
		if e.Resource != nil {
			resourceType = e.Resource.Type
			resourceID = e.Resource.ID
		}
		success := "Yes"
		if !e.Success {
			success = "No"
		}

		row := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Actor.Name,
			e.Actor.Email,
			string(e.Actor.Role),
			e.Actor.OrgName,
			e.Action,
			string(e.Category),
			string(e.Severity),
			`"` + e.Description + `"`,
			resourceType,
			resourceID,
			success,
			e.IPAddress,
			`"` + e.ErrorMessage + `"`,
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

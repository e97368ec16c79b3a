package audit

import "testing"

func TestCategoryFor(t *testing.T) {
	cases := []struct {
		action string
		want   Category
	}{
		{"user.create", CategoryUser},
		{"user.suspend", CategoryUser},
		{"auth.login", CategoryAuth},
		{"auth.login_failed", CategoryAuth},
		{"data.export", CategoryData},
		{"system.backup_start", CategorySystem},
		{"security.unauthorized_access", CategorySecurity},
		{"it.log_export", CategoryIT},
		{"admin.org_create", CategoryAdmin},
		{"finance.invoice_create", CategoryFinance},
		// Unknown prefixes and malformed tags fall back to system.
		{"inventory.adjust", CategorySystem},
		{"nodot", CategorySystem},
		{"", CategorySystem},
		// Prefix match is exact, not substring.
		{"users.create", CategorySystem},
		{".create", CategorySystem},
	}

	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			if got := CategoryFor(tc.action); got != tc.want {
				t.Errorf("CategoryFor(%q) = %q, want %q", tc.action, got, tc.want)
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		action string
		want   Severity
	}{
		// Critical: delete/suspend anywhere, or the exact unauthorized-access tag.
		{"user.delete", SeverityCritical},
		{"user.suspend", SeverityCritical},
		{"data.bulk_delete", SeverityCritical},
		{"security.unauthorized_access", SeverityCritical},
		// High: password/permission/export anywhere, or the exact failed-login tag.
		{"user.password_reset", SeverityHigh},
		{"user.permission_grant", SeverityHigh},
		{"data.export", SeverityHigh},
		{"it.log_export", SeverityHigh},
		{"auth.login_failed", SeverityHigh},
		// Medium: update/change/resolve.
		{"user.update", SeverityMedium},
		{"system.config_change", SeverityMedium},
		{"security.alert_resolve", SeverityMedium},
		// Everything else is low.
		{"user.create", SeverityLow},
		{"auth.login", SeverityLow},
		{"auth.logout", SeverityLow},
		{"data.patient_record_view", SeverityLow},
		{"", SeverityLow},
	}

	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			if got := SeverityFor(tc.action); got != tc.want {
				t.Errorf("SeverityFor(%q) = %q, want %q", tc.action, got, tc.want)
			}
		})
	}
}

// Earlier cascade rules must shadow later ones: an action matching both a
// critical and a medium predicate grades critical, and the password rule
// outranks the change rule.
func TestSeverityFor_CascadePrecedence(t *testing.T) {
	cases := []struct {
		action string
		want   Severity
	}{
		{"user.suspend_update", SeverityCritical},  // suspend beats update
		{"record.delete_change", SeverityCritical}, // delete beats change
		{"auth.password_change", SeverityHigh},     // password beats change
		{"data.export_update", SeverityHigh},       // export beats update
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.action); got != tc.want {
			t.Errorf("SeverityFor(%q) = %q, want %q", tc.action, got, tc.want)
		}
	}
}

// The security.unauthorized_access rule is exact-match: other security
// actions do not inherit criticality from it.
func TestSeverityFor_UnauthorizedAccessIsExactMatch(t *testing.T) {
	if got := SeverityFor("security.unauthorized_access_review"); got == SeverityCritical {
		t.Errorf("near-miss of unauthorized_access graded critical: %q", got)
	}
	if got := SeverityFor("auth.login_failed_twice"); got == SeverityHigh {
		t.Errorf("near-miss of login_failed graded high: %q", got)
	}
}

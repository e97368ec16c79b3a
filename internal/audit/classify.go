// classify.go derives category and severity from an action tag. Both
// derivations are expressed as explicit ordered tables evaluated
// top-to-bottom so the precedence contract is visible data, not control flow
// buried in conditionals. Several convenience recorders rely on these
// defaults rather than supplying a value, which makes the tables the source
// of truth for their classification — change them with care.
package audit

import "strings"

// categoryByPrefix maps the action tag's prefix (the part before the first
// dot) to a category. Unknown prefixes fall back to CategorySystem; an
// unrecognized action is never an error.
var categoryByPrefix = map[string]Category{
	"user":     CategoryUser,
	"auth":     CategoryAuth,
	"data":     CategoryData,
	"system":   CategorySystem,
	"security": CategorySecurity,
	"it":       CategoryIT,
	"admin":    CategoryAdmin,
	"finance":  CategoryFinance,
}

// CategoryFor derives the category for an action tag such as "user.suspend".
func CategoryFor(action string) Category {
	prefix := action
	if i := strings.IndexByte(action, '.'); i >= 0 {
		prefix = action[:i]
	}
	if c, ok := categoryByPrefix[prefix]; ok {
		return c
	}
	return CategorySystem
}

// severityRule pairs a predicate with the severity it assigns. Rules are
// evaluated in order and the first match wins, independent of category.
type severityRule struct {
	matches  func(action string) bool
	severity Severity
}

func containsAny(substrings ...string) func(string) bool {
	return func(action string) bool {
		for _, s := range substrings {
			if strings.Contains(action, s) {
				return true
			}
		}
		return false
	}
}

func equalsAny(actions ...string) func(string) bool {
	return func(action string) bool {
		for _, a := range actions {
			if action == a {
				return true
			}
		}
		return false
	}
}

func anyOf(predicates ...func(string) bool) func(string) bool {
	return func(action string) bool {
		for _, p := range predicates {
			if p(action) {
				return true
			}
		}
		return false
	}
}

// severityRules is the ordered severity cascade. Earlier rules shadow later
// ones: "user.suspend" is critical even though it would also satisfy no
// later rule, and "auth.password_change" is high because the password rule
// fires before the change rule is consulted.
var severityRules = []severityRule{
	{anyOf(containsAny("delete", "suspend"), equalsAny("security.unauthorized_access")), SeverityCritical},
	{anyOf(containsAny("password", "permission", "export"), equalsAny("auth.login_failed")), SeverityHigh},
	{containsAny("update", "change", "resolve"), SeverityMedium},
}

// SeverityFor derives the default severity for an action tag by walking the
// cascade; actions matching no rule are low.
func SeverityFor(action string) Severity {
	for _, rule := range severityRules {
		if rule.matches(action) {
			return rule.severity
		}
	}
	return SeverityLow
}

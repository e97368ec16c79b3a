// evaluator.go implements the pure access-evaluation functions over the
// policy tables: permission checks, role checks, plan feature gates, and
// resource quota checks.
package authz

import "fmt"

// HasPermission reports whether the actor may exercise the permission.
// Admin and command-center hold every permission regardless of the policy
// table. A nil actor or unknown role is denied.
func HasPermission(actor *Actor, permission Permission) bool {
	if actor == nil {
		return false
	}
	if actor.Role == RoleAdmin || actor.Role == RoleCommandCenter {
		return true
	}
	perms, ok := rolePermissions[actor.Role]
	if !ok {
		return false
	}
	return perms.Contains(permission)
}

// HasAnyPermission reports whether the actor holds at least one of the given
// permissions. An empty list is false.
func HasAnyPermission(actor *Actor, permissions ...Permission) bool {
	for _, p := range permissions {
		if HasPermission(actor, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the actor holds every given permission.
// An empty list is true.
func HasAllPermissions(actor *Actor, permissions ...Permission) bool {
	for _, p := range permissions {
		if !HasPermission(actor, p) {
			return false
		}
	}
	return true
}

// HasRole reports whether the actor's role is one of the given roles.
func HasRole(actor *Actor, roles ...Role) bool {
	if actor == nil {
		return false
	}
	for _, r := range roles {
		if actor.Role == r {
			return true
		}
	}
	return false
}

// CanAccessFeature reports whether the actor's current organization may use
// the feature. Headquarters organizations bypass plan gating entirely; for
// everyone else the current organization's plan (basic when absent) decides.
func CanAccessFeature(actor *Actor, feature Feature) bool {
	org := currentOrg(actor)
	if org == nil {
		return planFeatures[PlanBasic].Contains(feature)
	}
	if org.Type == OrgTypeHeadquarters {
		return true
	}
	plan := org.Plan
	features, ok := planFeatures[plan]
	if !ok {
		features = planFeatures[PlanBasic]
	}
	return features.Contains(feature)
}

// QuotaCheck is the structured result of CanCreateMore. When creation is
// denied, Message carries the exact wording shown to end users; callers must
// render it verbatim.
type QuotaCheck struct {
	Allowed bool   `json:"allowed"`
	Limit   int    `json:"limit"`
	Message string `json:"message,omitempty"`
}

// CanCreateMore checks whether the actor's current organization may create
// another resource of the given kind, given that it already has currentCount.
// Headquarters organizations are never limited. A limit of Unlimited (-1)
// always allows.
func CanCreateMore(actor *Actor, kind ResourceKind, currentCount int) QuotaCheck {
	org := currentOrg(actor)
	if org != nil && org.Type == OrgTypeHeadquarters {
		return QuotaCheck{Allowed: true, Limit: Unlimited}
	}

	plan := PlanBasic
	if org != nil && org.Plan != "" {
		plan = org.Plan
	}

	limit := QuotaLimit(plan, kind)
	if limit == Unlimited {
		return QuotaCheck{Allowed: true, Limit: Unlimited}
	}
	if currentCount < limit {
		return QuotaCheck{Allowed: true, Limit: limit}
	}
	return QuotaCheck{
		Allowed: false,
		Limit:   limit,
		Message: fmt.Sprintf("The %s plan is limited to %d %s. Upgrade your plan to add more.", plan, limit, kind),
	}
}

// CanAccessUserData reports whether the actor may read the target user's
// data: the user themselves, admin/command-center, or any clinical staff
// role.
//
// The clinical-staff grant is deliberately blanket — it does not verify that
// the target is a patient under that staff member's care. Narrowing it to a
// per-assignment check is an open product question; see DESIGN.md.
func CanAccessUserData(actor *Actor, targetUserID string) bool {
	if actor == nil {
		return false
	}
	if actor.ID == targetUserID {
		return true
	}
	if actor.Role == RoleAdmin || actor.Role == RoleCommandCenter {
		return true
	}
	_, clinical := clinicalRoles[actor.Role]
	return clinical
}

// UserPermissions returns the fixed permission set for the actor's role.
// Admin and command-center receive the union of every permission in the
// table. The returned set is a copy; mutating it does not affect the policy
// tables.
func UserPermissions(actor *Actor) PermissionSet {
	if actor == nil {
		return PermissionSet{}
	}
	if actor.Role == RoleAdmin || actor.Role == RoleCommandCenter {
		all := PermissionSet{}
		for _, perms := range rolePermissions {
			for p := range perms {
				all[p] = struct{}{}
			}
		}
		return all
	}
	perms, ok := rolePermissions[actor.Role]
	if !ok {
		return PermissionSet{}
	}
	out := make(PermissionSet, len(perms))
	for p := range perms {
		out[p] = struct{}{}
	}
	return out
}

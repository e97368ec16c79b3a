// Package authz implements the role- and plan-based authorization core for the
// Medcore platform. It holds the static policy tables (role → permission set,
// plan → feature set, plan → resource quota) and a set of pure evaluation
// functions over them.
//
// All evaluation functions are side-effect free, perform no I/O, and never
// panic: a nil actor, a missing organization, or an unknown role resolves to
// the conservative "denied" answer (or the basic plan) rather than an error.
// This lets call sites gate behaviour with a plain if-statement and makes the
// policy tables the single source of truth for who may do what.
//
// The tables are process-wide static configuration: they are populated at
// package init and must be treated as immutable for the process lifetime, so
// no locking is required anywhere in this package.
package authz

// OrgType classifies an organization. Headquarters organizations are operated
// by the platform itself and bypass all plan-based feature and quota
// restrictions.
type OrgType string

const (
	OrgTypeHeadquarters OrgType = "headquarters"
	OrgTypeHospital     OrgType = "hospital"
	OrgTypeClinic       OrgType = "clinic"
	OrgTypeLaboratory   OrgType = "laboratory"
	OrgTypePharmacy     OrgType = "pharmacy"
)

// Organization is the read-only view of a tenant this package evaluates
// against. It is supplied by the identity layer; authz never loads or mutates
// organizations itself.
type Organization struct {
	ID   string
	Name string
	Type OrgType
	Plan Plan
}

// Actor is the already-authenticated principal invoking an operation. The
// identity layer resolves the session into an Actor before any business code
// runs; this package only reads it.
//
// An actor belongs to one or more organizations and always acts in the
// context of CurrentOrg. Plan-based checks (features, quotas) are evaluated
// against CurrentOrg; a nil CurrentOrg falls back to the basic plan.
type Actor struct {
	ID            string
	Name          string
	Email         string
	Role          Role
	Organizations []Organization
	CurrentOrg    *Organization
}

// currentOrg returns the actor's current organization, or nil when either the
// actor or its organization context is absent.
func currentOrg(actor *Actor) *Organization {
	if actor == nil {
		return nil
	}
	return actor.CurrentOrg
}

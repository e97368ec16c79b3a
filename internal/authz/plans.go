// plans.go defines the plan tiers and the plan → feature-set and
// plan → resource-quota policy tables.
package authz

// Plan is a subscription tier. Feature availability and resource quotas are
// gated on the current organization's plan.
type Plan string

const (
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Feature is a named capability gated by plan tier, e.g. "lab" or
// "multi_tenancy".
type Feature string

const (
	FeatureAppointments   Feature = "appointments"
	FeatureBilling        Feature = "billing"
	FeaturePatientRecords Feature = "patient_records"
	FeatureDashboards     Feature = "dashboards"
	FeatureMessaging      Feature = "messaging"
	FeatureLab            Feature = "lab"
	FeaturePharmacy       Feature = "pharmacy"
	FeatureInventory      Feature = "inventory"
	FeatureReporting      Feature = "reporting"
	FeatureMultiTenancy   Feature = "multi_tenancy"
	FeatureRadiology      Feature = "radiology"
	FeatureDietetics      Feature = "dietetics"
	FeatureAuditExport    Feature = "audit_export"
	FeatureCommandCenter  Feature = "command_center"
)

// FeatureSet is a hash-set of features for O(1) membership tests.
type FeatureSet map[Feature]struct{}

func newFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

// Contains reports whether the set holds the feature.
func (s FeatureSet) Contains(f Feature) bool {
	_, ok := s[f]
	return ok
}

// planFeatures is the plan → feature-set policy table. The three sets are
// independent literals: enterprise ⊇ professional ⊇ basic is an expected
// invariant but is not derived structurally, so it is enforced by a test
// instead (TestPlanFeatureSupersets). Keep the tiers consistent when editing.
var planFeatures = map[Plan]FeatureSet{
	PlanBasic: newFeatureSet(
		FeatureAppointments,
		FeatureBilling,
		FeaturePatientRecords,
		FeatureDashboards,
		FeatureMessaging,
	),
	PlanProfessional: newFeatureSet(
		FeatureAppointments,
		FeatureBilling,
		FeaturePatientRecords,
		FeatureDashboards,
		FeatureMessaging,
		FeatureLab,
		FeaturePharmacy,
		FeatureInventory,
		FeatureReporting,
	),
	PlanEnterprise: newFeatureSet(
		FeatureAppointments,
		FeatureBilling,
		FeaturePatientRecords,
		FeatureDashboards,
		FeatureMessaging,
		FeatureLab,
		FeaturePharmacy,
		FeatureInventory,
		FeatureReporting,
		FeatureMultiTenancy,
		FeatureRadiology,
		FeatureDietetics,
		FeatureAuditExport,
		FeatureCommandCenter,
	),
}

// ResourceKind identifies a countable resource subject to plan quotas.
type ResourceKind string

const (
	ResourceDepartments ResourceKind = "departments"
	ResourceRooms       ResourceKind = "rooms"
	ResourceBeds        ResourceKind = "beds"
	ResourceStaff       ResourceKind = "staff"
)

// AllResourceKinds returns every quota-governed resource kind.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceDepartments, ResourceRooms, ResourceBeds, ResourceStaff}
}

// Unlimited is the quota value meaning "no limit".
const Unlimited = -1

// planQuotas is the plan × resource-kind → limit policy table.
var planQuotas = map[Plan]map[ResourceKind]int{
	PlanBasic: {
		ResourceDepartments: 5,
		ResourceRooms:       20,
		ResourceBeds:        50,
		ResourceStaff:       25,
	},
	PlanProfessional: {
		ResourceDepartments: 20,
		ResourceRooms:       100,
		ResourceBeds:        250,
		ResourceStaff:       150,
	},
	PlanEnterprise: {
		ResourceDepartments: Unlimited,
		ResourceRooms:       Unlimited,
		ResourceBeds:        Unlimited,
		ResourceStaff:       Unlimited,
	},
}

// QuotaLimit returns the limit for the given plan and resource kind. Unknown
// plans resolve to the basic tier; unknown resource kinds resolve to 0 so
// that a typo in a caller denies creation instead of silently allowing it.
func QuotaLimit(plan Plan, kind ResourceKind) int {
	quotas, ok := planQuotas[plan]
	if !ok {
		quotas = planQuotas[PlanBasic]
	}
	limit, ok := quotas[kind]
	if !ok {
		return 0
	}
	return limit
}

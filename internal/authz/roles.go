// roles.go defines the closed role enumeration and the role → permission-set
// policy table. Permission sets are backed by hash sets so membership checks
// are O(1) lookups.
package authz

// Role is a closed enumeration of the platform's user roles. Every actor holds
// exactly one role; roles are mutually exclusive.
type Role string

const (
	RolePatient          Role = "patient"
	RoleHealthcareWorker Role = "healthcare_worker"
	RoleNurse            Role = "nurse"
	RolePharmacist       Role = "pharmacist"
	RoleLabTechnician    Role = "lab_technician"
	RoleReceptionist     Role = "receptionist"
	RoleAccountant       Role = "accountant"
	RoleLogistics        Role = "logistics"
	RoleAdmin            Role = "admin"
	RoleCommandCenter    Role = "command_center"
	RoleRadiologist      Role = "radiologist"
	RoleDietician        Role = "dietician"
	RoleITSupport        Role = "it_support"
)

// AllRoles returns every defined role.
func AllRoles() []Role {
	return []Role{
		RolePatient,
		RoleHealthcareWorker,
		RoleNurse,
		RolePharmacist,
		RoleLabTechnician,
		RoleReceptionist,
		RoleAccountant,
		RoleLogistics,
		RoleAdmin,
		RoleCommandCenter,
		RoleRadiologist,
		RoleDietician,
		RoleITSupport,
	}
}

// Permission is a named capability such as "view_patient_list". Permissions
// are plain string tags so that UI code and the HTTP layer can pass them
// through without needing this package's constants, but all known permissions
// are declared here so typos are caught at the call site.
type Permission string

const (
	// Patient-facing
	PermViewOwnRecords   Permission = "view_own_records"
	PermBookAppointments Permission = "book_appointments"
	PermViewOwnInvoices  Permission = "view_own_invoices"

	// Clinical
	PermViewPatientList       Permission = "view_patient_list"
	PermViewPatientRecords    Permission = "view_patient_records"
	PermEditPatientRecords    Permission = "edit_patient_records"
	PermRegisterPatients      Permission = "register_patients"
	PermCreatePrescriptions   Permission = "create_prescriptions"
	PermViewPrescriptions     Permission = "view_prescriptions"
	PermDispenseMedications   Permission = "dispense_medications"
	PermAdministerMedications Permission = "administer_medications"
	PermOrderLabTests         Permission = "order_lab_tests"
	PermProcessLabTests       Permission = "process_lab_tests"
	PermViewLabResults        Permission = "view_lab_results"
	PermUploadLabResults      Permission = "upload_lab_results"
	PermViewImaging           Permission = "view_imaging"
	PermUploadImagingResults  Permission = "upload_imaging_results"
	PermManageDietPlans       Permission = "manage_diet_plans"

	// Scheduling
	PermViewAppointments   Permission = "view_appointments"
	PermManageAppointments Permission = "manage_appointments"

	// Finance
	PermManageBilling        Permission = "manage_billing"
	PermViewInvoices         Permission = "view_invoices"
	PermProcessPayments      Permission = "process_payments"
	PermViewFinancialReports Permission = "view_financial_reports"

	// Logistics
	PermManageInventory Permission = "manage_inventory"
	PermManageSupplies  Permission = "manage_supplies"

	// Platform / administration
	PermManageUsers           Permission = "manage_users"
	PermManageOrganizations   Permission = "manage_organizations"
	PermManageSettings        Permission = "manage_settings"
	PermViewAuditLogs         Permission = "view_audit_logs"
	PermExportData            Permission = "export_data"
	PermViewDashboards        Permission = "view_dashboards"
	PermResolveSecurityAlerts Permission = "resolve_security_alerts"
	PermManageITTickets       Permission = "manage_it_tickets"
	PermViewSystemHealth      Permission = "view_system_health"
)

// PermissionSet is a hash-set of permissions for O(1) membership tests.
type PermissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the set holds the permission.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// rolePermissions is the role → permission-set policy table. Admin and
// command-center are intentionally absent: they hold every permission through
// the universal bypass in HasPermission, so listing permissions here for them
// would create a second, drift-prone source of truth.
var rolePermissions = map[Role]PermissionSet{
	RolePatient: newPermissionSet(
		PermViewOwnRecords,
		PermBookAppointments,
		PermViewOwnInvoices,
	),
	RoleHealthcareWorker: newPermissionSet(
		PermViewPatientList,
		PermViewPatientRecords,
		PermEditPatientRecords,
		PermCreatePrescriptions,
		PermOrderLabTests,
		PermViewLabResults,
		PermViewImaging,
		PermViewAppointments,
		PermManageAppointments,
		PermViewDashboards,
	),
	RoleNurse: newPermissionSet(
		PermViewPatientList,
		PermViewPatientRecords,
		PermAdministerMedications,
		PermViewLabResults,
		PermViewAppointments,
		PermViewDashboards,
	),
	RolePharmacist: newPermissionSet(
		PermViewPatientList,
		PermViewPrescriptions,
		PermDispenseMedications,
		PermManageInventory,
		PermViewDashboards,
	),
	RoleLabTechnician: newPermissionSet(
		PermViewPatientList,
		PermProcessLabTests,
		PermViewLabResults,
		PermUploadLabResults,
		PermViewDashboards,
	),
	RoleReceptionist: newPermissionSet(
		PermViewPatientList,
		PermRegisterPatients,
		PermViewAppointments,
		PermManageAppointments,
		PermViewDashboards,
	),
	RoleAccountant: newPermissionSet(
		PermManageBilling,
		PermViewInvoices,
		PermProcessPayments,
		PermViewFinancialReports,
		PermViewDashboards,
	),
	RoleLogistics: newPermissionSet(
		PermManageInventory,
		PermManageSupplies,
		PermViewDashboards,
	),
	RoleRadiologist: newPermissionSet(
		PermViewPatientList,
		PermViewImaging,
		PermUploadImagingResults,
		PermViewLabResults,
		PermViewDashboards,
	),
	RoleDietician: newPermissionSet(
		PermViewPatientList,
		PermViewPatientRecords,
		PermManageDietPlans,
		PermViewDashboards,
	),
	RoleITSupport: newPermissionSet(
		PermManageITTickets,
		PermViewSystemHealth,
		PermViewAuditLogs,
		PermViewDashboards,
	),
}

// clinicalRoles are the staff roles granted blanket access to patient data by
// CanAccessUserData. See the note on that function before extending this set.
var clinicalRoles = map[Role]struct{}{
	RoleHealthcareWorker: {},
	RoleNurse:            {},
	RolePharmacist:       {},
	RoleLabTechnician:    {},
}

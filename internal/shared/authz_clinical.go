package shared

// Clinical permission codes. Object-level codes are dispatched by the
// resolver; the same codes appear in role bundles as model-level grants.
const (
	PermPatientsView               = "patients.view"
	PermPatientsChangeStatus       = "patients.change_status"
	PermPatientsChangePersonalData = "patients.change_personal_data"

	PermRecordsView   = "records.view"
	PermRecordsCreate = "records.create"
	PermRecordsEdit   = "records.edit"
	PermRecordsDelete = "records.delete"
)

// Operational permission codes, model-level only.
const (
	PermAuthzInspect = "authz.inspect"
)

// ClinicalScopes lists all permissions related to patient care.
func ClinicalScopes() []string {
	return []string{
		PermPatientsView,
		PermPatientsChangeStatus,
		PermPatientsChangePersonalData,
		PermRecordsView,
		PermRecordsCreate,
		PermRecordsEdit,
		PermRecordsDelete,
	}
}

// OpsScopes lists all operational permissions.
func OpsScopes() []string {
	return []string{PermAuthzInspect}
}

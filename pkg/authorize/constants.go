package authorize

type Action string
type Resource string
type Role string
type PolicyEffect string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionList    Action = "list"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionPay     Action = "pay"

	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionList: {}, ActionUpdate: {}, ActionDelete: {},
	ActionApprove: {}, ActionPay: {},
}

const (
	ResourcePatient     Resource = "patient"
	ResourceAppointment Resource = "appointment"
	ResourceFee         Resource = "fee"
	// ResourceFeeStats is the revenue ledger, kept apart from single fees so
	// patients reading their own fees never reach the clinic totals.
	ResourceFeeStats   Resource = "fee_stats"
	ResourceDiagnostic Resource = "diagnostic"

	WildcardResource Resource = "*"
)

var KnownResources = map[Resource]struct{}{
	ResourcePatient: {}, ResourceAppointment: {}, ResourceFee: {}, ResourceFeeStats: {}, ResourceDiagnostic: {},
}

// Roles double as casbin policy subjects; they match the role column of the
// identities table.
const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

var KnownRoles = map[Role]struct{}{
	RoleDoctor:  {},
	RolePatient: {},
}

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// PermissionPolicy is one p line: role, resource, action, effect.
type PermissionPolicy struct {
	Subject Role
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}

func IsKnownRole(r string) bool {
	_, ok := KnownRoles[Role(r)]
	return ok
}

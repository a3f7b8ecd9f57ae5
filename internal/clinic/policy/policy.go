// Package policy decides what each role may do. It is a pure function of the
// role, the action and the ownership facts supplied by the caller; it never
// touches storage.
package policy

import "github.com/aussiebroadwan/clinic/internal/clinic/domain"

// Action is something a principal asks to do.
type Action string

const (
	ViewOwn             Action = "view_own"
	ViewAllPatients     Action = "view_all_patients"
	EditPatient         Action = "edit_patient"
	DeletePatient       Action = "delete_patient"
	ManageCategories    Action = "manage_categories"
	ViewAllAppointments Action = "view_all_appointments"
	BookAppointment     Action = "book_appointment"
	CancelAppointment   Action = "cancel_appointment"
	ManageUsers         Action = "manage_users"
	DeleteUser          Action = "delete_user"
	ChangeRole          Action = "change_role"
	ViewSuperAdminPanel Action = "view_super_admin_panel"
)

// Actions lists every action known to the policy.
var Actions = []Action{
	ViewOwn,
	ViewAllPatients,
	EditPatient,
	DeletePatient,
	ManageCategories,
	ViewAllAppointments,
	BookAppointment,
	CancelAppointment,
	ManageUsers,
	DeleteUser,
	ChangeRole,
	ViewSuperAdminPanel,
}

// Decision is the outcome of Authorize.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) Allowed() bool { return bool(d) }

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Ownership carries the facts needed for self-scoped actions.
type Ownership struct {
	// ActorPatientID is the patient record linked to the acting user.
	ActorPatientID string
	// OwnerPatientID is the patient the targeted resource belongs to.
	OwnerPatientID string
	// TargetRole is the role of the account being managed, if any.
	TargetRole domain.Role
}

// IsSelf reports whether the resource belongs to the actor. Two empty ids
// never match.
func (o Ownership) IsSelf() bool {
	return o.ActorPatientID != "" && o.ActorPatientID == o.OwnerPatientID
}

// Authorize returns Allow or Deny. Unknown roles and unknown actions are
// denied.
func Authorize(role domain.Role, action Action, own Ownership) Decision {
	switch role {
	case domain.RoleSuperAdmin:
		return superAdmin(action)
	case domain.RoleAdmin:
		return admin(action, own)
	case domain.RoleUser:
		return user(action, own)
	default:
		return Deny
	}
}

func superAdmin(action Action) Decision {
	for _, a := range Actions {
		if a == action {
			return Allow
		}
	}
	return Deny
}

func admin(action Action, own Ownership) Decision {
	switch action {
	case ViewOwn, ViewAllPatients, EditPatient, DeletePatient, ManageCategories,
		ViewAllAppointments, BookAppointment, CancelAppointment:
		return Allow
	case ManageUsers:
		// Admins manage patient accounts only.
		return Decision(own.TargetRole == "" || own.TargetRole == domain.RoleUser)
	default:
		return Deny
	}
}

func user(action Action, own Ownership) Decision {
	switch action {
	case ViewOwn, BookAppointment, CancelAppointment:
		return Decision(own.IsSelf())
	default:
		return Deny
	}
}

package permissions

import (
	"slices"

	"checkin/internal/model"
)

// Drift is one stored field that disagreed with the role-derived value.
type Drift struct {
	Field    string `json:"field"`
	Stored   any    `json:"stored"`
	Expected any    `json:"expected"`
}

// Apply overwrites u's derived fields with caps.
func Apply(u model.User, caps Capabilities) model.User {
	u.Role = string(caps.Role)
	u.UserType = caps.UserType
	u.Permissions = caps.Strings()
	u.CanEditAttendance = caps.CanEditAttendance
	u.CanViewAttendance = caps.CanViewAttendance
	u.CanManageUsers = caps.CanManageUsers
	u.CanAccessReports = caps.CanAccessReports
	u.CanRegister = caps.CanRegister
	u.IsActive = u.Active
	return u
}

// Reconcile recomputes u's derived fields from its role and reports every field
// that had drifted. An unknown role is rewritten to RoleUser. Active is
// authoritative over IsActive.
func Reconcile(u model.User) (model.User, []Drift) {
	fixed := Apply(u, Resolve(u.Role))

	var drift []Drift
	add := func(field string, stored, expected any) {
		drift = append(drift, Drift{Field: field, Stored: stored, Expected: expected})
	}
	if u.Role != fixed.Role {
		add("role", u.Role, fixed.Role)
	}
	if u.UserType != fixed.UserType {
		add("userType", u.UserType, fixed.UserType)
	}
	if !samePermissions(u.Permissions, fixed.Permissions) {
		add("permissions", u.Permissions, fixed.Permissions)
	}
	if u.CanEditAttendance != fixed.CanEditAttendance {
		add("canEditAttendance", u.CanEditAttendance, fixed.CanEditAttendance)
	}
	if u.CanViewAttendance != fixed.CanViewAttendance {
		add("canViewAttendance", u.CanViewAttendance, fixed.CanViewAttendance)
	}
	if u.CanManageUsers != fixed.CanManageUsers {
		add("canManageUsers", u.CanManageUsers, fixed.CanManageUsers)
	}
	if u.CanAccessReports != fixed.CanAccessReports {
		add("canAccessReports", u.CanAccessReports, fixed.CanAccessReports)
	}
	if u.CanRegister != fixed.CanRegister {
		add("canRegister", u.CanRegister, fixed.CanRegister)
	}
	if u.IsActive != fixed.IsActive {
		add("isActive", u.IsActive, fixed.IsActive)
	}
	return fixed, drift
}

// samePermissions compares as sets; stored order is not significant.
func samePermissions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

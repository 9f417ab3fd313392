// Package permissions derives every capability of an account from its role.
// Stored permission lists and capability flags are a cache of Resolve's output.
package permissions

import (
	"slices"
	"strings"
)

// Role is an account role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleEditor    Role = "editor"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Roles lists every known role from most to least privileged.
var Roles = []Role{RoleAdmin, RoleEditor, RoleModerator, RoleUser}

// Permission names a screen or action.
type Permission string

const (
	Dashboard      Permission = "dashboard"
	Register       Permission = "register"
	Attendance     Permission = "attendance"
	Letters        Permission = "letters"
	RegisteredList Permission = "presencadecadastrados"
	EditAttendance Permission = "edit_attendance"
	UserManagement Permission = "user_management"
	Reports        Permission = "reports"
	Settings       Permission = "settings"
	AuditLogs      Permission = "audit_logs"
	Monitoring     Permission = "monitoring"
)

// Capabilities is the resolved access of a role.
type Capabilities struct {
	Role              Role         `json:"role"`
	UserType          string       `json:"userType"`
	Permissions       []Permission `json:"permissions"`
	CanEditAttendance bool         `json:"canEditAttendance"`
	CanViewAttendance bool         `json:"canViewAttendance"`
	CanManageUsers    bool         `json:"canManageUsers"`
	CanAccessReports  bool         `json:"canAccessReports"`
	CanRegister       bool         `json:"canRegister"`
}

// Has reports whether p is granted.
func (c Capabilities) Has(p Permission) bool {
	return slices.Contains(c.Permissions, p)
}

// Strings returns the permission names.
func (c Capabilities) Strings() []string {
	out := make([]string, len(c.Permissions))
	for i, p := range c.Permissions {
		out[i] = string(p)
	}
	return out
}

var table = map[Role]struct {
	userType string
	perms    []Permission
}{
	RoleAdmin: {"ADMIN_USER", []Permission{
		Dashboard, Register, Attendance, Letters, RegisteredList, EditAttendance,
		UserManagement, Reports, Settings, AuditLogs, Monitoring,
	}},
	RoleEditor: {"EDITOR_USER", []Permission{
		Dashboard, Register, Attendance, Letters, RegisteredList, EditAttendance, Reports,
	}},
	RoleModerator: {"MODERATOR_USER", []Permission{
		Dashboard, Register, Attendance, Letters, RegisteredList, Reports,
	}},
	RoleUser: {"STANDARD_USER", []Permission{
		Dashboard, Register, Attendance, RegisteredList,
	}},
}

// ParseRole normalizes s to a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := table[r]
	return r, ok
}

// Resolve returns the capabilities of role. Unknown roles resolve to RoleUser.
func Resolve(role string) Capabilities {
	r, ok := ParseRole(role)
	if !ok {
		r = RoleUser
	}
	entry := table[r]
	caps := Capabilities{
		Role:        r,
		UserType:    entry.userType,
		Permissions: slices.Clone(entry.perms),
	}
	caps.CanEditAttendance = caps.Has(EditAttendance)
	caps.CanViewAttendance = caps.Has(Attendance)
	caps.CanManageUsers = caps.Has(UserManagement)
	caps.CanAccessReports = caps.Has(Reports)
	caps.CanRegister = caps.Has(Register)
	return caps
}

// None is the capability set of an inactive or unknown account.
func None() Capabilities {
	return Capabilities{Permissions: []Permission{}}
}

// DefaultPrivileged are the super-accounts allowed into account management.
var DefaultPrivileged = []string{"admin@ipda.org.br", "marciodesk@ipda.app.br"}

// Gate is the closed allow-list of privileged identities. It does not look at roles.
type Gate struct {
	allow map[string]struct{}
}

// NewGate builds a gate over emails. Comparison ignores case and surrounding space.
func NewGate(emails []string) *Gate {
	g := &Gate{allow: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			g.allow[e] = struct{}{}
		}
	}
	return g
}

// IsPrivileged reports whether email is on the allow-list.
func (g *Gate) IsPrivileged(email string) bool {
	if g == nil {
		return false
	}
	_, ok := g.allow[normalizeEmail(email)]
	return ok
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/model"
)

func TestResolveIsTotalAndConsistent(t *testing.T) {
	for _, role := range Roles {
		t.Run(string(role), func(t *testing.T) {
			caps := Resolve(string(role))
			require.NotEmpty(t, caps.Permissions)
			assert.Equal(t, role, caps.Role)
			assert.NotEmpty(t, caps.UserType)

			assert.Equal(t, caps.Has(EditAttendance), caps.CanEditAttendance)
			assert.Equal(t, caps.Has(Attendance), caps.CanViewAttendance)
			assert.Equal(t, caps.Has(UserManagement), caps.CanManageUsers)
			assert.Equal(t, caps.Has(Reports), caps.CanAccessReports)
			assert.Equal(t, caps.Has(Register), caps.CanRegister)
			if caps.CanManageUsers {
				assert.Equal(t, RoleAdmin, role)
			}
			assert.Equal(t, caps, Resolve(string(role)))
		})
	}
}

func TestResolveTable(t *testing.T) {
	admin := Resolve("admin")
	assert.True(t, admin.CanManageUsers)
	assert.True(t, admin.Has(Settings))
	assert.Len(t, admin.Permissions, 11)

	editor := Resolve("editor")
	assert.True(t, editor.CanEditAttendance)
	assert.True(t, editor.CanAccessReports)
	assert.False(t, editor.CanManageUsers)

	moderator := Resolve("moderator")
	assert.False(t, moderator.CanEditAttendance)
	assert.True(t, moderator.CanAccessReports)
	assert.True(t, moderator.CanRegister)

	user := Resolve("user")
	assert.True(t, user.CanViewAttendance)
	assert.True(t, user.CanRegister)
	assert.False(t, user.CanEditAttendance)
	assert.False(t, user.CanAccessReports)
	assert.False(t, user.CanManageUsers)
}

func TestResolveUnknownRoleIsMostRestrictive(t *testing.T) {
	user := Resolve("user")
	for _, role := range []string{"", "superadmin", "root", "ADMIN_USER"} {
		assert.Equal(t, user, Resolve(role), role)
	}
	assert.Equal(t, RoleAdmin, Resolve(" Admin ").Role)
}

func TestResolveReturnsIndependentSlices(t *testing.T) {
	a := Resolve("admin")
	a.Permissions[0] = "tampered"
	assert.Equal(t, Dashboard, Resolve("admin").Permissions[0])
}

func TestGate(t *testing.T) {
	g := NewGate(DefaultPrivileged)
	assert.True(t, g.IsPrivileged("admin@ipda.org.br"))
	assert.True(t, g.IsPrivileged(" MarcioDesk@ipda.app.br "))
	assert.False(t, g.IsPrivileged("cadastro@ipda.app.br"))
	assert.False(t, g.IsPrivileged(""))

	var nilGate *Gate
	assert.False(t, nilGate.IsPrivileged("admin@ipda.org.br"))
	assert.False(t, NewGate(nil).IsPrivileged("admin@ipda.org.br"))
}

func TestReconcile(t *testing.T) {
	t.Run("consistent profile has no drift", func(t *testing.T) {
		u := Apply(model.User{Email: "a@example.org", Active: true}, Resolve("editor"))
		fixed, drift := Reconcile(u)
		assert.Empty(t, drift)
		assert.Equal(t, u, fixed)
	})

	t.Run("permission order is not drift", func(t *testing.T) {
		u := Apply(model.User{Active: true}, Resolve("user"))
		u.Permissions = []string{"presencadecadastrados", "attendance", "register", "dashboard"}
		_, drift := Reconcile(u)
		assert.Empty(t, drift)
	})

	t.Run("stale flags are corrected", func(t *testing.T) {
		u := Apply(model.User{Active: true, IsActive: false}, Resolve("moderator"))
		u.CanEditAttendance = true
		u.Permissions = append(u.Permissions, "edit_attendance")
		u.IsActive = false

		fixed, drift := Reconcile(u)
		fields := make([]string, 0, len(drift))
		for _, d := range drift {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"permissions", "canEditAttendance", "isActive"}, fields)
		assert.False(t, fixed.CanEditAttendance)
		assert.True(t, fixed.IsActive)
		assert.Equal(t, Resolve("moderator").Strings(), fixed.Permissions)
	})

	t.Run("unknown role collapses to user", func(t *testing.T) {
		u := model.User{Role: "superuser", CanManageUsers: true, Active: true, IsActive: true}
		fixed, drift := Reconcile(u)
		assert.Equal(t, string(RoleUser), fixed.Role)
		assert.False(t, fixed.CanManageUsers)
		require.NotEmpty(t, drift)
		assert.Equal(t, "role", drift[0].Field)
	})
}

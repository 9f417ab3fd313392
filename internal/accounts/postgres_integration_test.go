//go:build integration

package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/permissions"
	"checkin/internal/testutil/containers"
)

func TestPostgresStoreIntegration(t *testing.T) {
	db := containers.NewPostgres(t)
	st := NewPostgresStore(db.Client)
	svc := NewService(st, permissions.NewGate(permissions.DefaultPrivileged), nil, nil)
	ctx := t.Context()

	u, err := svc.EnsureUser(ctx, "Ana@Example.org", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "user", u.Role)

	again, err := svc.EnsureUser(ctx, "ana@example.org", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID, "email lookups are case-insensitive")

	got, err := st.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Permissions, got.Permissions)
	assert.True(t, got.Active)

	updated, err := svc.SetRole(ctx, "admin@ipda.org.br", u.ID, "editor")
	require.NoError(t, err)
	assert.True(t, updated.CanEditAttendance)

	caps, err := svc.Capabilities(ctx, "ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, permissions.RoleEditor, caps.Role)

	_, err = db.Client.ExecContext(ctx, `UPDATE users SET can_manage_users = true WHERE id = $1`, u.ID)
	require.NoError(t, err)
	fixed, err := svc.ReconcileAll(ctx, "admin@ipda.org.br")
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, u.ID, fixed[0].UserID)

	reloaded, err := st.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.CanManageUsers)

	users, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = st.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

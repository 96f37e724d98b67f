package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/pkg/cryptox"
)

func TestBootstrapSeedsEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &BootstrapService{
		Store:         st,
		AdminUsername: "admin",
		AdminPassword: "changeme1",
		AdminName:     "Portal Admin",
	}

	require.NoError(t, svc.Run(ctx))

	admin, err := st.Users().GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)
	require.True(t, admin.MustChangePassword)
	require.NoError(t, cryptox.VerifyPassword("changeme1", admin.PasswordHash))

	settings, err := st.Settings().ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &BootstrapService{Store: st, AdminUsername: "admin", AdminPassword: "changeme1"}

	require.NoError(t, svc.Run(ctx))

	// Second run with different credentials must not touch anything.
	svc.AdminPassword = "other-pass"
	require.NoError(t, svc.Run(ctx))

	admin, err := st.Users().GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, cryptox.VerifyPassword("changeme1", admin.PasswordHash))
}

func TestBootstrapSkipsWhenUsersExist(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "existing", "hunter2!")

	// No admin creds configured: fine, nothing to seed.
	svc := &BootstrapService{Store: st}
	require.NoError(t, svc.Run(ctx))
}

func TestBootstrapRequiresCredentialsOnEmptyDatabase(t *testing.T) {
	svc := &BootstrapService{Store: newTestStore(t)}
	require.Error(t, svc.Run(context.Background()))
}

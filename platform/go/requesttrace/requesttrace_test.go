package requesttrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
)

func TestIntoContextAndFromContext(t *testing.T) {
	audit := AuditInfo{ActorKind: ActorKindAdmin, ActorID: ptr("admin-123"), RequestID: "req-abc"}

	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	require.Equal(t, ActorKindSystem, FromContextOrSystem(context.Background()).ActorKind)
}

func TestFromCredentials(t *testing.T) {
	creds := &platformauth.UserCredentials{ID: "admin-456", Email: "ops@marmoreal.stone", IsAdmin: true}

	audit, err := FromCredentials(creds, "req-xyz")
	require.NoError(t, err)
	require.Equal(t, ActorKindAdmin, audit.ActorKind)
	require.NotNil(t, audit.ActorID)
	require.Equal(t, "admin-456", *audit.ActorID)
	require.Equal(t, "ops@marmoreal.stone", audit.ActorEmail)
	require.Equal(t, "req-xyz", audit.RequestID)
	require.Equal(t, "admin:admin-456", audit.Actor())
}

func TestFromCredentialsMissingUser(t *testing.T) {
	_, err := FromCredentials(&platformauth.UserCredentials{}, "req-1")
	require.Error(t, err)

	_, err = FromCredentials(nil, "req-1")
	require.Error(t, err)
}

func TestAnonymous(t *testing.T) {
	audit := Anonymous("req-anon")
	require.Equal(t, ActorKindAnonymous, audit.ActorKind)
	require.Nil(t, audit.ActorID)
	require.Equal(t, "req-anon", audit.RequestID)
	require.Equal(t, "anonymous", audit.Actor())
}

func ptr[T any](v T) *T { return &v }

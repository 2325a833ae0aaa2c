package contracts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	spec, err := Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, spec.Components.SecuritySchemes, "bearerAuth")

	for _, path := range []string{
		"/api/v1/products",
		"/api/v1/admin/products/{productId}",
		"/api/v1/admin/media",
		"/api/v1/admin/settings",
		"/api/v1/auth/login",
	} {
		require.NotNil(t, spec.Paths.Find(path), path)
	}
}

func TestLoadReturnsIndependentDocuments(t *testing.T) {
	t.Parallel()

	first, err := Load(context.Background())
	require.NoError(t, err)
	first.Info.Title = "changed"

	second, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Stone CMS API", second.Info.Title)
}

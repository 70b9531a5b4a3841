//go:build integration

package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regbridge/internal/registry"
	"regbridge/pkg/platform/sentinel"
	"regbridge/pkg/testutil/containers"
)

func TestPostgresStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	t.Cleanup(func() {
		pg.Pool.Close()
		_ = pg.Container.Terminate(t.Context())
	})

	store := registry.NewPostgresFromPool(pg.Pool)
	require.NoError(t, store.EnsureSchema(t.Context()))

	t.Run("upsert and find", func(t *testing.T) {
		account := registry.Account{AccountID: "GUPSERT", Status: registry.StatusActive}
		require.NoError(t, store.Upsert(t.Context(), account))

		found, err := store.FindByAccountID(t.Context(), "GUPSERT")
		require.NoError(t, err)
		assert.Equal(t, "GUPSERT", found.AccountID)
		assert.Equal(t, registry.StatusActive, found.Status)
		assert.False(t, found.CreatedAt.IsZero())
	})

	t.Run("upsert updates status", func(t *testing.T) {
		account := registry.Account{AccountID: "GREVOKE", Status: registry.StatusActive}
		require.NoError(t, store.Upsert(t.Context(), account))

		account.Status = registry.StatusRevoked
		require.NoError(t, store.Upsert(t.Context(), account))

		found, err := store.FindByAccountID(t.Context(), "GREVOKE")
		require.NoError(t, err)
		assert.Equal(t, registry.StatusRevoked, found.Status)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := store.FindByAccountID(t.Context(), "GMISSING")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

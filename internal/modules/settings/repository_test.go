package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositorySnapshotRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)

	_, found, err := repo.Load()
	require.NoError(t, err)
	assert.False(t, found)

	tree := map[string]interface{}{
		"theme": "dark",
		"budget": map[string]interface{}{
			"monthly": 500.0,
		},
	}
	require.NoError(t, repo.Save(tree))

	loaded, found, err := repo.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dark", loaded["theme"])
	budget, ok := loaded["budget"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 500.0, budget["monthly"])

	// Saving again overwrites the single snapshot row.
	require.NoError(t, repo.Save(map[string]interface{}{"theme": "light"}))
	loaded, _, err = repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "light", loaded["theme"])
	assert.NotContains(t, loaded, "budget")

	require.NoError(t, repo.Clear())
	_, found, err = repo.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepositoryMeta(t *testing.T) {
	repo := setupTestRepo(t)

	_, found, err := repo.GetMeta("last_remote_sync")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetMeta("last_remote_sync", "2026-08-01T00:00:00Z"))
	require.NoError(t, repo.SetMeta("last_remote_sync", "2026-08-02T00:00:00Z"))

	v, found, err := repo.GetMeta("last_remote_sync")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2026-08-02T00:00:00Z", v)
}

package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE exchangerate (pair TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE INDEX idx_exchangerate_expires ON exchangerate(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

type testPayload struct {
	Rate float64 `json:"rate"`
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("exchangerate", "USD->980", testPayload{Rate: 41.5}, time.Hour))

	data, err := repo.GetIfFresh("exchangerate", "USD->980")
	require.NoError(t, err)
	require.NotNil(t, data)

	var p testPayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, 41.5, p.Rate)
}

func TestGetIfFreshMissesExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("exchangerate", "EUR->980", testPayload{Rate: 45}, -time.Minute))

	data, err := repo.GetIfFresh("exchangerate", "EUR->980")
	require.NoError(t, err)
	assert.Nil(t, data)

	// Stale data is still reachable via Get (fallback path).
	data, err = repo.Get("exchangerate", "EUR->980")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestGetMissingKey(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	data, err := repo.Get("exchangerate", "nope")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestInvalidTableRejected(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Store("settings; DROP TABLE exchangerate", "k", testPayload{}, time.Hour)
	assert.Error(t, err)

	_, err = repo.GetIfFresh("bogus", "k")
	assert.Error(t, err)
}

func TestDeleteExpiredHonorsGrace(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	// Expired long before the grace window: deleted.
	require.NoError(t, repo.Store("exchangerate", "old", testPayload{}, -2*CleanupGrace))
	// Expired recently: kept as fallback.
	require.NoError(t, repo.Store("exchangerate", "recent", testPayload{}, -time.Minute))
	// Fresh: kept.
	require.NoError(t, repo.Store("exchangerate", "fresh", testPayload{}, time.Hour))

	n, err := repo.DeleteExpired("exchangerate", CleanupGrace)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	data, err := repo.Get("exchangerate", "recent")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, repo.Store("exchangerate", "old", testPayload{}, -2*CleanupGrace))

	job := NewCleanupJob(repo, testLogger())
	require.NoError(t, job.Run())

	data, err := repo.Get("exchangerate", "old")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, "client_data_cleanup", job.Name())
}

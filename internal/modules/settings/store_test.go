package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE settings_snapshot (id INTEGER PRIMARY KEY CHECK (id = 1), data BLOB NOT NULL, updated_at INTEGER NOT NULL);
CREATE TABLE settings_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL);
`

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewRepository(db)
}

// fakeRemote records PATCH calls and serves a canned preferences tree.
type fakeRemote struct {
	mu       sync.Mutex
	prefs    map[string]interface{}
	getErr   error
	patchErr error
	patches  []map[string]interface{}
}

func (f *fakeRemote) GetPreferences(ctx context.Context) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.prefs, nil
}

func (f *fakeRemote) PatchPreferences(ctx context.Context, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, updates)
	return f.patchErr
}

func (f *fakeRemote) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeRemote) lastPatch() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patches) == 0 {
		return nil
	}
	return f.patches[len(f.patches)-1]
}

func (f *fakeRemote) setPatchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchErr = err
}

func newTestStore(t *testing.T, remote *fakeRemote, debounce time.Duration) (*Store, *Repository) {
	repo := setupTestRepo(t)
	store := NewStore(repo, remote, nil, debounce, time.Second, zerolog.Nop())
	t.Cleanup(store.Close)
	return store, repo
}

func TestInitializeLocalFirst(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("network down")}
	store, repo := newTestStore(t, remote, time.Hour)

	require.NoError(t, repo.Save(map[string]interface{}{"theme": "dark"}))

	require.NoError(t, store.Initialize(context.Background()))
	v, ok := store.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestInitializeFirstRunFetchesRemote(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{"lang": "uk"}}
	store, repo := newTestStore(t, remote, time.Hour)

	require.NoError(t, store.Initialize(context.Background()))
	v, ok := store.Get("lang")
	require.True(t, ok)
	assert.Equal(t, "uk", v)

	// The fetched tree was persisted locally.
	tree, found, err := repo.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "uk", tree["lang"])
}

func TestInitializeDegradesToEmptyTree(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("timeout")}
	store, _ := newTestStore(t, remote, time.Hour)

	require.NoError(t, store.Initialize(context.Background()))
	assert.Empty(t, store.All())
}

func TestLastRemoteSyncRecordedOnFirstRun(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{"lang": "uk"}}
	store, _ := newTestStore(t, remote, time.Hour)

	_, ok := store.LastRemoteSync()
	assert.False(t, ok)

	require.NoError(t, store.Initialize(context.Background()))

	syncedAt, ok := store.LastRemoteSync()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), syncedAt, time.Minute)
}

func TestLastRemoteSyncAbsentAfterDegradedInit(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("timeout")}
	store, _ := newTestStore(t, remote, time.Hour)

	require.NoError(t, store.Initialize(context.Background()))
	_, ok := store.LastRemoteSync()
	assert.False(t, ok)
}

func TestInitializeAuthFailureIsFatal(t *testing.T) {
	remote := &fakeRemote{getErr: fmt.Errorf("get preferences: %w", domain.ErrUnauthorized)}
	store, _ := newTestStore(t, remote, time.Hour)

	err := store.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestReconcileLocalWins(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{"theme": "light", "lang": "uk"}}
	store, repo := newTestStore(t, remote, time.Hour)

	require.NoError(t, repo.Save(map[string]interface{}{"theme": "dark"}))
	require.NoError(t, store.Initialize(context.Background()))

	// Background reconcile fills in remote-only keys.
	require.Eventually(t, func() bool {
		_, ok := store.Get("lang")
		return ok
	}, time.Second, 5*time.Millisecond)

	v, _ := store.Get("theme")
	assert.Equal(t, "dark", v, "local value wins the merge")
}

func TestDebounceCoalescesUpdates(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{}}
	store, _ := newTestStore(t, remote, 30*time.Millisecond)
	require.NoError(t, store.Initialize(context.Background()))

	require.NoError(t, store.Update("a", 1.0))
	require.NoError(t, store.Update("b", 2.0))
	require.NoError(t, store.Update("a", 3.0))

	require.Eventually(t, func() bool {
		return remote.patchCount() > 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, remote.patchCount(), "burst of updates collapses into one PATCH")
	patch := remote.lastPatch()
	assert.Equal(t, 3.0, patch["a"], "PATCH carries the latest value")
	assert.Equal(t, 2.0, patch["b"])
}

func TestFailedFlushRetainsPending(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{}, patchErr: errors.New("503")}
	store, _ := newTestStore(t, remote, 10*time.Millisecond)
	require.NoError(t, store.Initialize(context.Background()))

	require.NoError(t, store.Update("budget", 500.0))

	require.Eventually(t, func() bool {
		return remote.patchCount() >= 1
	}, time.Second, 5*time.Millisecond)

	// Remote recovers; the retained key flushes on the retry cycle.
	remote.setPatchErr(nil)
	require.Eventually(t, func() bool {
		last := remote.lastPatch()
		return remote.patchCount() >= 2 && last["budget"] == 500.0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUpdateNested(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{}}
	store, _ := newTestStore(t, remote, 20*time.Millisecond)
	require.NoError(t, store.Initialize(context.Background()))

	require.NoError(t, store.UpdateNested([]string{"budget", "monthly"}, 500.0))

	all := store.All()
	budget, ok := all["budget"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 500.0, budget["monthly"])

	// The whole top-level subtree syncs remotely.
	require.Eventually(t, func() bool {
		return remote.patchCount() > 0
	}, time.Second, 5*time.Millisecond)
	patched, ok := remote.lastPatch()["budget"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 500.0, patched["monthly"])

	assert.Error(t, store.UpdateNested(nil, 1))
}

func TestResetClearsEverything(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{}}
	store, repo := newTestStore(t, remote, time.Hour)
	require.NoError(t, store.Initialize(context.Background()))

	require.NoError(t, store.Update("theme", "dark"))
	require.NoError(t, store.Reset())

	assert.Empty(t, store.All())
	_, found, err := repo.Load()
	require.NoError(t, err)
	assert.False(t, found)

	// The pending buffer was dropped with everything else.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, remote.patchCount())
}

func TestUpdateEmitsSettingsChanged(t *testing.T) {
	remote := &fakeRemote{prefs: map[string]interface{}{}}
	repo := setupTestRepo(t)

	bus := events.NewBus(zerolog.Nop())
	mgr := events.NewManager(bus, zerolog.Nop())
	store := NewStore(repo, remote, mgr, time.Hour, time.Second, zerolog.Nop())
	t.Cleanup(store.Close)
	require.NoError(t, store.Initialize(context.Background()))

	var got *events.Event
	bus.Subscribe(events.SettingsChanged, func(e *events.Event) { got = e })

	require.NoError(t, store.Update("theme", "dark"))
	require.NotNil(t, got)
	data, ok := got.Data.(*events.SettingsChangedData)
	require.True(t, ok)
	assert.Equal(t, "theme", data.Key)
	assert.Equal(t, "dark", data.Value)
}

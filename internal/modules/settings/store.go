package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/rs/zerolog"
)

// Remote is the preferences API surface the store syncs against.
// Satisfied by trackerapi.Client.
type Remote interface {
	GetPreferences(ctx context.Context) (map[string]interface{}, error)
	PatchPreferences(ctx context.Context, updates map[string]interface{}) error
}

type state int

const (
	stateUninitialized state = iota
	stateInitializing
	stateReady
)

const (
	flushTimeout    = 10 * time.Second
	maxFlushBackoff = time.Minute

	metaLastRemoteSync = "last_remote_sync"
)

// Store holds the in-memory settings tree. The local snapshot is
// authoritative for reads; remote writes are debounced so a burst of
// updates collapses into one PATCH carrying the union of changed keys.
type Store struct {
	repo     *Repository
	remote   Remote
	eventMgr *events.Manager
	log      zerolog.Logger

	debounce    time.Duration
	initTimeout time.Duration

	mu      sync.Mutex
	state   state
	tree    map[string]interface{}
	pending map[string]struct{}
	timer   *time.Timer
	retries int
	closed  bool
}

// NewStore creates a settings store. debounce is the quiet period before a
// remote flush; initTimeout bounds the first-run remote fetch.
func NewStore(
	repo *Repository,
	remote Remote,
	eventMgr *events.Manager,
	debounce time.Duration,
	initTimeout time.Duration,
	log zerolog.Logger,
) *Store {
	return &Store{
		repo:        repo,
		remote:      remote,
		eventMgr:    eventMgr,
		debounce:    debounce,
		initTimeout: initTimeout,
		tree:        make(map[string]interface{}),
		pending:     make(map[string]struct{}),
		log:         log.With().Str("service", "settings").Logger(),
	}
}

// Initialize loads settings, local-first: a present snapshot makes the
// store ready with no network round-trip, and remote reconciliation happens
// opportunistically in the background. On first run the remote is fetched
// under initTimeout and any failure degrades to an empty tree. Auth
// failures are the one hard error.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = stateInitializing
	s.mu.Unlock()

	local, found, err := s.repo.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load local settings snapshot")
	}
	if found {
		s.mu.Lock()
		s.tree = local
		s.state = stateReady
		s.mu.Unlock()
		s.log.Info().Int("keys", len(local)).Msg("Settings loaded from local snapshot")
		go s.reconcile()
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	remote, err := s.remote.GetPreferences(fetchCtx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.mu.Lock()
			s.state = stateUninitialized
			s.mu.Unlock()
			return fmt.Errorf("failed to initialize settings: %w", err)
		}
		s.log.Warn().Err(err).Msg("Remote preferences unavailable, starting with empty settings")
		remote = make(map[string]interface{})
	}

	if err := s.repo.Save(remote); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist initial settings snapshot")
	}

	s.mu.Lock()
	s.tree = remote
	s.state = stateReady
	s.mu.Unlock()

	if err == nil {
		if mErr := s.repo.SetMeta(metaLastRemoteSync, time.Now().Format(time.RFC3339)); mErr != nil {
			s.log.Debug().Err(mErr).Msg("Failed to record initial sync timestamp")
		}
	}
	s.log.Info().Int("keys", len(remote)).Msg("Settings initialized from remote")
	return nil
}

// reconcile merges remote preferences underneath the local tree: remote
// fills keys the local copy lacks, local values win every top-level
// conflict. Failures are silent; the next startup tries again.
func (s *Store) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.initTimeout)
	defer cancel()

	remote, err := s.remote.GetPreferences(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("Background settings reconcile skipped")
		return
	}

	s.mu.Lock()
	merged := make(map[string]interface{}, len(remote)+len(s.tree))
	for k, v := range remote {
		merged[k] = v
	}
	for k, v := range s.tree {
		merged[k] = v
	}
	s.tree = merged
	if err := s.repo.Save(merged); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist reconciled settings")
	}
	s.mu.Unlock()

	if err := s.repo.SetMeta(metaLastRemoteSync, time.Now().Format(time.RFC3339)); err != nil {
		s.log.Debug().Err(err).Msg("Failed to record reconcile timestamp")
	}
}

// LastRemoteSync reports when remote preferences were last fetched
// successfully. ok is false before the first successful sync.
func (s *Store) LastRemoteSync() (time.Time, bool) {
	value, found, err := s.repo.GetMeta(metaLastRemoteSync)
	if err != nil || !found {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Get returns a top-level setting.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tree[key]
	return v, ok
}

// All returns a copy of the settings tree.
func (s *Store) All() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopyTree(s.tree)
}

// Update sets a top-level key: in-memory and local snapshot synchronously,
// remote via the debounce cycle. Every update resets the quiet period.
func (s *Store) Update(key string, value interface{}) error {
	s.mu.Lock()
	s.tree[key] = value
	s.pending[key] = struct{}{}
	s.scheduleFlushLocked(s.debounce)
	err := s.repo.Save(s.tree)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.emitChanged(key, value)
	return nil
}

// UpdateNested sets a value at a path of nested map keys, creating
// intermediate maps as needed. The top-level key is what syncs remotely.
func (s *Store) UpdateNested(path []string, value interface{}) error {
	if len(path) == 0 {
		return fmt.Errorf("empty settings path")
	}

	s.mu.Lock()
	cur := s.tree
	for _, p := range path[:len(path)-1] {
		child, ok := cur[p].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			cur[p] = child
		}
		cur = child
	}
	cur[path[len(path)-1]] = value

	top := path[0]
	topValue := s.tree[top]
	s.pending[top] = struct{}{}
	s.scheduleFlushLocked(s.debounce)
	err := s.repo.Save(s.tree)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.emitChanged(top, topValue)
	return nil
}

// Reset drops all local state: pending buffer, flush timer, in-memory tree
// and the durable snapshot. Remote preferences are untouched.
func (s *Store) Reset() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = make(map[string]struct{})
	s.tree = make(map[string]interface{})
	s.retries = 0
	s.mu.Unlock()

	s.log.Info().Msg("Settings reset")
	return s.repo.Clear()
}

// Close stops the flush timer and makes one final flush attempt so a clean
// shutdown does not strand pending changes.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	updates := s.collectPendingLocked()
	s.mu.Unlock()

	if len(updates) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.remote.PatchPreferences(ctx, updates); err != nil {
		s.log.Warn().Err(err).Msg("Final settings flush failed")
	}
}

// flush pushes the union of pending keys' current values in one PATCH. On
// failure the keys stay pending and the next attempt backs off.
func (s *Store) flush() {
	s.mu.Lock()
	if s.closed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	updates := s.collectPendingLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.remote.PatchPreferences(ctx, updates); err != nil {
		s.mu.Lock()
		for k := range updates {
			s.pending[k] = struct{}{}
		}
		s.retries++
		backoff := s.debounce * (1 << uint(s.retries))
		if backoff > maxFlushBackoff {
			backoff = maxFlushBackoff
		}
		s.scheduleFlushLocked(backoff)
		s.mu.Unlock()
		s.log.Warn().Err(err).Int("keys", len(updates)).Dur("retry_in", backoff).
			Msg("Settings flush failed, changes retained")
		return
	}

	s.mu.Lock()
	s.retries = 0
	s.mu.Unlock()
	s.log.Debug().Int("keys", len(updates)).Msg("Settings flushed to remote")
}

// collectPendingLocked drains the pending set into a PATCH payload, deep
// copied so marshalling never races a concurrent nested update.
func (s *Store) collectPendingLocked() map[string]interface{} {
	updates := make(map[string]interface{}, len(s.pending))
	for k := range s.pending {
		updates[k] = deepCopyValue(s.tree[k])
	}
	s.pending = make(map[string]struct{})
	return updates
}

func (s *Store) scheduleFlushLocked(d time.Duration) {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, s.flush)
}

func (s *Store) emitChanged(key string, value interface{}) {
	if s.eventMgr != nil {
		s.eventMgr.Emit(events.SettingsChanged, "settings", &events.SettingsChangedData{
			Key:   key,
			Value: value,
		})
	}
}

func deepCopyTree(tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(tree))
	for k, v := range tree {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyTree(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// Package cache provides short-TTL, request-deduplicating resource caches.
// One Resource instance exists per cached resource (cards, per-card sums,
// preferences); all consumers share it, so concurrent reads during a miss
// collapse into a single underlying fetch.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the resource from its source of truth.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Resource is a TTL cache for a single value.
//
// Freshness: a value younger than ttl is returned without fetching; ttl <= 0
// means the value stays fresh until Invalidate is called (used for
// preferences). A fetch already in flight is joined, never duplicated.
//
// Invalidation bumps a generation token. A fetch that resolves after its
// generation was superseded is discarded instead of committed, so a result
// arriving after an invalidate can never clobber newer state.
type Resource[T any] struct {
	name string
	ttl  time.Duration
	log  zerolog.Logger

	mu         sync.Mutex
	value      T
	hasValue   bool
	fetchedAt  time.Time
	generation string

	group singleflight.Group

	// onInvalidate, if set, is notified after every Invalidate call.
	onInvalidate func(name string)
}

// New creates a resource cache. ttl <= 0 disables expiry (explicit
// invalidation only).
func New[T any](name string, ttl time.Duration, log zerolog.Logger) *Resource[T] {
	return &Resource[T]{
		name:       name,
		ttl:        ttl,
		generation: uuid.NewString(),
		log:        log.With().Str("cache", name).Logger(),
	}
}

// OnInvalidate registers a callback fired after each Invalidate.
// Used to emit CacheInvalidated events without coupling this package to the bus.
func (r *Resource[T]) OnInvalidate(fn func(name string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onInvalidate = fn
}

// Get returns the cached value if fresh, otherwise fetches it. Concurrent
// callers during a miss share one fetch. Fetch failures leave the cache
// untouched (stale data survives a failed refresh).
func (r *Resource[T]) Get(ctx context.Context, fetch FetchFunc[T]) (T, error) {
	r.mu.Lock()
	if r.hasValue && (r.ttl <= 0 || time.Since(r.fetchedAt) < r.ttl) {
		v := r.value
		r.mu.Unlock()
		return v, nil
	}
	gen := r.generation
	r.mu.Unlock()

	// The singleflight key is the generation token: callers arriving after an
	// invalidate start a new flight instead of joining the superseded one.
	v, err, _ := r.group.Do(gen, func() (interface{}, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.commit(gen, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// commit stores a fetch result unless the generation moved on.
func (r *Resource[T]) commit(gen string, val T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		r.log.Debug().Msg("Discarding fetch result from superseded generation")
		return
	}
	r.value = val
	r.hasValue = true
	r.fetchedAt = time.Now()
}

// Mutate applies fn to the cached value in place, if a fresh value exists.
// Used for optimistic delta updates that avoid a refetch. Returns whether
// the mutation was applied.
func (r *Resource[T]) Mutate(fn func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasValue || (r.ttl > 0 && time.Since(r.fetchedAt) >= r.ttl) {
		return false
	}
	r.value = fn(r.value)
	return true
}

// Invalidate clears the cached value and supersedes any in-flight fetch,
// forcing the next Get to refetch.
func (r *Resource[T]) Invalidate() {
	r.mu.Lock()
	var zero T
	r.value = zero
	r.hasValue = false
	r.generation = uuid.NewString()
	fn := r.onInvalidate
	r.mu.Unlock()

	if fn != nil {
		fn(r.name)
	}
}

// Name returns the resource name for logging.
func (r *Resource[T]) Name() string {
	return r.name
}

package cache

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
)

// Loader reads through a Store, collapsing concurrent misses for one key into a single fetch.
type Loader[T any] struct {
	store Store
	group singleflight.Group
	log   *logger.Logger

	mu     sync.Mutex
	flight map[string]*keyState
}

// keyState tracks fetches in progress for one key. gen is bumped by Invalidate so a fetch
// that started earlier does not write its result back.
type keyState struct {
	gen      uint64
	inflight int
}

// NewLoader creates a loader over store.
func NewLoader[T any](store Store, log *logger.Logger) *Loader[T] {
	return &Loader[T]{store: store, log: log, flight: make(map[string]*keyState)}
}

// Get returns the cached value for key or calls fetch. Store failures degrade to a direct
// fetch and are logged, never returned.
func (l *Loader[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if b, ok, err := l.store.Get(ctx, key); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		l.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	ch := l.group.DoChan(key, func() (any, error) {
		// Shared by every waiter on key; must outlive any single caller.
		fctx := context.WithoutCancel(ctx)
		gen := l.begin(key)
		v, err := fetch(fctx)
		l.finish(fctx, key, gen, v, err)
		return v, err
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (l *Loader[T]) begin(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.flight[key]
	if !ok {
		st = &keyState{}
		l.flight[key] = st
	}
	st.inflight++
	return st.gen
}

// finish stores v unless key was invalidated after the fetch began. The check and the write
// happen under l.mu so an Invalidate cannot slip between them.
func (l *Loader[T]) finish(ctx context.Context, key string, gen uint64, v T, fetchErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.flight[key]
	st.inflight--
	if st.inflight == 0 {
		delete(l.flight, key)
	}
	if fetchErr != nil {
		return
	}
	if st.gen != gen {
		l.log.Debug().Str("key", key).Msg("skipping cache write for invalidated fetch")
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := l.store.Set(ctx, key, b); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate drops key so the next Get fetches fresh data. A fetch already running for key
// still returns to its waiters but is not cached.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) {
	l.mu.Lock()
	if st, ok := l.flight[key]; ok {
		st.gen++
	}
	l.mu.Unlock()

	l.group.Forget(key)
	if err := l.store.Delete(ctx, key); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}

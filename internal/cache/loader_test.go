package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoaderCachesValue(t *testing.T) {
	ctx := context.Background()
	l := NewLoader[payload](NewMemoryStore(time.Minute, 10), logger.Nop())
	var calls int32
	fetch := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		return payload{Name: "r-1", Count: 3}, nil
	}

	v, err := l.Get(ctx, "r-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "r-1", Count: 3}, v)

	v, err = l.Get(ctx, "r-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Count)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	l.Invalidate(ctx, "r-1")
	_, err = l.Get(ctx, "r-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoaderSingleFlight(t *testing.T) {
	ctx := context.Background()
	l := NewLoader[payload](NewMemoryStore(time.Minute, 10), logger.Nop())
	release := make(chan struct{})
	var calls int32
	fetch := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Name: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]payload, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Get(ctx, "k", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r.Name)
	}
}

func TestLoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	l := NewLoader[payload](NewMemoryStore(time.Minute, 10), logger.Nop())
	boom := errors.New("backend down")

	_, err := l.Get(ctx, "k", func(context.Context) (payload, error) { return payload{}, boom })
	assert.ErrorIs(t, err, boom)

	v, err := l.Get(ctx, "k", func(context.Context) (payload, error) { return payload{Name: "ok"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v.Name)
}

func TestLoaderCallerCancellation(t *testing.T) {
	l := NewLoader[payload](NewMemoryStore(time.Minute, 10), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := l.Get(ctx, "slow", func(context.Context) (payload, error) {
			<-release
			return payload{}, nil
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancellation")
	}
}

func TestLoaderInvalidateDuringFetchDoesNotCacheStaleValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute, 10)
	l := NewLoader[payload](store, logger.Nop())
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan payload, 1)
	go func() {
		v, err := l.Get(ctx, "r", func(context.Context) (payload, error) {
			close(started)
			<-release
			return payload{Name: "r", Count: 1}, nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	l.Invalidate(ctx, "r")
	close(release)
	assert.Equal(t, 1, (<-done).Count, "waiters of the earlier fetch still get its value")
	assert.Equal(t, 0, store.Len())

	v, err := l.Get(ctx, "r", func(context.Context) (payload, error) {
		return payload{Name: "r", Count: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, 1, store.Len())
}

func TestLoaderOverlappingFetchesKeepNewestValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute, 10)
	l := NewLoader[payload](store, logger.Nop())
	oldStarted := make(chan struct{})
	releaseOld := make(chan struct{})

	oldDone := make(chan struct{})
	go func() {
		defer close(oldDone)
		_, err := l.Get(ctx, "r", func(context.Context) (payload, error) {
			close(oldStarted)
			<-releaseOld
			return payload{Count: 1}, nil
		})
		assert.NoError(t, err)
	}()
	<-oldStarted
	l.Invalidate(ctx, "r")

	v, err := l.Get(ctx, "r", func(context.Context) (payload, error) { return payload{Count: 2}, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count)

	close(releaseOld)
	<-oldDone

	v, err = l.Get(ctx, "r", func(context.Context) (payload, error) { return payload{Count: 3}, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count, "the older fetch finishing last must not overwrite the newer entry")
}

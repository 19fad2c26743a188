package pool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"floorplan-render-backend/internal/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := pool.New(2)

	var running, peak atomic.Int32
	futures := make([]*pool.Future, 0, 8)
	for i := 0; i < 8; i++ {
		futures = append(futures, p.Submit(context.Background(), func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	for _, f := range futures {
		require.NoError(t, f.Wait(context.Background()))
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(8), p.Stats().Completed)
}

func TestPool_FutureCarriesError(t *testing.T) {
	p := pool.New(1)

	f := p.Submit(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})

	assert.ErrorIs(t, f.Wait(context.Background()), assert.AnError)
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_RecoversPanic(t *testing.T) {
	p := pool.New(1)

	f := p.Submit(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})

	err := f.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPool_Closed(t *testing.T) {
	p := pool.New(1)
	p.Close()

	f := p.Submit(context.Background(), func(ctx context.Context) error { return nil })

	assert.ErrorIs(t, f.Wait(context.Background()), pool.ErrPoolClosed)
}

func TestPool_QueuedTaskCancelled(t *testing.T) {
	p := pool.New(1)
	started := make(chan struct{})
	release := make(chan struct{})
	blocker := p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	queued := p.Submit(ctx, func(ctx context.Context) error { return nil })
	cancel()

	assert.ErrorIs(t, queued.Wait(context.Background()), context.Canceled)
	close(release)
	require.NoError(t, blocker.Wait(context.Background()))
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var l *pool.Limiter
	assert.NoError(t, l.Wait(context.Background()))
	assert.Nil(t, pool.NewLimiter(0, 1))
}

func TestLimiter_Wait(t *testing.T) {
	l := pool.NewLimiter(1000, 1)
	require.NotNil(t, l)

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Wait(context.Background()))
	}
}

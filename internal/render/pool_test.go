package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLaunch installs a launch func that hands out cancellable fake
// browser handles and counts invocations.
func stubLaunch(p *Pool, launches *atomic.Int32) {
	p.launch = func() (*browser, error) {
		launches.Add(1)
		ctx, cancel := context.WithCancel(context.Background())
		return &browser{ctx: ctx, cancel: cancel, cancelAlloc: func() {}}, nil
	}
}

func TestPool_ConcurrentAcquireLaunchesOnce(t *testing.T) {
	p := NewPool("")
	var launches atomic.Int32
	stubLaunch(p, &launches)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.acquire(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), launches.Load())
}

func TestPool_ReusesLiveBrowserAcrossAcquires(t *testing.T) {
	p := NewPool("")
	var launches atomic.Int32
	stubLaunch(p, &launches)

	first, err := p.acquire(context.Background())
	require.NoError(t, err)

	second, err := p.acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), launches.Load())
}

func TestPool_RelaunchesAfterDisconnect(t *testing.T) {
	p := NewPool("")
	var launches atomic.Int32
	stubLaunch(p, &launches)

	first, err := p.acquire(context.Background())
	require.NoError(t, err)

	// Simulate the process dying.
	p.mu.Lock()
	cancel := p.cur.cancel
	p.mu.Unlock()
	cancel()

	// The watcher clears the handle asynchronously.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.cur == nil
	}, time.Second, 5*time.Millisecond)

	second, err := p.acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), launches.Load())
}

func TestPool_DisconnectReleasesAllocator(t *testing.T) {
	p := NewPool("")
	var allocCancels atomic.Int32
	p.launch = func() (*browser, error) {
		ctx, cancel := context.WithCancel(context.Background())
		return &browser{
			ctx:         ctx,
			cancel:      cancel,
			cancelAlloc: func() { allocCancels.Add(1) },
		}, nil
	}

	_, err := p.acquire(context.Background())
	require.NoError(t, err)

	p.mu.Lock()
	cancel := p.cur.cancel
	p.mu.Unlock()
	cancel()

	// The watcher tears down the dead handle, allocator included.
	require.Eventually(t, func() bool {
		return allocCancels.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPool_AcquireAfterShutdownFails(t *testing.T) {
	p := NewPool("")
	var launches atomic.Int32
	stubLaunch(p, &launches)

	_, err := p.acquire(context.Background())
	require.NoError(t, err)

	p.Shutdown()

	_, err = p.acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Equal(t, int32(1), launches.Load())
}

func TestPool_RenderAfterShutdownFails(t *testing.T) {
	p := NewPool("")
	p.Shutdown()

	_, err := p.Render(context.Background(), "<html></html>")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_LaunchFailurePropagates(t *testing.T) {
	p := NewPool("")
	p.launch = func() (*browser, error) {
		return nil, errors.New("chromium not found")
	}

	_, err := p.acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium not found")
}

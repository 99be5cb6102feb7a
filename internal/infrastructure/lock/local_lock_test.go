package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesCallers(t *testing.T) {
	l := NewLocalLocker(Options{RetryInterval: 10 * time.Millisecond, MaxRetries: 500})

	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			require.NoError(t, err)
			defer release()

			n := inFlight.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxSeen.Load())
}

func TestLocalLockerGivesUp(t *testing.T) {
	l := NewLocalLocker(Options{RetryInterval: time.Millisecond, MaxRetries: 5})

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	_, err = l.Acquire(context.Background())
	require.ErrorIs(t, err, ErrLockFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx)
	require.Error(t, err)

	release()
	release2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

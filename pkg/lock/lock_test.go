package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerialisesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "enrollment:stu-1:sem-1", time.Second)
			require.NoError(t, err)
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				current := atomic.LoadInt32(&maxInside)
				if n <= current || atomic.CompareAndSwapInt32(&maxInside, current, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locker.held())
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	first, err := locker.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := locker.Acquire(ctx, "b", time.Second)
	require.NoError(t, err)
	second()
	second()
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Zero(t, locker.held())
}

func TestRedisLockerKey(t *testing.T) {
	assert.Equal(t, "lock:enrollment:stu-1:sem-1", NewRedisLocker(nil, "", nil).Key("enrollment:stu-1:sem-1"))
	assert.Equal(t, "records:lock:x", NewRedisLocker(nil, "records:lock:", nil).Key("x"))
}

func TestRedisLockerExpiredContextIsNotAcquired(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release, err := locker.Acquire(ctx, "enrollment:stu-1:sem-1", time.Second)
	require.Error(t, err)
	assert.Nil(t, release)
	assert.True(t, errors.Is(err, ErrNotAcquired))
	assert.True(t, errors.Is(err, context.Canceled))
}

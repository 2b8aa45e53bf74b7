package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockerFixture(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr
}

func TestWithSlotLockRunsCallback(t *testing.T) {
	locker, _ := lockerFixture(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithSlotLockReleasesAfterCallback(t *testing.T) {
	locker, mr := lockerFixture(t)

	doctorID := uuid.New()
	slotStart := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), doctorID, slotStart, func(ctx context.Context) error {
		assert.NotEmpty(t, mr.Keys())
		return nil
	})
	require.NoError(t, err)

	// Lock key is gone, so a second acquisition succeeds immediately.
	err = locker.WithSlotLock(context.Background(), doctorID, slotStart, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockContention(t *testing.T) {
	locker, _ := lockerFixture(t)

	doctorID := uuid.New()
	slotStart := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), doctorID, slotStart, func(ctx context.Context) error {
		// Second attempt on the same slot while the lock is held.
		inner := locker.WithSlotLock(ctx, doctorID, slotStart, func(ctx context.Context) error {
			t.Fatal("callback must not run while the lock is held")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockDistinctSlotsDoNotContend(t *testing.T) {
	locker, _ := lockerFixture(t)

	doctorID := uuid.New()
	slotStart := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), doctorID, slotStart, func(ctx context.Context) error {
		// Same doctor, next slot: independent key.
		return locker.WithSlotLock(ctx, doctorID, slotStart.Add(30*time.Minute), func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
}

func TestWithSlotLockPropagatesCallbackError(t *testing.T) {
	locker, _ := lockerFixture(t)

	want := assert.AnError
	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), func(ctx context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}

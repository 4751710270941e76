package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockAndUnlock(t *testing.T) {
	client := newTestLockClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "order:ord_1", "holder_a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	// Second holder cannot acquire while the first holds.
	other := NewLocker(client, "order:ord_1", "holder_b")
	assert.Error(t, other.Lock(ctx, time.Minute))

	require.NoError(t, locker.Unlock(ctx))
	assert.NoError(t, other.Lock(ctx, time.Minute))
}

func TestUnlockByNonHolderFails(t *testing.T) {
	client := newTestLockClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "order:ord_2", "holder_a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	impostor := NewLocker(client, "order:ord_2", "holder_b")
	assert.Error(t, impostor.Unlock(ctx))
}

func TestUnlockRunsCompareAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:ord_4", "holder_a")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	mock.ExpectEval(script, []string{"order:ord_4"}, "holder_a").SetVal(int64(1))

	assert.NoError(t, locker.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendLock(t *testing.T) {
	client := newTestLockClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "order:ord_3", "holder_a")
	require.NoError(t, locker.Lock(ctx, time.Second))
	assert.NoError(t, locker.ExtendLock(ctx, time.Minute))

	expired := NewLocker(client, "order:missing", "holder_a")
	assert.Error(t, expired.ExtendLock(ctx, time.Minute))
}

package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestKey_IsStableSHA256(t *testing.T) {
	k1 := Key([]byte("a=1"))
	k2 := Key([]byte("a=1"))
	k3 := Key([]byte("a=2"))

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, len(keyPrefix)+64)
}

func TestGate_Redis_DuplicateWithinWindow(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	g := NewGate(NewRedisStore(rdb), 30*time.Minute)
	ctx := context.Background()
	body := []byte("leads[note][0][note][text]=hello")

	ok, err := g.Admit(ctx, body)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Admit(ctx, body)
	require.NoError(t, err)
	assert.False(t, ok, "second delivery inside the window must be rejected")

	assert.Equal(t, 30*time.Minute, mr.TTL(Key(body)))

	mr.FastForward(31 * time.Minute)

	ok, err = g.Admit(ctx, body)
	require.NoError(t, err)
	assert.True(t, ok, "delivery after the window is admitted again")
}

func TestGate_Redis_ConcurrentAdmitsOnce(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	g := NewGate(NewRedisStore(rdb), time.Minute)
	body := []byte("same-body")

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.Admit(context.Background(), body)
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, admitted.Load())
}

func TestGate_Redis_StoreDown(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	g := NewGate(NewRedisStore(rdb), time.Minute)
	mr.Close()

	ok, err := g.Admit(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, ok)
}

func TestGate_Memory_Window(t *testing.T) {
	g := NewGate(NewMemoryStore(time.Second), 50*time.Millisecond)
	ctx := context.Background()
	body := []byte("x=1")

	ok, err := g.Admit(ctx, body)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Admit(ctx, body)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(80 * time.Millisecond)

	ok, err = g.Admit(ctx, body)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_DefaultTTL(t *testing.T) {
	g := NewGate(NewMemoryStore(0), 0)
	assert.Equal(t, DefaultTTL, g.ttl)
}

func TestGate_NilStore(t *testing.T) {
	g := NewGate(nil, time.Minute)
	_, err := g.Admit(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestGate_Release(t *testing.T) {
	ctx := context.Background()
	body := []byte("x=release")

	rdb, _ := setupTestRedis(t)
	for name, store := range map[string]Store{
		"redis":  NewRedisStore(rdb),
		"memory": NewMemoryStore(0),
	} {
		t.Run(name, func(t *testing.T) {
			g := NewGate(store, time.Minute)

			ok, err := g.Admit(ctx, body)
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, g.Release(ctx, body))

			ok, err = g.Admit(ctx, body)
			require.NoError(t, err)
			assert.True(t, ok, "released body is admitted again")
		})
	}
}

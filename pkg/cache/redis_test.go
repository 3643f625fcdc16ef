package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	c, err := NewRedisCache(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache_GetMissing(t *testing.T) {
	c := newTestRedis(t)

	var dest map[string]string
	err := c.Get(context.Background(), CacheKey{Prefix: "test", ID: time.Now().String()}.String(), &dest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache_UpdateIsAtomic(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	key := CacheKey{Prefix: "test", ID: "counter-" + time.Now().Format(time.RFC3339Nano)}.String()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				for {
					err := c.Update(ctx, key, time.Minute, func(current []byte) ([]byte, error) {
						n := 0
						if current != nil {
							if err := json.Unmarshal(current, &n); err != nil {
								return nil, err
							}
						}
						return json.Marshal(n + 1)
					})
					if !errors.Is(err, ErrConflict) {
						assert.NoError(t, err)
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, c.Get(ctx, key, &n))
	assert.Equal(t, 40, n)
}

func TestRedisCache_UpdatePassesThroughFuncError(t *testing.T) {
	c := newTestRedis(t)
	sentinel := errors.New("refused")

	err := c.Update(context.Background(), SessionCacheKey("refused"), time.Minute, func(current []byte) ([]byte, error) {
		return nil, sentinel
	})
	assert.Equal(t, sentinel, err)
}

func TestRedisCache_Bytes(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	key := AudioCacheKey("test-" + time.Now().Format(time.RFC3339Nano))

	require.NoError(t, c.SetBytes(ctx, key, []byte{0, 1, 2}, time.Minute))

	got, err := c.GetBytes(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, got)

	require.NoError(t, c.Delete(ctx, key))
	_, err = c.GetBytes(ctx, key, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheKey_String(t *testing.T) {
	key := CacheKey{Prefix: "session", ID: "123"}
	assert.Equal(t, "session:123", key.String())
}

func TestSessionCacheKey(t *testing.T) {
	assert.Equal(t, "session:abc-123", SessionCacheKey("abc-123"))
	assert.Equal(t, "audio:f-1", AudioCacheKey("f-1"))
}

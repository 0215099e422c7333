package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisTestClient connects to ACADEMY_TEST_REDIS_ADDR or skips the test
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("ACADEMY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ACADEMY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSequenceCounter_Next(t *testing.T) {
	client := redisTestClient(t)
	prefix := "test:seq:" + uuid.NewString() + ":"
	counter := NewRedisSequenceCounter(client, prefix, time.Minute)
	ctx := context.Background()
	tenantID := uuid.New()

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Next(ctx, tenantID, fee.ScopeReceipt, "202406")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := counter.Next(ctx, tenantID, fee.ScopeInvoice, "202406")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	ttl, err := client.TTL(ctx, counter.key(tenantID, fee.ScopeReceipt, "202406")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisSequenceCounter_ConcurrentCallsAreUnique(t *testing.T) {
	client := redisTestClient(t)
	counter := NewRedisSequenceCounter(client, "test:seq:"+uuid.NewString()+":", time.Minute)
	tenantID := uuid.New()

	const n = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(context.Background(), tenantID, fee.ScopeReceipt, "202406")
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestRedisSequenceCounter_Key(t *testing.T) {
	counter := NewRedisSequenceCounter(nil, "", 0)
	tenantID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "seq:11111111-2222-3333-4444-555555555555:RECEIPT:202406",
		counter.key(tenantID, fee.ScopeReceipt, "202406"))
}

func TestStoreFactory_WithoutRedis(t *testing.T) {
	// nothing listens on port 1
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("counter has no fallback", func(t *testing.T) {
		f := NewStoreFactory(cfg)
		defer f.Close()
		_, err := f.SequenceCounter(time.Hour)
		assert.Error(t, err)
	})

	t.Run("idempotency falls back to memory", func(t *testing.T) {
		f := NewStoreFactory(cfg)
		defer f.Close()
		store, err := f.IdempotencyStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fallback can be disabled", func(t *testing.T) {
		f := NewStoreFactory(cfg, WithInMemoryFallback(false))
		defer f.Close()
		_, err := f.IdempotencyStore()
		assert.Error(t, err)
	})
}

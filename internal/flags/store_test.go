package flags

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		DropStale,
		"flag.with.dots",
		"flag123",
		"a",
		"kebab-and_snake",
	}
	for _, key := range valid {
		assert.NoError(t, ValidateKey(key), "key %q", key)
	}

	invalid := []string{
		"",
		" ",
		"flag with spaces",
		"flag:with:colons",
		"flag\twith\ttabs",
		string(make([]byte, 129)),
	}
	for _, key := range invalid {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, "key %q", key)
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, DropStale)
	assert.ErrorIs(t, err, ErrNotFound)

	flag, err := store.Upsert(ctx, DropStale, true)
	require.NoError(t, err)
	assert.Equal(t, DropStale, flag.Key)
	assert.True(t, flag.Value)

	got, err := store.Get(ctx, DropStale)
	require.NoError(t, err)
	assert.True(t, got.Value)
	assert.True(t, flag.UpdatedAt.Equal(got.UpdatedAt))

	time.Sleep(time.Millisecond)
	flag2, err := store.Upsert(ctx, DropStale, false)
	require.NoError(t, err)
	assert.True(t, flag2.UpdatedAt.After(flag.UpdatedAt))

	got, err = store.Get(ctx, DropStale)
	require.NoError(t, err)
	assert.False(t, got.Value)
}

func TestStore_Bool(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	v, err := store.Bool(ctx, DropStale, true)
	require.NoError(t, err)
	assert.True(t, v, "default when unset")

	_, err = store.Upsert(ctx, DropStale, false)
	require.NoError(t, err)

	v, err = store.Bool(ctx, DropStale, true)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = store.Bool(ctx, "bad key", true)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStore_DeleteAndList(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	want := map[string]bool{
		DropStale:           true,
		"ingest.seed":       false,
		"server.quote.open": true,
	}
	for k, v := range want {
		_, err := store.Upsert(ctx, k, v)
		require.NoError(t, err)
	}

	list, err = store.List(ctx)
	require.NoError(t, err)
	got := make(map[string]bool, len(list))
	for _, f := range list {
		got[f.Key] = f.Value
	}
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "ingest.seed"))
	require.NoError(t, store.Delete(ctx, "never.set"))

	_, err = store.Get(ctx, "ingest.seed")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	client := setupTestRedis(t)
	a, err := NewNamespacedStore(client, "a:flags")
	require.NoError(t, err)
	b, err := NewNamespacedStore(client, "b:flags")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Upsert(ctx, DropStale, true)
	require.NoError(t, err)

	_, err = b.Get(ctx, DropStale)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ConcurrentOperations(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	const numGoroutines = 10
	const numOps = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("flag.%d.%d", id, j)
				value := (id+j)%2 == 0

				_, err := store.Upsert(ctx, key, value)
				assert.NoError(t, err)

				got, err := store.Bool(ctx, key, !value)
				assert.NoError(t, err)
				assert.Equal(t, value, got)
			}
		}(i)
	}
	wg.Wait()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, numGoroutines*numOps)
}

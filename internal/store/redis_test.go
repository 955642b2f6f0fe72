package store

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/voxnote/internal/note"
)

func setupRedis(t *testing.T) *RedisKV {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		rc.Close()
		m.Close()
	})
	return NewRedisKVFromClient(rc)
}

func TestRedisKVGetAbsent(t *testing.T) {
	kv := setupRedis(t)
	_, ok, err := kv.Get(context.Background(), SlotNotes)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKVSetGet(t *testing.T) {
	ctx := context.Background()
	kv := setupRedis(t)

	require.NoError(t, kv.Set(ctx, SlotVaultPin, []byte("4321")))
	val, ok, err := kv.Get(ctx, SlotVaultPin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4321", string(val))
}

func TestNoteStoreOverRedis(t *testing.T) {
	ctx := context.Background()
	s := NewNoteStore(setupRedis(t))

	n := note.New()
	n.Title = "redis-backed"
	require.NoError(t, s.Put(ctx, n))

	got, ok, err := s.Get(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "redis-backed", got.Title)

	require.NoError(t, s.Delete(ctx, n.ID))
	notes, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

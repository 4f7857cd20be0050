package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/doccatalog/pkg/store"
	"github.com/nainya/doccatalog/pkg/store/storetest"
)

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ""), mr
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := setupTestRedis(t)
		return s
	})
}

func TestOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateContainer(context.Background(), "c"))
	assert.True(t, mr.Exists(DefaultPrefix+"containers"))
}

func TestOpenConnectionError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "localhost:99999"

	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestServerDownIsUnavailable(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "r", Version: 1}))

	mr.Close()

	_, err := s.GetRecord(ctx, "r")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	err = s.UpdateRecord(ctx, store.Record{Name: "r", Version: 2}, 1)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestPrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	ctx := context.Background()

	a := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "a:")
	b := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "b:")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.CreateRecord(ctx, store.Record{Name: "r", Version: 1}))
	_, err = b.GetRecord(ctx, "r")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := NewRedisRepository(&config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestRedisRepository_CartRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedis(t)
	require.NoError(t, repo.Ping(ctx))

	items := []models.CartItem{{
		Product: models.Product{
			ID:       "1",
			Name:     "Smartphone XYZ",
			Price:    decimal.RequireFromString("699.99"),
			ImageURL: "https://via.placeholder.com/150",
			Stock:    10,
		},
		Quantity: 2,
	}}

	require.NoError(t, repo.SaveCart(ctx, "cartItems", items))
	assert.True(t, mr.Exists("cartItems"))
	assert.Zero(t, mr.TTL("cartItems"))

	got, found, err := repo.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Product.ID)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, got[0].Product.Price.Equal(decimal.RequireFromString("699.99")))
}

func TestRedisRepository_LoadMissing(t *testing.T) {
	repo, _ := newTestRedis(t)

	items, found, err := repo.LoadCart(context.Background(), "cartItems")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, items)
}

func TestRedisRepository_SaveEmptyCart(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedis(t)

	require.NoError(t, repo.SaveCart(ctx, "cartItems", nil))

	raw, err := mr.Get("cartItems")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	_, found, err := repo.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedisRepository_CorruptValue(t *testing.T) {
	repo, mr := newTestRedis(t)
	require.NoError(t, mr.Set("cartItems", "{oops"))

	_, _, err := repo.LoadCart(context.Background(), "cartItems")
	assert.Error(t, err)
}

func TestRedisRepository_ServerDown(t *testing.T) {
	repo, mr := newTestRedis(t)
	mr.Close()

	err := repo.SaveCart(context.Background(), "cartItems", nil)
	assert.Error(t, err)
}

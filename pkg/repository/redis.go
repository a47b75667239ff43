package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"github.com/go-redis/redis/v8"
)

// RedisRepository is the key-value store that keeps the cart between sessions.
type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// LoadCart returns the cart stored under key. A missing key is not an error.
func (r *RedisRepository) LoadCart(ctx context.Context, key string) ([]models.CartItem, bool, error) {
	var items []models.CartItem
	err := r.GetJSON(ctx, key, &items)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cart %q: %w", key, err)
	}
	return items, true, nil
}

// SaveCart overwrites the cart stored under key. The value never expires.
func (r *RedisRepository) SaveCart(ctx context.Context, key string, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	if err := r.SetJSON(ctx, key, items, 0); err != nil {
		return fmt.Errorf("failed to save cart %q: %w", key, err)
	}
	return nil
}

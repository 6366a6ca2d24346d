package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RedisStorage implements fiber.Storage on redis so limiter state is shared
// by every instance of the service.
type RedisStorage struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client, timeout: 500 * time.Millisecond}
}

func (s *RedisStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	val, err := s.client.Get(ctx, rateLimitPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Set(ctx, rateLimitPrefix+key, val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, rateLimitPrefix+key).Err()
}

// Reset drops every limiter key, leaving other keys in the database alone.
func (s *RedisStorage) Reset() error {
	ctx, cancel := s.ctx()
	defer cancel()
	iter := s.client.Scan(ctx, 0, rateLimitPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStorage) Close() error {
	return nil
}

// RateLimit limits requests per client IP. A nil storage falls back to the
// limiter's process-local memory.
func RateLimit(max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	cfg := limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}

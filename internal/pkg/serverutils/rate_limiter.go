package serverutils

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window per-user limit on chat turns.
// Redis is the shared counter so the limit holds across instances; when
// Redis is unreachable the limiter degrades to an in-process go-cache
// counter rather than blocking chat entirely.
type RateLimiter struct {
	rdb      *redis.Client
	fallback *gocache.Cache
	limit    int
	window   time.Duration
}

func NewRateLimiter(rdb *redis.Client, limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		rdb:      rdb,
		fallback: gocache.New(time.Minute, 5*time.Minute),
		limit:    limitPerMinute,
		window:   time.Minute,
	}
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if rl.limit <= 0 {
			return ctx.Next()
		}

		userId, _ := ctx.Locals("user_id").(string)
		if userId == "" {
			return ctx.Next()
		}

		windowStamp := time.Now().Unix() / int64(rl.window.Seconds())
		key := fmt.Sprintf("rl:chat:%s:%d", userId, windowStamp)

		count, err := rl.incr(ctx, key)
		if err != nil {
			// Counter backend down; chat availability wins.
			count = rl.incrFallback(key)
		}

		if count > int64(rl.limit) {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse("rate limit exceeded, slow down"))
		}
		return ctx.Next()
	}
}

func (rl *RateLimiter) incr(ctx *fiber.Ctx, key string) (int64, error) {
	if rl.rdb == nil {
		return 0, fmt.Errorf("redis not configured")
	}
	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx.Context(), key)
	pipe.Expire(ctx.Context(), key, rl.window)
	if _, err := pipe.Exec(ctx.Context()); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (rl *RateLimiter) incrFallback(key string) int64 {
	n, err := rl.fallback.IncrementInt64(key, 1)
	if err != nil {
		rl.fallback.Set(key, int64(1), gocache.DefaultExpiration)
		return 1
	}
	return n
}

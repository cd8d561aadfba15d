package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"
)

// NewRedisStorage exposes rdb as limiter storage so counters are shared
// between instances.
func NewRedisStorage(rdb *redis.Client) fiber.Storage {
	return fiberredis.NewFromConnection(rdb)
}

// NewLimiter allows perMinute requests per client IP in a sliding window.
// A nil storage keeps counters in process memory.
func NewLimiter(storage fiber.Storage, perMinute int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = 30
	}
	return limiter.New(limiter.Config{
		Storage: storage,

		// sliding window
		Max:               perMinute,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c fiber.Ctx) string {
			return "ratelimit:" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}

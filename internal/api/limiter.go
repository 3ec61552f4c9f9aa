package api

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/storage/redis/v3"
)

// triggerLimiter limits on-demand crawls per client IP. Every crawl sends
// several requests to the search provider, so the limit is much lower than
// what the read endpoints could take.
func (s *Server) triggerLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        s.cfg.TriggerLimit,
		Expiration: s.cfg.TriggerWindow,
		Storage:    s.storage,
		KeyGenerator: func(c fiber.Ctx) string {
			return "crawl:" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return jsonError(c, fiber.StatusTooManyRequests, "crawl rate limit exceeded, try again later")
		},
	})
}

// NewRedisStorage connects limiter storage to the Redis server at url,
// for example redis://:password@localhost:6379/0.
//
// The storage driver panics when the initial ping fails; the panic is
// converted to an error so that `serpscan serve` can report it.
func NewRedisStorage(url string) (storage *redis.Storage, err error) {
	defer func() {
		if p := recover(); p != nil {
			storage = nil
			err = fmt.Errorf("%w: %v", ErrRedisUnavailable, p)
		}
	}()

	return redis.New(redis.Config{
		URL: url,
	}), nil
}

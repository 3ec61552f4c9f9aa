package api

import "errors"

// ErrRedisUnavailable is returned when the limiter storage cannot reach Redis.
var ErrRedisUnavailable = errors.New("redis is unavailable")

package providers

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisProvider builds the shared redis client. Rate limiting is the only
// consumer, so timeouts are kept short to preserve its fail-open behaviour.
func NewRedisProvider(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 500 * time.Millisecond,
	})
}

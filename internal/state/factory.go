package state

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Options selects and configures a Store driver.
type Options struct {
	// Driver is "memory" or "redis".
	Driver string
	// RedisURL is a redis:// connection URL, required for the redis driver.
	RedisURL string
	// TTL bounds retention of idle thread state (redis driver only).
	TTL time.Duration
}

// New builds a Store from options. An empty driver defaults to memory.
func New(opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		log.Info().Msg("conversation state store: memory")
		return NewMemoryStore(), nil

	case "redis":
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		log.Info().Str("addr", redisOpts.Addr).Msg("conversation state store: redis")
		return NewRedisStore(client, opts.TTL), nil

	default:
		return nil, fmt.Errorf("unknown state driver %q", opts.Driver)
	}
}

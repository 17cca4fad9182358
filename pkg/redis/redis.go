package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrRedisNotReady = errors.New("redis is not ready")

type Config struct {
	// URL in the form redis://:password@localhost:6379/0; empty disables redis.
	URL            string        `yaml:"url" envconfig:"REDIS_URL"`
	RetryAttempts  int           `yaml:"retryAttempts" envconfig:"REDIS_RETRY_ATTEMPTS" default:"3"`
	RetryInterval  time.Duration `yaml:"retryInterval" envconfig:"REDIS_RETRY_INTERVAL" default:"2s"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" envconfig:"REDIS_CONNECT_TIMEOUT" default:"10s"`
}

func (c Config) Enabled() bool { return c.URL != "" }

// Connect pings the server until it answers or the attempts run out.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "redis.ParseURL")
	}

	for i := 0; i < cfg.RetryAttempts; i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ErrRedisNotReady, ctx.Err().Error())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

package config

// Redis backs the rate limiter and the public listing cache. Both degrade
// to pass-through middleware when the client is nil, so a Redis outage at
// startup never prevents the API from serving.

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from either a URL + token pair (hosted Redis) or
// discrete host/port settings:
//
//	REDIS_URL, REDIS_TOKEN          e.g. rediss://host:6379 with the token as password
//	REDIS_HOST, REDIS_PORT, REDIS_ADDR
//	REDIS_PASSWORD, REDIS_DB, REDIS_TLS
type RedisConfig struct {
	URL      string
	Token    string
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	return RedisConfig{
		URL:      envStr("REDIS_URL", ""),
		Token:    envStr("REDIS_TOKEN", ""),
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// Options converts the config into go-redis options. A URL takes
// precedence over host/port settings.
func (rc RedisConfig) Options() (*redis.Options, error) {
	if rc.URL != "" {
		opts, err := redis.ParseURL(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if rc.Token != "" {
			opts.Password = rc.Token
		}
		return opts, nil
	}
	opts := &redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	}
	if rc.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// NewRedisClient connects and pings with a short timeout. It returns the
// reason alongside a nil client when Redis is unusable; callers log it and
// carry on without caching and rate limiting.
func NewRedisClient(rc RedisConfig) (*redis.Client, error) {
	opts, err := rc.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

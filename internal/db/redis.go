package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient parses rawURL and pings the server. Only redis:// and
// rediss:// URLs are accepted.
func NewRedisClient(ctx context.Context, rawURL string, log *zap.Logger) (*redis.Client, error) {
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	log.Info("redis connected", zap.String("addr", opts.Addr), zap.Bool("tls", opts.TLSConfig != nil))
	return client, nil
}

func parseRedisURL(rawURL string) (*redis.Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	switch u.Scheme {
	case "redis", "rediss":
	default:
		return nil, fmt.Errorf("REDIS_URL scheme %q: want redis or rediss", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("REDIS_URL has no host")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

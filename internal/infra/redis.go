package infra

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client for the OTP store and rate limiter. It does
// not dial: an unreachable Redis leaves the service running in degraded mode,
// and Probe reports when it comes back.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second

	return redis.NewClient(opt), nil
}

package advancedauth

import (
	"context"
	"errors"

	"github.com/DevDad-Main/advanced-auth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	errOTPRateLimited        = errors.New("otp rate limited")
	errOTPLimiterUnavailable = errors.New("otp limiter unavailable")
)

// otpRequestLimiter bounds how many codes one identity may be sent per
// window. It counts requests, not deliveries, so failed sends still burn
// budget.
type otpRequestLimiter struct {
	window *rate.FixedWindow
	prefix string
}

func newOTPRequestLimiter(redisClient redis.UniversalClient, cfg OTPConfig) *otpRequestLimiter {
	return &otpRequestLimiter{
		window: rate.NewFixedWindow(redisClient, cfg.RequestLimit, cfg.RequestWindow),
		prefix: cfg.RedisPrefix + ":req",
	}
}

func (l *otpRequestLimiter) Check(ctx context.Context, identity string) error {
	err := l.window.Allow(ctx, l.prefix+":"+identity)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return errOTPRateLimited
	default:
		return errOTPLimiterUnavailable
	}
}

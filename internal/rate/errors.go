package rate

import "errors"

var (
	// ErrRateLimited is returned when a budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures. Callers must treat it as a
	// denial, never as permission to skip the check.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

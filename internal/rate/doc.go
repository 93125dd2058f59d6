// Package rate provides the Redis-backed rate-limit primitives the engine
// composes into its guards: a continuously refilling token bucket for the
// global per-address throttle and a fixed window counter for the
// per-identity OTP request budget.
//
// All counter state lives in Redis so that every service instance enforces
// the same budgets; nothing is tracked in process memory.
package rate

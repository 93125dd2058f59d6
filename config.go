package advancedauth

import (
	"errors"
	"time"

	"github.com/DevDad-Main/advanced-auth/password"
)

// Config is the full engine configuration tree. Populate it once, pass it
// to [Builder.WithConfig], and treat it as immutable afterwards.
type Config struct {
	JWT          JWTConfig
	Refresh      RefreshConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	OTP          OTPConfig
	Throttle     ThrottleConfig
	Cleanup      CleanupConfig
}

// JWTConfig controls signed access-token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

// RefreshConfig controls opaque refresh-token issuance.
type RefreshConfig struct {
	TTL time.Duration
}

// PasswordConfig carries the argon2id parameters and the length policy.
// The policy is configuration rather than a hard-coded rule; deployments
// disagree on the right bounds.
type PasswordConfig struct {
	Hash   password.Config
	Policy PasswordPolicy
}

// PasswordPolicy bounds accepted password lengths, in bytes.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// RegistrationConfig controls staged registration sessions.
type RegistrationConfig struct {
	SessionTTL  time.Duration
	RedisPrefix string
}

// OTPConfig controls one-time-passcode issuance and verification.
//
// RequestLimit/RequestWindow bound how often one identity may be sent a
// code; MaxAttempts bounds verification retries per issued code.
type OTPConfig struct {
	Digits        int
	TTL           time.Duration
	MaxAttempts   int
	RequestLimit  int
	RequestWindow time.Duration
	RedisPrefix   string
}

// ThrottleConfig controls the global per-address token bucket that sits in
// front of every entry point.
type ThrottleConfig struct {
	Enabled         bool
	Burst           int
	RefillPerSecond float64
	RedisPrefix     string
}

// CleanupConfig controls the background sweep of expired registration
// sessions and refresh tokens.
type CleanupConfig struct {
	Interval time.Duration
}

// DefaultConfig returns the production defaults: 15-minute access tokens,
// 7-day refresh tokens, 4-digit OTPs valid for 30 minutes with 5 attempts
// and 5 sends per 15 minutes, a 10-deep/10-per-second address bucket, and a
// 30-minute cleanup interval.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Refresh: RefreshConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Hash: password.Config{
				Memory:      64 * 1024,
				Time:        3,
				Parallelism: 2,
				SaltLength:  16,
				KeyLength:   32,
			},
			Policy: PasswordPolicy{
				MinLength: 8,
				MaxLength: 128,
			},
		},
		Registration: RegistrationConfig{
			SessionTTL:  30 * time.Minute,
			RedisPrefix: "aa:reg",
		},
		OTP: OTPConfig{
			Digits:        4,
			TTL:           30 * time.Minute,
			MaxAttempts:   5,
			RequestLimit:  5,
			RequestWindow: 15 * time.Minute,
			RedisPrefix:   "aa:otp",
		},
		Throttle: ThrottleConfig{
			Enabled:         true,
			Burst:           10,
			RefillPerSecond: 10,
			RedisPrefix:     "aa:ip",
		},
		Cleanup: CleanupConfig{
			Interval: 30 * time.Minute,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("jwt access ttl must be positive")
	}
	if cfg.Refresh.TTL <= 0 {
		return errors.New("refresh ttl must be positive")
	}
	if cfg.Password.Policy.MinLength < 1 {
		return errors.New("password policy min length must be at least 1")
	}
	if cfg.Password.Policy.MaxLength < cfg.Password.Policy.MinLength {
		return errors.New("password policy max length below min length")
	}
	if cfg.Registration.SessionTTL <= 0 {
		return errors.New("registration session ttl must be positive")
	}
	if cfg.Registration.RedisPrefix == "" {
		return errors.New("registration redis prefix must not be empty")
	}
	if cfg.OTP.Digits < 4 || cfg.OTP.Digits > 10 {
		return errors.New("otp digits must be between 4 and 10")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if cfg.OTP.MaxAttempts < 1 {
		return errors.New("otp max attempts must be at least 1")
	}
	if cfg.OTP.RequestLimit < 1 || cfg.OTP.RequestWindow <= 0 {
		return errors.New("otp request budget must be positive")
	}
	if cfg.OTP.RedisPrefix == "" {
		return errors.New("otp redis prefix must not be empty")
	}
	if cfg.Throttle.Enabled {
		if cfg.Throttle.Burst < 1 {
			return errors.New("throttle burst must be at least 1")
		}
		if cfg.Throttle.RefillPerSecond <= 0 {
			return errors.New("throttle refill rate must be positive")
		}
		if cfg.Throttle.RedisPrefix == "" {
			return errors.New("throttle redis prefix must not be empty")
		}
	}
	if cfg.Cleanup.Interval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	return nil
}

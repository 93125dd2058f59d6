package advancedauth

import (
	"errors"

	"github.com/DevDad-Main/advanced-auth/internal"
	"github.com/DevDad-Main/advanced-auth/internal/rate"
	"github.com/DevDad-Main/advanced-auth/jwt"
	"github.com/DevDad-Main/advanced-auth/logging"
	"github.com/DevDad-Main/advanced-auth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it fluently, then call
// [Builder.Build] exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger logging.Logger

	directory     UserDirectory
	refreshTokens RefreshTokenStore
	mailer        Mailer

	built bool
}

// New starts a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared ephemeral store client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// WithUserDirectory sets the durable account store.
func (b *Builder) WithUserDirectory(directory UserDirectory) *Builder {
	b.directory = directory
	return b
}

// WithRefreshTokenStore sets the durable refresh-token store.
func (b *Builder) WithRefreshTokenStore(store RefreshTokenStore) *Builder {
	b.refreshTokens = store
	return b
}

// WithMailer sets the mail delivery collaborator.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// Build validates the configuration and collaborators and constructs the
// [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory is required")
	}
	if b.refreshTokens == nil {
		return nil, errors.New("refresh token store is required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer is required")
	}

	hasher, err := password.NewHasher(b.config.Password.Hash)
	if err != nil {
		return nil, err
	}

	// A throwaway hash for the unknown-email login path, so that failed
	// lookups cost the same as a real password check.
	decoy, err := internal.NewRegistrationToken()
	if err != nil {
		return nil, err
	}
	decoyHash, err := hasher.Hash(decoy)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     b.config.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}

	engine := &Engine{
		config:        b.config,
		logger:        logger,
		registrations: newRegistrationStore(b.redis, b.config.Registration.RedisPrefix),
		otpStore:      newOTPStore(b.redis, b.config.OTP.RedisPrefix),
		otpLimiter:    newOTPRequestLimiter(b.redis, b.config.OTP),
		passwordHash:  hasher,
		loginDecoy:    decoyHash,
		jwtManager:    jwtManager,
		directory:     b.directory,
		refreshTokens: b.refreshTokens,
		mailer:        b.mailer,
	}

	if b.config.Throttle.Enabled {
		engine.throttle = rate.NewTokenBucket(b.redis, b.config.Throttle.RedisPrefix, rate.BucketConfig{
			Capacity:        b.config.Throttle.Burst,
			RefillPerSecond: b.config.Throttle.RefillPerSecond,
		})
	}

	b.built = true
	return engine, nil
}

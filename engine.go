package advancedauth

import (
	"context"
	"errors"
	"time"

	"github.com/DevDad-Main/advanced-auth/internal"
	"github.com/DevDad-Main/advanced-auth/internal/rate"
	"github.com/DevDad-Main/advanced-auth/jwt"
	"github.com/DevDad-Main/advanced-auth/logging"
	"github.com/DevDad-Main/advanced-auth/password"
)

// Engine is the authentication and session lifecycle engine. Build one with
// [Builder.Build]; all methods are safe for concurrent use afterwards.
type Engine struct {
	config        Config
	logger        logging.Logger
	throttle      *rate.TokenBucket
	registrations *registrationStore
	otpStore      *otpStore
	otpLimiter    *otpRequestLimiter
	passwordHash  *password.Hasher
	loginDecoy    string
	jwtManager    *jwt.Manager
	directory     UserDirectory
	refreshTokens RefreshTokenStore
	mailer        Mailer
}

// AllowRequest spends one token from addr's global bucket. It sits in front
// of every entry point; a denial means nothing downstream ran. A guard
// backend failure denies as well; the error is logged as a fault and the
// check is never skipped.
func (e *Engine) AllowRequest(ctx context.Context, addr string) error {
	if e.throttle == nil {
		return nil
	}

	allowed, err := e.throttle.Allow(ctx, addr)
	if err != nil {
		e.logger.Error(ctx, "request throttle backend failed", "addr", addr, "error", err)
		return ErrGuardUnavailable
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// Login verifies the credentials and mints a token pair. Unknown email and
// wrong password are indistinguishable to the caller; the cause appears
// only in the log.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	if e.directory == nil || e.refreshTokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if plaintext == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash verification against a decoy so the unknown-email
			// path takes as long as a wrong password.
			e.passwordHash.Verify(plaintext, e.loginDecoy)
			e.logger.Warn(ctx, "login failed", "email", email, "reason", "user_not_found")
			return TokenPair{}, ErrInvalidCredentials
		}
		e.logger.Error(ctx, "user directory lookup failed", "email", email, "error", err)
		return TokenPair{}, ErrStoreUnavailable
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		e.logger.Warn(ctx, "login failed", "email", email, "reason", "password_mismatch")
		return TokenPair{}, ErrInvalidCredentials
	}

	if !user.Verified {
		e.logger.Warn(ctx, "login refused", "email", email, "reason", "unverified")
		return TokenPair{}, ErrAccountUnverified
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}

	e.logger.Info(ctx, "login succeeded", "userId", user.ID)
	return pair, nil
}

// Refresh rotates the presented refresh token: the record is consumed
// atomically and a fresh pair is issued. A replayed token finds no record
// and fails, which is how theft of an already-rotated token surfaces.
func (e *Engine) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if e.directory == nil || e.refreshTokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	secret, err := internal.DecodeRefreshToken(presented)
	if err != nil {
		return TokenPair{}, ErrRefreshInvalid
	}

	record, err := e.refreshTokens.Consume(ctx, internal.HashRefreshSecret(secret))
	if err != nil {
		if errors.Is(err, ErrRefreshInvalid) {
			e.logger.Warn(ctx, "refresh rejected", "reason", "unknown_or_replayed")
			return TokenPair{}, ErrRefreshInvalid
		}
		e.logger.Error(ctx, "refresh token consume failed", "error", err)
		return TokenPair{}, ErrStoreUnavailable
	}

	// The consume already removed the record, so an expired token needs no
	// separate cleanup here.
	if time.Now().After(record.ExpiresAt) {
		e.logger.Warn(ctx, "refresh rejected", "userId", record.UserID, "reason", "expired")
		return TokenPair{}, ErrRefreshExpired
	}

	user, err := e.directory.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, ErrRefreshInvalid
		}
		e.logger.Error(ctx, "user directory lookup failed", "userId", record.UserID, "error", err)
		return TokenPair{}, ErrStoreUnavailable
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}

	e.logger.Info(ctx, "refresh token rotated", "userId", user.ID)
	return pair, nil
}

// Logout deletes the presented refresh token. Idempotent: a token that is
// already gone is not an error.
func (e *Engine) Logout(ctx context.Context, presented string) error {
	if e.refreshTokens == nil {
		return ErrEngineNotReady
	}

	secret, err := internal.DecodeRefreshToken(presented)
	if err != nil {
		return nil
	}

	_, err = e.refreshTokens.Consume(ctx, internal.HashRefreshSecret(secret))
	if err != nil && !errors.Is(err, ErrRefreshInvalid) {
		e.logger.Error(ctx, "logout token delete failed", "error", err)
		return ErrStoreUnavailable
	}
	return nil
}

// RevokeAll deletes every refresh token for the user; logout-everywhere
// and the compromise response.
func (e *Engine) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if e.refreshTokens == nil {
		return 0, ErrEngineNotReady
	}

	deleted, err := e.refreshTokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		e.logger.Error(ctx, "revoke all failed", "userId", userID, "error", err)
		return 0, ErrStoreUnavailable
	}

	e.logger.Info(ctx, "refresh tokens revoked", "userId", userID, "count", deleted)
	return deleted, nil
}

// ValidateAccess parses and validates a signed access token, returning its
// claims. Transport middleware calls this for protected routes.
func (e *Engine) ValidateAccess(token string) (*jwt.AccessClaims, error) {
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// issueTokenPair mints a signed access token plus a fresh opaque refresh
// token. Every call creates a new refresh record; nothing is reused.
func (e *Engine) issueTokenPair(ctx context.Context, user UserRecord) (TokenPair, error) {
	access, err := e.jwtManager.CreateAccess(user.ID, user.FullName)
	if err != nil {
		e.logger.Error(ctx, "access token signing failed", "userId", user.ID, "error", err)
		return TokenPair{}, ErrStoreUnavailable
	}

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := time.Now().Add(e.config.Refresh.TTL)
	if err := e.refreshTokens.Create(ctx, user.ID, internal.HashRefreshSecret(secret), expiresAt); err != nil {
		e.logger.Error(ctx, "refresh token create failed", "userId", user.ID, "error", err)
		return TokenPair{}, ErrStoreUnavailable
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: internal.EncodeRefreshToken(secret),
	}, nil
}

package advancedauth

import (
	"context"
	"time"
)

// UserRecord is the durable account record owned by the [UserDirectory].
type UserRecord struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
}

// NewUser is the input for [UserDirectory.Create]. PasswordHash is the
// already-hashed credential; the engine never hands plaintext to the
// directory.
type NewUser struct {
	Email        string
	FullName     string
	PasswordHash string
	Verified     bool
}

// RegistrationInput is the validated signup payload accepted by
// [Engine.Register]. Password is the only plaintext credential the engine
// ever sees, and it is hashed before anything is staged.
type RegistrationInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// TokenPair is an access/refresh token pair minted at login and at each
// rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRecord is the stored side of an opaque refresh token. The
// token value itself is never persisted; stores keep its SHA-256 digest.
type RefreshTokenRecord struct {
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserDirectory is the durable store of verified accounts.
//
// FindByEmail and FindByID return [ErrUserNotFound] when no account
// matches. Create must enforce email uniqueness and return [ErrEmailTaken]
// on violation; the engine pre-checks before staging, but the constraint at
// this layer closes the race window.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, id string) (UserRecord, error)
	Create(ctx context.Context, user NewUser) (UserRecord, error)
}

// RefreshTokenStore persists refresh-token records for rotation and
// revocation.
//
// Consume atomically deletes the record for hash and returns it, so that a
// token presented twice yields the record exactly once; the second caller
// gets [ErrRefreshInvalid]. Implementations over SQL can use
// DELETE ... RETURNING; in-memory implementations a mutex.
type RefreshTokenStore interface {
	Create(ctx context.Context, userID string, hash [32]byte, expiresAt time.Time) error
	Consume(ctx context.Context, hash [32]byte) (RefreshTokenRecord, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Mailer is the mail delivery collaborator. Any error is treated as
// non-retriable within the request; the engine rolls back staged state and
// surfaces [ErrDeliveryFailed].
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

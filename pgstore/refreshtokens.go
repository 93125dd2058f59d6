package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	advancedauth "github.com/DevDad-Main/advanced-auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshTokenStore persists refresh-token records in PostgreSQL, keyed by
// the SHA-256 digest of the token value.
type RefreshTokenStore struct {
	db *pgxpool.Pool
}

// NewRefreshTokenStore wraps the pool.
func NewRefreshTokenStore(db *pgxpool.Pool) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

func (s *RefreshTokenStore) Create(ctx context.Context, userID string, hash [32]byte, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		 VALUES ($1, $2, $3)`,
		hash[:], userID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume deletes the record for hash and returns it in one statement.
// DELETE ... RETURNING makes the single-use guarantee: however many callers
// present the same token concurrently, exactly one row comes back once.
func (s *RefreshTokenStore) Consume(ctx context.Context, hash [32]byte) (advancedauth.RefreshTokenRecord, error) {
	row := s.db.QueryRow(ctx,
		`DELETE FROM refresh_tokens
		 WHERE token_hash = $1
		 RETURNING user_id, expires_at, created_at`,
		hash[:],
	)

	var record advancedauth.RefreshTokenRecord
	if err := row.Scan(&record.UserID, &record.ExpiresAt, &record.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return advancedauth.RefreshTokenRecord{}, advancedauth.ErrRefreshInvalid
		}
		return advancedauth.RefreshTokenRecord{}, fmt.Errorf("consume refresh token: %w", err)
	}

	return record, nil
}

func (s *RefreshTokenStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

package pgstore

import (
	"context"
	"errors"
	"fmt"

	advancedauth "github.com/DevDad-Main/advanced-auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// UserDirectory is the PostgreSQL-backed store of verified accounts.
type UserDirectory struct {
	db *pgxpool.Pool
}

// NewUserDirectory wraps the pool.
func NewUserDirectory(db *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (advancedauth.UserRecord, error) {
	row := d.db.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, is_verified, created_at
		 FROM users
		 WHERE email = $1`,
		email)

	return scanUser(row)
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (advancedauth.UserRecord, error) {
	row := d.db.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, is_verified, created_at
		 FROM users
		 WHERE id = $1`,
		id)

	return scanUser(row)
}

// Create inserts the account. The unique index on email is the final word
// on uniqueness; a violation surfaces as ErrEmailTaken so the engine can
// treat the lost race like the pre-check.
func (d *UserDirectory) Create(ctx context.Context, user advancedauth.NewUser) (advancedauth.UserRecord, error) {
	record := advancedauth.UserRecord{
		ID:           uuid.NewString(),
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		Verified:     user.Verified,
	}

	row := d.db.QueryRow(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, is_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		record.ID, record.Email, record.FullName, record.PasswordHash, record.Verified,
	)

	if err := row.Scan(&record.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return advancedauth.UserRecord{}, advancedauth.ErrEmailTaken
		}
		return advancedauth.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}

	return record, nil
}

func scanUser(row pgx.Row) (advancedauth.UserRecord, error) {
	var u advancedauth.UserRecord
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Verified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return advancedauth.UserRecord{}, advancedauth.ErrUserNotFound
		}
		return advancedauth.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

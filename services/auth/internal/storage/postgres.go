package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, name, email string, passwordHash, provider, photoURL *string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, provider, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, email, password_hash, provider, photo_url, created_at, updated_at
	`, name, email, passwordHash, provider, photoURL)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, provider, photo_url, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, provider, photo_url, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip, userAgent string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at, created_ip, user_agent)
		VALUES ($1, $2, $3, now(), $4, $5)
		RETURNING id
	`, userID, tokenHash, expiresAt, ip, userAgent).Scan(&id)
	return id, err
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`, hash)

	var token RefreshToken
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.RevokedAt, &token.ReplacedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// RotateToken retires the old token and records its replacement. The revoke
// is conditional on the token still being live: when two refresh calls race,
// exactly one sees RowsAffected()==1 and the loser gets ErrTokenRotated.
func (s *Store) RotateToken(ctx context.Context, oldTokenID, userID uuid.UUID, newHash string, expiresAt time.Time, ip, userAgent string) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, oldTokenID)
	if err != nil {
		return uuid.Nil, err
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, ErrTokenRotated
	}

	var newID uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at, created_ip, user_agent)
		VALUES ($1, $2, $3, now(), $4, $5)
		RETURNING id
	`, userID, newHash, expiresAt, ip, userAgent).Scan(&newID); err != nil {
		return uuid.Nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET replaced_by = $2
		WHERE id = $1
	`, oldTokenID, newID); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}

	return newID, nil
}

func (s *Store) RevokeTokenByHash(ctx context.Context, hash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, hash)
	return err
}

func (s *Store) RevokeAllTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}

// UpsertOTP installs the active code for an email, replacing any prior one.
func (s *Store) UpsertOTP(ctx context.Context, email, codeHash string, issuedAt, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO otp_codes (email, code_hash, issued_at, expires_at, verified_at, consumed_at)
		VALUES ($1, $2, $3, $4, NULL, NULL)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at,
		    verified_at = NULL,
		    consumed_at = NULL
	`, email, codeHash, issuedAt, expiresAt)
	return err
}

func (s *Store) GetOTP(ctx context.Context, email string) (*OTPCode, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT email, code_hash, issued_at, expires_at, verified_at, consumed_at
		FROM otp_codes
		WHERE email = $1
	`, email)

	var code OTPCode
	if err := row.Scan(&code.Email, &code.CodeHash, &code.IssuedAt, &code.ExpiresAt, &code.VerifiedAt, &code.ConsumedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (s *Store) MarkOTPVerified(ctx context.Context, email string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE otp_codes
		SET verified_at = $2
		WHERE email = $1 AND verified_at IS NULL AND consumed_at IS NULL
	`, email, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ConsumeOTP(ctx context.Context, email string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE otp_codes
		SET consumed_at = $2
		WHERE email = $1 AND verified_at IS NOT NULL AND consumed_at IS NULL
	`, email, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Provider, &user.PhotoURL, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

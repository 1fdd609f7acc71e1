package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/vaultop/authcore"
)

const uniqueViolation = "23505"

// Store is a pgx-backed [authcore.UserStore] over a `users` table.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps the given connection pool. The pool's lifecycle stays with the
// caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, username, email, new_email, full_name, password_hash,
	totp_secret, is_2fa_enabled, is_active, is_superuser,
	created_at, updated_at`

func (s *Store) GetByUsername(ctx context.Context, username string) (authcore.UserRecord, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (authcore.UserRecord, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (authcore.UserRecord, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (authcore.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		`+where, arg)

	var (
		user       authcore.UserRecord
		newEmail   *string
		totpSecret *string
		fullName   *string
	)
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &newEmail, &fullName,
		&user.PasswordHash, &totpSecret, &user.TwoFactorEnabled,
		&user.Active, &user.Superuser, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, err
	}
	if newEmail != nil {
		user.NewEmail = *newEmail
	}
	if totpSecret != nil {
		user.TOTPSecret = *totpSecret
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	return user, nil
}

func (s *Store) Create(ctx context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, full_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+userColumns, uuid.New(), input.Username, input.Email, input.FullName, input.PasswordHash, input.Active)

	var (
		user       authcore.UserRecord
		newEmail   *string
		totpSecret *string
		fullName   *string
	)
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &newEmail, &fullName,
		&user.PasswordHash, &totpSecret, &user.TwoFactorEnabled,
		&user.Active, &user.Superuser, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authcore.UserRecord{}, authcore.ErrDuplicateUser
		}
		return authcore.UserRecord{}, err
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	return user, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, newHash string) error {
	return s.exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, newHash)
}

func (s *Store) UpdateFullName(ctx context.Context, id uuid.UUID, fullName string) error {
	return s.exec(ctx, `
		UPDATE users
		SET full_name = $2, updated_at = now()
		WHERE id = $1
	`, id, fullName)
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.exec(ctx, `
		UPDATE users
		SET is_active = $2, updated_at = now()
		WHERE id = $1
	`, id, active)
}

func (s *Store) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return s.exec(ctx, `
		UPDATE users
		SET totp_secret = $2, updated_at = now()
		WHERE id = $1
	`, id, secret)
}

func (s *Store) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE users
		SET is_2fa_enabled = TRUE, updated_at = now()
		WHERE id = $1 AND totp_secret IS NOT NULL
	`, id)
}

// DisableTwoFactor clears the flag and the secret in one statement, the
// atomicity the engine contract requires.
func (s *Store) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE users
		SET is_2fa_enabled = FALSE, totp_secret = NULL, updated_at = now()
		WHERE id = $1
	`, id)
}

func (s *Store) SetPendingEmail(ctx context.Context, id uuid.UUID, newEmail string) error {
	return s.exec(ctx, `
		UPDATE users
		SET new_email = $2, updated_at = now()
		WHERE id = $1
	`, id, newEmail)
}

// PromotePendingEmail moves new_email into email and clears it in one
// statement.
func (s *Store) PromotePendingEmail(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE users
		SET email = new_email, new_email = NULL, updated_at = now()
		WHERE id = $1 AND new_email IS NOT NULL
	`, id)
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamtube/internal/domain"
	"streamtube/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	cover_image_url TEXT NOT NULL DEFAULT '',
	refresh_token TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("user: %w", domain.ErrConflict)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ? OR email = ?
LIMIT 1`,
		username,
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id int64, fullName, email string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET full_name = ?, email = ?, updated_at = ?
WHERE id = ?`,
		fullName,
		email,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("user email: %w", domain.ErrConflict)
		}
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res, "update account")
}

func (r *UserRepository) UpdateAvatarURL(ctx context.Context, id int64, url string) error {
	return r.updateColumn(ctx, id, "avatar_url", url)
}

func (r *UserRepository) UpdateCoverImageURL(ctx context.Context, id int64, url string) error {
	return r.updateColumn(ctx, id, "cover_image_url", url)
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.updateColumn(ctx, id, "password_hash", hash)
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET refresh_token = ?, updated_at = ?
WHERE id = ?`,
		value,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return requireRow(res, "set refresh token")
}

// RotateRefreshToken is a compare-and-swap: the UPDATE matches only while the
// stored token still equals expected, so concurrent refreshes with the same
// incoming token cannot both succeed.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id int64, expected, next string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET refresh_token = ?, updated_at = ?
WHERE id = ? AND refresh_token = ?`,
		next,
		time.Now().UTC(),
		id,
		expected,
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("refresh token superseded: %w", domain.ErrUnauthorized)
	}
	return nil
}

func (r *UserRepository) updateColumn(ctx context.Context, id int64, column, value string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET `+column+` = ?, updated_at = ?
WHERE id = ?`,
		value,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return requireRow(res, "update "+column)
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user    domain.User
		refresh sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CoverImageURL,
		&refresh,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if refresh.Valid {
		user.RefreshToken = refresh.String
	}
	return &user, nil
}

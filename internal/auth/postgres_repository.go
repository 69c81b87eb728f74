package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, two_factor_enabled, api_key_prefix, api_key_hash,
		       token_version, created_at, revoked_at`

// PostgresRepository implements UserRepository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new UserRepository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresRepository{pool: pool}
}

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.TwoFactorEnabled,
		&u.APIKeyPrefix, &u.APIKeyHash,
		&u.TokenVersion, &u.CreatedAt, &u.RevokedAt,
	)
}

// Create inserts a new user record.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, password_hash, two_factor_enabled, api_key_prefix, api_key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, token_version, created_at`

	err := r.pool.QueryRow(ctx, query,
		u.Email,
		u.PasswordHash,
		u.TwoFactorEnabled,
		u.APIKeyPrefix,
		u.APIKeyHash,
	).Scan(&u.ID, &u.TokenVersion, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u User
	if err := scanUser(r.pool.QueryRow(ctx, query, id), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &u, nil
}

// GetByEmail retrieves a single user by email (case-insensitive).
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	var u User
	if err := scanUser(r.pool.QueryRow(ctx, query, email), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return &u, nil
}

// FindByKeyPrefix returns active (non-revoked) users matching the given API key prefix.
func (r *PostgresRepository) FindByKeyPrefix(ctx context.Context, prefix string) ([]User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE api_key_prefix = $1 AND revoked_at IS NULL`

	return r.queryUsers(ctx, query, prefix)
}

// List retrieves all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	return r.queryUsers(ctx, query)
}

func (r *PostgresRepository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	return users, nil
}

// Revoke sets revoked_at on a user and bumps its token version so that
// outstanding bearer tokens stop verifying. Returns ErrUserNotFound if the
// user does not exist, and ErrUserRevoked if already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET revoked_at = NOW(), token_version = token_version + 1
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoking user: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking user existence: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrUserRevoked
	}

	return nil
}

// RotateAPIKey replaces the stored key of an active user.
func (r *PostgresRepository) RotateAPIKey(ctx context.Context, id int64, prefix, hash string) error {
	query := `
		UPDATE users
		SET api_key_prefix = $2, api_key_hash = $3
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id, prefix, hash)
	if err != nil {
		return fmt.Errorf("rotating api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAll returns the total number of users in the table (including revoked).
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresLoginRepository implements LoginRepository using PostgreSQL
type PostgresLoginRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresLoginRepository creates a new PostgreSQL login repository
func NewPostgresLoginRepository(db DBTX) *PostgresLoginRepository {
	return &PostgresLoginRepository{db: db}
}

// CreateLogin creates a new login in the database
func (r *PostgresLoginRepository) CreateLogin(ctx context.Context, login Login) (Login, error) {
	query := `
		INSERT INTO login (id, username, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, password_hash, is_active, created_at
	`

	row := r.db.QueryRow(ctx, query,
		login.ID, login.Username, login.PasswordHash, login.IsActive, login.CreatedAt)

	created, err := scanLogin(row)
	if err != nil {
		slog.Error("Failed to create login", "err", err, "username", login.Username)
		return Login{}, fmt.Errorf("failed to create login: %w", err)
	}
	return created, nil
}

// GetLoginByUsername retrieves a login by username
func (r *PostgresLoginRepository) GetLoginByUsername(ctx context.Context, username string) (Login, error) {
	query := `
		SELECT id, username, password_hash, is_active, created_at
		FROM login
		WHERE username = $1
	`

	login, err := scanLogin(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Login{}, ErrLoginNotFound
		}
		slog.Error("Failed to get login by username", "err", err, "username", username)
		return Login{}, fmt.Errorf("failed to get login: %w", err)
	}
	return login, nil
}

// GetLoginByID retrieves a login by id
func (r *PostgresLoginRepository) GetLoginByID(ctx context.Context, id uuid.UUID) (Login, error) {
	query := `
		SELECT id, username, password_hash, is_active, created_at
		FROM login
		WHERE id = $1
	`

	login, err := scanLogin(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Login{}, ErrLoginNotFound
		}
		slog.Error("Failed to get login by id", "err", err, "loginID", id)
		return Login{}, fmt.Errorf("failed to get login: %w", err)
	}
	return login, nil
}

func scanLogin(row pgx.Row) (Login, error) {
	var login Login
	err := row.Scan(
		&login.ID,
		&login.Username,
		&login.PasswordHash,
		&login.IsActive,
		&login.CreatedAt,
	)
	return login, err
}

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, login_id, name, details, permanent_token, signing_secret, created_at, last_request_at`

// CreateDevice creates a new device in the database
func (r *PostgresDeviceRepository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	query := `
		INSERT INTO device (
			id, login_id, name, details, permanent_token, signing_secret, created_at, last_request_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING ` + deviceColumns

	row := r.db.QueryRow(ctx, query,
		device.ID,
		device.LoginID,
		device.Name,
		device.Details,
		device.PermanentToken,
		device.SigningSecret,
		device.CreatedAt,
		device.LastRequestAt,
	)

	created, err := scanDevice(row)
	if err != nil {
		slog.Error("Failed to create device", "err", err, "deviceID", device.ID)
		return Device{}, fmt.Errorf("failed to create device: %w", err)
	}

	slog.Debug("Device created", "deviceID", created.ID, "loginID", created.LoginID)
	return created, nil
}

// GetDeviceByPermanentToken retrieves a device by its permanent token
func (r *PostgresDeviceRepository) GetDeviceByPermanentToken(ctx context.Context, permanentToken string) (Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM device
		WHERE permanent_token = $1
	`

	device, err := scanDevice(r.db.QueryRow(ctx, query, permanentToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device not found by permanent token")
			return Device{}, ErrDeviceNotFound
		}
		slog.Error("Failed to get device by permanent token", "err", err)
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// GetDeviceByID retrieves a device by its id
func (r *PostgresDeviceRepository) GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM device
		WHERE id = $1
	`

	device, err := scanDevice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device not found", "deviceID", id)
			return Device{}, ErrDeviceNotFound
		}
		slog.Error("Failed to get device", "err", err, "deviceID", id)
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// FindDevicesByLogin returns all devices belonging to a login
func (r *PostgresDeviceRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM device
		WHERE login_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, loginID)
	if err != nil {
		slog.Error("Failed to find devices by login", "err", err, "loginID", loginID)
		return nil, fmt.Errorf("failed to find devices by login: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			slog.Error("Failed to scan device", "err", err)
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over devices", "err", err)
		return nil, fmt.Errorf("error iterating over devices: %w", err)
	}

	slog.Debug("Found devices by login", "loginID", loginID, "count", len(devices))
	return devices, nil
}

// TouchDevice advances the device's last request timestamp. GREATEST keeps
// the update monotonic under concurrent refreshes without a transaction.
func (r *PostgresDeviceRepository) TouchDevice(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE device
		SET last_request_at = GREATEST(last_request_at, $2)
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		slog.Error("Failed to touch device", "err", err, "deviceID", id)
		return fmt.Errorf("failed to touch device: %w", err)
	}
	if result.RowsAffected() == 0 {
		slog.Debug("Device not found for touch", "deviceID", id)
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteDevice removes the device if it belongs to the given login
func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, loginID, id uuid.UUID) error {
	query := `
		DELETE FROM device
		WHERE id = $1 AND login_id = $2
	`

	result, err := r.db.Exec(ctx, query, id, loginID)
	if err != nil {
		slog.Error("Failed to delete device", "err", err, "deviceID", id, "loginID", loginID)
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		slog.Debug("Device not found for delete", "deviceID", id, "loginID", loginID)
		return ErrDeviceNotFound
	}

	slog.Debug("Device deleted", "deviceID", id)
	return nil
}

// DeleteDeviceIfInactiveSince removes the device while its last request
// timestamp is still at or before cutoff. Affecting zero rows is not an
// error: either a concurrent refresh extended the window or a concurrent
// expiry already removed the row.
func (r *PostgresDeviceRepository) DeleteDeviceIfInactiveSince(ctx context.Context, id uuid.UUID, cutoff time.Time) error {
	query := `
		DELETE FROM device
		WHERE id = $1 AND last_request_at <= $2
	`

	result, err := r.db.Exec(ctx, query, id, cutoff)
	if err != nil {
		slog.Error("Failed to delete expired device", "err", err, "deviceID", id)
		return fmt.Errorf("failed to delete expired device: %w", err)
	}
	if result.RowsAffected() == 0 {
		slog.Debug("Expired device already gone or refreshed", "deviceID", id)
		return nil
	}

	slog.Debug("Expired device deleted", "deviceID", id)
	return nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var device Device
	err := row.Scan(
		&device.ID,
		&device.LoginID,
		&device.Name,
		&device.Details,
		&device.PermanentToken,
		&device.SigningSecret,
		&device.CreatedAt,
		&device.LastRequestAt,
	)
	return device, err
}

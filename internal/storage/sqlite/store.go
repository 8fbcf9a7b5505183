// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps writes applied in arrival order, which the
	// command mailbox's last-write-wins contract depends on, and keeps
	// :memory: databases from splitting across pool connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// User methods

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return storage.ErrConflict{Resource: "user", ID: user.Username}
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "user", ID: username}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "user", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Session methods

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "session", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// Device methods

func (s *Store) CreateDevice(ctx context.Context, device *domain.Device) error {
	var snapshot any
	if device.LastTelemetry != nil {
		data, err := json.Marshal(device.LastTelemetry)
		if err != nil {
			return fmt.Errorf("failed to marshal last_telemetry: %w", err)
		}
		snapshot = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (owner_id, device_id, name, place, description, lat, lng, created_at, last_telemetry, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, device.OwnerID, device.DeviceID, device.Name, device.Place, device.Description,
		device.Lat, device.Lng, device.CreatedAt, snapshot, device.LastSeenAt)
	if isUniqueViolation(err) {
		return storage.ErrConflict{Resource: "device", ID: device.DeviceID}
	}
	return err
}

func (s *Store) GetDevice(ctx context.Context, ownerID, deviceID string) (*domain.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner_id, device_id, name, place, description, lat, lng, created_at, last_telemetry, last_seen_at
		FROM devices WHERE owner_id = ? AND device_id = ?
	`, ownerID, deviceID)

	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "device", ID: deviceID}
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (s *Store) ListDevices(ctx context.Context, ownerID string) ([]*domain.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, device_id, name, place, description, lat, lng, created_at, last_telemetry, last_seen_at
		FROM devices WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (s *Store) DeviceExists(ctx context.Context, deviceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM devices WHERE device_id = ? LIMIT 1
	`, deviceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CountDevices(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count)
	return count, err
}

// UpdateDeviceTelemetry updates every device row matching the bare device
// id, so owners sharing a device id all see the same stream.
func (s *Store) UpdateDeviceTelemetry(ctx context.Context, deviceID string, snapshot domain.Payload, seenAt time.Time) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET last_telemetry = ?, last_seen_at = ? WHERE device_id = ?
	`, string(data), seenAt, deviceID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var device domain.Device
	var snapshot sql.NullString
	var seenAt sql.NullTime

	err := row.Scan(&device.OwnerID, &device.DeviceID, &device.Name, &device.Place,
		&device.Description, &device.Lat, &device.Lng, &device.CreatedAt, &snapshot, &seenAt)
	if err != nil {
		return nil, err
	}

	if snapshot.Valid && snapshot.String != "" {
		if err := json.Unmarshal([]byte(snapshot.String), &device.LastTelemetry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last_telemetry: %w", err)
		}
	}
	if seenAt.Valid {
		device.LastSeenAt = &seenAt.Time
	}
	return &device, nil
}

// Event methods

func (s *Store) AppendEvent(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (device_id, ts, payload) VALUES (?, ?, ?)
	`, event.DeviceID, event.Timestamp, string(data))
	return err
}

func (s *Store) ListEvents(ctx context.Context, deviceID string, limit int) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, ts, payload FROM events
		WHERE device_id = ? ORDER BY ts DESC, id DESC LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		var payload string
		if err := rows.Scan(&event.DeviceID, &event.Timestamp, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (s *Store) PruneEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Command methods

func (s *Store) PutCommand(ctx context.Context, cmd *domain.Command) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO commands (device_id, cmd, ts) VALUES (?, ?, ?)
	`, cmd.DeviceID, cmd.Cmd, cmd.Timestamp)
	return err
}

// TakeCommand atomically fetches and deletes the pending command for the
// device. Deletion is irreversible; a command taken here is never
// redelivered.
func (s *Store) TakeCommand(ctx context.Context, deviceID string) (*domain.Command, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var cmd domain.Command
	err = tx.QueryRowContext(ctx, `
		SELECT device_id, cmd, ts FROM commands WHERE device_id = ?
	`, deviceID).Scan(&cmd.DeviceID, &cmd.Cmd, &cmd.Timestamp)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "command", ID: deviceID}
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM commands WHERE device_id = ?", deviceID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)

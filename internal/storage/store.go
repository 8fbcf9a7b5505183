// Package storage provides storage abstractions for the telemetry relay.
package storage

import (
	"context"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
)

// Store is the interface for persistent storage. All mutable state lives
// behind this interface; implementations are opened at startup and closed
// at shutdown.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// Sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Devices
	CreateDevice(ctx context.Context, device *domain.Device) error
	GetDevice(ctx context.Context, ownerID, deviceID string) (*domain.Device, error)
	ListDevices(ctx context.Context, ownerID string) ([]*domain.Device, error)
	DeviceExists(ctx context.Context, deviceID string) (bool, error)
	CountDevices(ctx context.Context) (int, error)
	UpdateDeviceTelemetry(ctx context.Context, deviceID string, snapshot domain.Payload, seenAt time.Time) error

	// Events
	AppendEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, deviceID string, limit int) ([]*domain.Event, error)
	PruneEventsBefore(ctx context.Context, before time.Time) (int64, error)

	// Commands
	PutCommand(ctx context.Context, cmd *domain.Command) error
	TakeCommand(ctx context.Context, deviceID string) (*domain.Command, error)

	// Lifecycle
	Close() error
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// ErrConflict is returned when a uniqueness constraint is violated.
type ErrConflict struct {
	Resource string
	ID       string
}

func (e ErrConflict) Error() string {
	return e.Resource + " already exists: " + e.ID
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	_, ok := err.(ErrConflict)
	return ok
}

// Package devices is the ownership-scoped gateway to device state.
//
// Every dashboard read or mutation goes through here and is validated
// against the session-bound owner. An owner mismatch reports not found
// rather than forbidden, so a logged-in user cannot probe whether another
// owner's device id exists.
package devices

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"
)

// History limits. Callers may ask for fewer events; requests above
// MaxHistoryLimit are clamped, and absent or invalid limits fall back to
// DefaultHistoryLimit.
const (
	DefaultHistoryLimit = 200
	MaxHistoryLimit     = 500
)

// ErrMissingDeviceID is returned when a registration has no device id.
var ErrMissingDeviceID = errors.New("missing deviceId")

// Metadata is the owner-supplied description of a device at registration.
// Devices are immutable after creation; there is no edit path.
type Metadata struct {
	Name        string
	Place       string
	Description string
	Lat         *float64
	Lng         *float64
}

// Gateway authorizes and serves device state for owners.
type Gateway struct {
	store storage.Store
	now   func() time.Time
}

// NewGateway creates a gateway over the given store.
func NewGateway(store storage.Store) *Gateway {
	return &Gateway{store: store, now: time.Now}
}

// List returns the owner's devices, newest first.
func (g *Gateway) List(ctx context.Context, ownerID string) ([]*domain.Device, error) {
	return g.store.ListDevices(ctx, ownerID)
}

// Register creates a device for the owner. The (owner, device id) pair
// must be unique; the same device id under a different owner is allowed.
func (g *Gateway) Register(ctx context.Context, ownerID, deviceID string, meta Metadata) (*domain.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}

	device := &domain.Device{
		OwnerID:     ownerID,
		DeviceID:    deviceID,
		Name:        meta.Name,
		Place:       meta.Place,
		Description: meta.Description,
		Lat:         meta.Lat,
		Lng:         meta.Lng,
		CreatedAt:   g.now(),
	}
	if err := g.store.CreateDevice(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Get returns the owner's device, or not found on an owner mismatch.
func (g *Gateway) Get(ctx context.Context, ownerID, deviceID string) (*domain.Device, error) {
	return g.store.GetDevice(ctx, ownerID, deviceID)
}

// Snapshot returns the device's latest telemetry, or nil if none has
// arrived yet. The device must belong to the owner.
func (g *Gateway) Snapshot(ctx context.Context, ownerID, deviceID string) (domain.Payload, error) {
	device, err := g.store.GetDevice(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	return device.LastTelemetry, nil
}

// History returns up to min(limit, MaxHistoryLimit) most recent events for
// the owner's device, newest first.
func (g *Gateway) History(ctx context.Context, ownerID, deviceID string, limit int) ([]*domain.Event, error) {
	if _, err := g.store.GetDevice(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return g.store.ListEvents(ctx, deviceID, limit)
}

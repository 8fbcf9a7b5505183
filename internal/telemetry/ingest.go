// Package telemetry accepts device-reported payloads and maintains the
// per-device history and latest-snapshot view.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"
)

// Ingestor stamps, records, and publishes device telemetry.
type Ingestor struct {
	store storage.Store
	now   func() time.Time
}

// NewIngestor creates a telemetry ingestor over the given store.
func NewIngestor(store storage.Store) *Ingestor {
	return &Ingestor{store: store, now: time.Now}
}

// Ingest accepts a raw payload from a device. The device must already be
// registered by an owner; unknown device ids are rejected with a not found
// error. On success the payload is stamped with the device id and a server
// timestamp, appended to the event history, and written as the latest
// snapshot of every device registration matching the device id.
//
// The history append and the snapshot update are two separate writes.
// Consistency between them is eventual, not atomic: an event can land
// without the snapshot following, and the next ingestion heals the gap.
func (i *Ingestor) Ingest(ctx context.Context, deviceID string, raw domain.Payload) (domain.Payload, error) {
	exists, err := i.store.DeviceExists(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check device: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound{Resource: "device", ID: deviceID}
	}

	now := i.now()
	stamped := raw.Stamp(deviceID, now)

	event := &domain.Event{
		DeviceID:  deviceID,
		Timestamp: now,
		Payload:   stamped,
	}
	if err := i.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := i.store.UpdateDeviceTelemetry(ctx, deviceID, stamped, now); err != nil {
		return nil, fmt.Errorf("failed to update snapshot: %w", err)
	}
	return stamped, nil
}

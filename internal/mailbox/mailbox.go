// Package mailbox implements the per-device single-slot command queue.
//
// Each device has at most one pending command. Setting a command replaces
// any unconsumed one (last-write-wins), and consuming is an atomic
// fetch-and-delete: a command read but never acted on is gone for good.
// Delivery is at-most-once, fire-and-forget.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"
)

// Mailbox is the command mailbox service. Ownership of the device must be
// validated by the caller; the mailbox itself is keyed by device id alone
// because command consumption is device-authenticated.
type Mailbox struct {
	store storage.Store
	now   func() time.Time
}

// New creates a mailbox over the given store.
func New(store storage.Store) *Mailbox {
	return &Mailbox{store: store, now: time.Now}
}

// Set upserts the pending command for the device, replacing any unconsumed
// value and its timestamp.
func (m *Mailbox) Set(ctx context.Context, deviceID, cmd string) error {
	record := &domain.Command{
		DeviceID:  deviceID,
		Cmd:       cmd,
		Timestamp: m.now(),
	}
	if err := m.store.PutCommand(ctx, record); err != nil {
		return fmt.Errorf("failed to set command: %w", err)
	}
	return nil
}

// Consume atomically removes and returns the pending command for the
// device. An empty mailbox returns (nil, nil): no pending command is a
// normal, expected outcome, not an error.
func (m *Mailbox) Consume(ctx context.Context, deviceID string) (*domain.Command, error) {
	cmd, err := m.store.TakeCommand(ctx, deviceID)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume command: %w", err)
	}
	return cmd, nil
}

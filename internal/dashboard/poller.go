package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
)

// DefaultPollInterval matches the browser dashboard's refresh cadence.
const DefaultPollInterval = time.Second

// Status is the user-visible device status derived from polling.
type Status string

const (
	// StatusUnknown means no poll has completed yet.
	StatusUnknown Status = "unknown"
	// StatusOnline means the latest snapshot is fresh.
	StatusOnline Status = "online"
	// StatusStale means the latest snapshot is too old.
	StatusStale Status = "stale"
	// StatusNoData means the device is registered but has never reported.
	StatusNoData Status = "no-data"
	// StatusNeedsLogin means the session was rejected; the loop keeps
	// polling at cadence regardless.
	StatusNeedsLogin Status = "needs-login"
	// StatusError means the last poll failed; the next interval retries.
	StatusError Status = "error"
)

// State is the poller's view of one device.
type State struct {
	Status    Status
	Snapshot  domain.Payload
	CheckedAt time.Time
}

// Poller runs the dashboard polling loop for one device. At most one poll
// request is in flight at a time; an interval that fires while a request
// is pending is skipped. State reads are safe from any goroutine, so
// several viewers can share one poller.
type Poller struct {
	client   *Client
	deviceID string
	interval time.Duration
	now      func() time.Time

	// OnUpdate, when set before Run, is called after every completed poll.
	OnUpdate func(State)

	inFlight atomic.Bool

	mu    sync.Mutex
	state State
}

// NewPoller creates a poller for the device. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(client *Client, deviceID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		client:   client,
		deviceID: deviceID,
		interval: interval,
		now:      time.Now,
		state:    State{Status: StatusUnknown},
	}
}

// Run polls until the context is cancelled. Errors do not stop the loop;
// they surface through the state and the next interval tries again.
func (p *Poller) Run(ctx context.Context) {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce issues a single poll unless one is already pending.
func (p *Poller) pollOnce(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer p.inFlight.Store(false)

		snapshot, err := p.client.Snapshot(ctx, p.deviceID)
		now := p.now()

		p.mu.Lock()
		switch {
		case errors.Is(err, ErrUnauthorized):
			p.state.Status = StatusNeedsLogin
		case err != nil:
			// Keep the last snapshot visible; only the badge degrades.
			p.state.Status = StatusError
		case snapshot == nil:
			p.state.Status = StatusNoData
			p.state.Snapshot = nil
		default:
			p.state.Snapshot = snapshot
			if domain.ClassifyFreshness(snapshot, now) == domain.FreshnessFresh {
				p.state.Status = StatusOnline
			} else {
				p.state.Status = StatusStale
			}
		}
		p.state.CheckedAt = now
		state := p.state
		callback := p.OnUpdate
		p.mu.Unlock()

		if callback != nil {
			callback(state)
		}
	}()
}

// State returns the most recent poll result.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SendCommand issues a fire-and-forget command for the polled device.
func (p *Poller) SendCommand(ctx context.Context, cmd string) error {
	return p.client.SendCommand(ctx, p.deviceID, cmd)
}

package domain

import "time"

// FreshnessWindow is how recent a snapshot's server timestamp must be for
// the device to count as online.
const FreshnessWindow = 5 * time.Second

// Freshness classifies a telemetry snapshot's age.
type Freshness string

const (
	// FreshnessUnknown means no snapshot has arrived yet.
	FreshnessUnknown Freshness = "unknown"
	// FreshnessFresh means the snapshot is younger than FreshnessWindow.
	FreshnessFresh Freshness = "fresh"
	// FreshnessStale means the snapshot is FreshnessWindow old or older.
	FreshnessStale Freshness = "stale"
)

// ClassifyFreshness classifies a snapshot by its server timestamp. A
// snapshot exactly FreshnessWindow old is stale; the boundary is strict.
func ClassifyFreshness(p Payload, now time.Time) Freshness {
	if p == nil {
		return FreshnessUnknown
	}
	ts := p.ServerTs()
	if ts == 0 {
		return FreshnessUnknown
	}
	age := now.UnixMilli() - ts
	if age < FreshnessWindow.Milliseconds() {
		return FreshnessFresh
	}
	return FreshnessStale
}

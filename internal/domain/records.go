// Package domain defines the core records of the telemetry relay.
package domain

import "time"

// User is a registered dashboard user. Usernames are stored lower-cased
// and are unique case-insensitively.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Device is a registered device. The (OwnerID, DeviceID) pair is unique;
// DeviceID alone is not, so two owners may register the same physical
// device id. LastTelemetry and LastSeenAt stay nil until the first
// telemetry push arrives.
type Device struct {
	OwnerID       string
	DeviceID      string
	Name          string
	Place         string
	Description   string
	Lat           *float64
	Lng           *float64
	CreatedAt     time.Time
	LastTelemetry Payload
	LastSeenAt    *time.Time
}

// Event is one telemetry ingestion, append-only and never mutated.
type Event struct {
	DeviceID  string
	Timestamp time.Time
	Payload   Payload
}

// Command is the single pending command for a device. At most one exists
// per device; a new command overwrites any unconsumed one.
type Command struct {
	DeviceID  string
	Cmd       string
	Timestamp time.Time
}

// Session is a server-side login session referenced by an opaque cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a session for the user expiring after ttl.
func NewSession(id, userID string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampMergesServerFields(t *testing.T) {
	now := time.Now()
	raw := Payload{"door": "closed", "distance_cm": 12}

	stamped := raw.Stamp("garage-01", now)

	assert.Equal(t, "closed", stamped["door"])
	assert.Equal(t, 12, stamped["distance_cm"])
	assert.Equal(t, "garage-01", stamped[DeviceIDKey])
	assert.Equal(t, now.UnixMilli(), stamped.ServerTs())
}

func TestStampDoesNotMutateOriginal(t *testing.T) {
	raw := Payload{"door": "closed"}
	_ = raw.Stamp("garage-01", time.Now())

	_, hasTs := raw[ServerTsKey]
	assert.False(t, hasTs)
}

func TestStampOverridesSpoofedFields(t *testing.T) {
	// A device cannot claim another identity or timestamp.
	now := time.Now()
	raw := Payload{DeviceIDKey: "other", ServerTsKey: int64(1)}

	stamped := raw.Stamp("garage-01", now)

	assert.Equal(t, "garage-01", stamped[DeviceIDKey])
	assert.Equal(t, now.UnixMilli(), stamped.ServerTs())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	session := NewSession("s-1", "u-1", now, time.Hour)

	assert.False(t, session.Expired(now))
	assert.False(t, session.Expired(now.Add(59*time.Minute)))
	assert.True(t, session.Expired(now.Add(time.Hour)))
	assert.True(t, session.Expired(now.Add(2*time.Hour)))
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFreshnessBoundary(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		age  time.Duration
		want Freshness
	}{
		{"just ingested", 0, FreshnessFresh},
		{"one ms under window", 4999 * time.Millisecond, FreshnessFresh},
		{"exactly at window", 5000 * time.Millisecond, FreshnessStale},
		{"one ms over window", 5001 * time.Millisecond, FreshnessStale},
		{"long gone", time.Hour, FreshnessStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Payload{ServerTsKey: now.Add(-tt.age).UnixMilli()}
			assert.Equal(t, tt.want, ClassifyFreshness(p, now))
		})
	}
}

func TestClassifyFreshnessNoSnapshot(t *testing.T) {
	assert.Equal(t, FreshnessUnknown, ClassifyFreshness(nil, time.Now()))
}

func TestClassifyFreshnessNoTimestamp(t *testing.T) {
	p := Payload{"door": "open"}
	assert.Equal(t, FreshnessUnknown, ClassifyFreshness(p, time.Now()))
}

func TestClassifyFreshnessJSONNumber(t *testing.T) {
	// Payloads decoded from JSON carry float64 timestamps.
	now := time.Now()
	p := Payload{ServerTsKey: float64(now.UnixMilli())}
	assert.Equal(t, FreshnessFresh, ClassifyFreshness(p, now))
}

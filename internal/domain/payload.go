package domain

import "time"

// Well-known payload keys. Devices report free-form key/value telemetry;
// the relay adds DeviceIDKey and ServerTsKey when stamping.
const (
	DeviceIDKey = "deviceId"
	ServerTsKey = "serverTs"
)

// Payload is an arbitrary key/value telemetry payload. Unknown fields pass
// through the relay unchanged.
type Payload map[string]any

// Stamp returns a copy of the payload with the device id and a server
// timestamp (unix milliseconds) merged in, overriding any device-reported
// values for those keys.
func (p Payload) Stamp(deviceID string, now time.Time) Payload {
	stamped := make(Payload, len(p)+2)
	for k, v := range p {
		stamped[k] = v
	}
	stamped[DeviceIDKey] = deviceID
	stamped[ServerTsKey] = now.UnixMilli()
	return stamped
}

// ServerTs extracts the server timestamp in unix milliseconds, or 0 if the
// payload has none. JSON decoding yields float64 numbers, so both numeric
// representations are accepted.
func (p Payload) ServerTs() int64 {
	switch v := p[ServerTsKey].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

package sqlite

// schema contains the database schema DDL. The indexes mirror the lookup
// paths: username uniqueness, (owner, device) uniqueness with a secondary
// bare device-id index for ingestion, event history by device and time,
// and the single-slot command table keyed by device.
const schema = `
-- Users
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Sessions
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);

-- Devices
CREATE TABLE IF NOT EXISTS devices (
    owner_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    place TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    lat REAL,
    lng REAL,
    created_at DATETIME NOT NULL,
    last_telemetry TEXT,
    last_seen_at DATETIME,
    PRIMARY KEY (owner_id, device_id)
);
CREATE INDEX IF NOT EXISTS idx_devices_device_id ON devices(device_id);

-- Telemetry events (append-only)
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id TEXT NOT NULL,
    ts DATETIME NOT NULL,
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_device_ts ON events(device_id, ts DESC);

-- Command mailbox (one slot per device)
CREATE TABLE IF NOT EXISTS commands (
    device_id TEXT PRIMARY KEY,
    cmd TEXT NOT NULL,
    ts DATETIME NOT NULL
);
`

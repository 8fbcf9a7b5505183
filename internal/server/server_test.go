package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jwulff/picorelay/internal/auth"
	"github.com/jwulff/picorelay/internal/devices"
	"github.com/jwulff/picorelay/internal/mailbox"
	"github.com/jwulff/picorelay/internal/storage/sqlite"
	"github.com/jwulff/picorelay/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(DefaultConfig(),
		auth.NewService(store, auth.DefaultSessionTTL),
		devices.NewGateway(store),
		mailbox.New(store),
		telemetry.NewIngestor(store),
		store,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// newSessionClient returns a cookie-carrying client registered as the
// given user.
func newSessionClient(t *testing.T, ts *httptest.Server, username string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp := postJSON(t, client, ts.URL+"/api/register", map[string]any{
		"username": username,
		"password": "secret",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return client
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerDevice(t *testing.T, client *http.Client, ts *httptest.Server, deviceID string) {
	t.Helper()
	resp := postJSON(t, client, ts.URL+"/api/devices", map[string]any{"deviceId": deviceID})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)

	body := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(0), body["devices"])
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	client := newSessionClient(t, ts, "alice")

	// Session works.
	resp, err := client.Get(ts.URL + "/api/devices")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout invalidates it.
	resp = postJSON(t, client, ts.URL+"/api/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/devices")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Login restores access.
	resp = postJSON(t, client, ts.URL+"/api/login", map[string]any{"username": "ALICE", "password": "secret"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/devices")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	_ = newSessionClient(t, ts, "alice")

	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/login", map[string]any{"username": "alice", "password": "wrong"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)
	_ = newSessionClient(t, ts, "alice")

	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/register", map[string]any{"username": "alice", "password": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/devices"},
		{http.MethodGet, "/api/telemetry/garage-01"},
		{http.MethodGet, "/api/events/garage-01"},
	} {
		r, err := http.NewRequest(req.method, ts.URL+req.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, req.path)
	}

	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/cmd/garage-01", map[string]any{"cmd": "OPEN"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTelemetryUnknownDevice(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/telemetry/ghost", map[string]any{"door": "open"})
	body := decodeJSON[map[string]any](t, resp)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown deviceId", body["error"])
}

func TestGarageScenario(t *testing.T) {
	ts := newTestServer(t)
	ownerA := newSessionClient(t, ts, "owner-a")
	ownerB := newSessionClient(t, ts, "owner-b")

	registerDevice(t, ownerA, ts, "garage-01")

	// Snapshot is null before any telemetry.
	resp, err := ownerA.Get(ts.URL + "/api/telemetry/garage-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nullSnapshot := decodeJSON[*map[string]any](t, resp)
	assert.Nil(t, nullSnapshot)

	// Device pushes telemetry without a session.
	before := time.Now().UnixMilli()
	resp = postJSON(t, http.DefaultClient, ts.URL+"/api/telemetry/garage-01", map[string]any{
		"door":        "closed",
		"distance_cm": 12,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := time.Now().UnixMilli()

	// Owner A sees the payload plus the server stamp.
	resp, err = ownerA.Get(ts.URL + "/api/telemetry/garage-01")
	require.NoError(t, err)
	snapshot := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "closed", snapshot["door"])
	assert.Equal(t, float64(12), snapshot["distance_cm"])
	serverTs := int64(snapshot["serverTs"].(float64))
	assert.GreaterOrEqual(t, serverTs, before)
	assert.LessOrEqual(t, serverTs, after)

	// Owner B never registered this device and gets 404, not 403.
	resp, err = ownerB.Get(ts.URL + "/api/telemetry/garage-01")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventHistory(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	for i := 0; i < 5; i++ {
		resp := postJSON(t, http.DefaultClient, ts.URL+"/api/telemetry/garage-01", map[string]any{"seq": i})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := owner.Get(ts.URL + "/api/events/garage-01?limit=3")
	require.NoError(t, err)
	events := decodeJSON[[]map[string]any](t, resp)

	require.Len(t, events, 3)
	// Newest first: the most recent event carries the just-ingested payload.
	payload := events[0]["payload"].(map[string]any)
	assert.Equal(t, float64(4), payload["seq"])
}

func TestEventHistoryDefaultLimit(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	resp, err := owner.Get(ts.URL + "/api/events/garage-01?limit=bogus")
	require.NoError(t, err)
	events := decodeJSON[[]map[string]any](t, resp)
	assert.Empty(t, events)
}

func TestCommandRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	// Empty mailbox reads as null.
	resp, err := http.Get(ts.URL + "/api/cmd/garage-01")
	require.NoError(t, err)
	empty := decodeJSON[*map[string]any](t, resp)
	assert.Nil(t, empty)

	// Two commands in quick succession; the overwrite wins.
	r := postJSON(t, owner, ts.URL+"/api/cmd/garage-01", map[string]any{"cmd": "OPEN"})
	r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)
	r = postJSON(t, owner, ts.URL+"/api/cmd/garage-01", map[string]any{"cmd": "CLOSE"})
	r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	resp, err = http.Get(ts.URL + "/api/cmd/garage-01")
	require.NoError(t, err)
	cmd := decodeJSON[map[string]any](t, resp)
	require.NotNil(t, cmd)
	assert.Equal(t, "CLOSE", cmd["cmd"])
	assert.Greater(t, cmd["ts"].(float64), float64(0))

	// Consume-once: the slot is empty again.
	resp, err = http.Get(ts.URL + "/api/cmd/garage-01")
	require.NoError(t, err)
	empty = decodeJSON[*map[string]any](t, resp)
	assert.Nil(t, empty)
}

func TestCommandMissingCmd(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	resp := postJSON(t, owner, ts.URL+"/api/cmd/garage-01", map[string]any{})
	body := decodeJSON[map[string]any](t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing cmd", body["error"])
}

func TestCommandOwnerMismatch(t *testing.T) {
	ts := newTestServer(t)
	ownerA := newSessionClient(t, ts, "owner-a")
	ownerB := newSessionClient(t, ts, "owner-b")
	registerDevice(t, ownerA, ts, "garage-01")

	resp := postJSON(t, ownerB, ts.URL+"/api/cmd/garage-01", map[string]any{"cmd": "OPEN"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterDeviceConflict(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	resp := postJSON(t, owner, ts.URL+"/api/devices", map[string]any{"deviceId": "garage-01"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterDeviceMissingID(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")

	resp := postJSON(t, owner, ts.URL+"/api/devices", map[string]any{"name": "no id"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListDevicesNewestFirst(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")

	for i := 0; i < 3; i++ {
		registerDevice(t, owner, ts, fmt.Sprintf("dev-%d", i))
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := owner.Get(ts.URL + "/api/devices")
	require.NoError(t, err)
	list := decodeJSON[[]map[string]any](t, resp)

	require.Len(t, list, 3)
	assert.Equal(t, "dev-2", list[0]["deviceId"])
	assert.Equal(t, "dev-0", list[2]["deviceId"])
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t)
	owner := newSessionClient(t, ts, "alice")
	registerDevice(t, owner, ts, "garage-01")

	huge := map[string]any{"blob": string(bytes.Repeat([]byte("x"), 80*1024))}
	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/telemetry/garage-01", huge)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

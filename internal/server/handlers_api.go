package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jwulff/picorelay/internal/devices"
	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Health stays ok even when the count fails; the store being slow is
	// not the same as the process being dead.
	count, err := s.store.CountDevices(r.Context())
	if err != nil {
		count = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"ts":      time.Now().UnixMilli(),
		"devices": count,
	})
}

// Device listing and registration

type deviceResponse struct {
	DeviceID      string         `json:"deviceId"`
	Name          string         `json:"name"`
	Place         string         `json:"place"`
	Description   string         `json:"description"`
	Lat           *float64       `json:"lat"`
	Lng           *float64       `json:"lng"`
	CreatedAt     time.Time      `json:"createdAt"`
	LastTelemetry domain.Payload `json:"lastTelemetry"`
	LastSeenAt    *time.Time     `json:"lastSeenAt"`
}

func toDeviceResponse(d *domain.Device) deviceResponse {
	return deviceResponse{
		DeviceID:      d.DeviceID,
		Name:          d.Name,
		Place:         d.Place,
		Description:   d.Description,
		Lat:           d.Lat,
		Lng:           d.Lng,
		CreatedAt:     d.CreatedAt,
		LastTelemetry: d.LastTelemetry,
		LastSeenAt:    d.LastSeenAt,
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.sessionUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := s.gateway.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]deviceResponse, 0, len(list))
	for _, d := range list {
		resp = append(resp, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerDeviceRequest struct {
	DeviceID    string   `json:"deviceId"`
	Name        string   `json:"name"`
	Place       string   `json:"place"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.sessionUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req registerDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	device, err := s.gateway.Register(r.Context(), ownerID, req.DeviceID, devices.Metadata{
		Name:        req.Name,
		Place:       req.Place,
		Description: req.Description,
		Lat:         req.Lat,
		Lng:         req.Lng,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(device))
}

// Telemetry

func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")

	var raw domain.Payload
	if err := decodeBody(r, &raw); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := s.ingestor.Ingest(r.Context(), deviceID, raw); err != nil {
		if storage.IsNotFound(err) {
			writeErrorMessage(w, http.StatusNotFound, "unknown deviceId")
			return
		}
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.sessionUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := s.gateway.Snapshot(r.Context(), ownerID, r.PathValue("deviceID"))
	if err != nil {
		writeError(w, err)
		return
	}

	// A registered device with no telemetry yet reads as null.
	writeJSON(w, http.StatusOK, snapshot)
}

// Event history

type eventResponse struct {
	DeviceID string         `json:"deviceId"`
	Ts       time.Time      `json:"ts"`
	Payload  domain.Payload `json:"payload"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.sessionUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := s.gateway.History(r.Context(), ownerID, r.PathValue("deviceID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, eventResponse{DeviceID: e.DeviceID, Ts: e.Timestamp, Payload: e.Payload})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Command mailbox

type commandRequest struct {
	Cmd string `json:"cmd"`
}

func (s *Server) handleSetCommand(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.sessionUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Cmd == "" {
		writeErrorMessage(w, http.StatusBadRequest, "missing cmd")
		return
	}

	deviceID := r.PathValue("deviceID")
	if _, err := s.gateway.Get(r.Context(), ownerID, deviceID); err != nil {
		writeError(w, err)
		return
	}

	if err := s.mailbox.Set(r.Context(), deviceID, req.Cmd); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleConsumeCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.mailbox.Consume(r.Context(), r.PathValue("deviceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if cmd == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cmd": cmd.Cmd,
		"ts":  cmd.Timestamp.UnixMilli(),
	})
}

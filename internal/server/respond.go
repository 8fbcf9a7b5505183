package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jwulff/picorelay/internal/auth"
	"github.com/jwulff/picorelay/internal/devices"
	"github.com/jwulff/picorelay/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// writeError maps service errors onto the HTTP taxonomy: no session 401,
// unknown resource or owner mismatch 404, duplicates and bad input 400,
// everything else a logged 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
	case storage.IsNotFound(err):
		writeErrorMessage(w, http.StatusNotFound, "device not found")
	case storage.IsConflict(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, devices.ErrMissingDeviceID):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

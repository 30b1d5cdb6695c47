package api

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON body of every /api/v1 failure.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned in Error.Code.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternal        = "internal_error"
	ErrCodeUpgradeRequired = "upgrade_required"

	// ErrCodeHistoryDisabled means the registry backend keeps no change
	// history (json backend).
	ErrCodeHistoryDisabled = "history_disabled"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUpgradeRequired answers a plain GET on the WebSocket endpoint.
func writeUpgradeRequired(w http.ResponseWriter) {
	w.Header().Set("Upgrade", "websocket")
	writeError(w, http.StatusBadRequest, ErrCodeUpgradeRequired, "websocket upgrade required")
}

// writeHistoryDisabled answers /api/v1/history when no History
// repository is configured.
func writeHistoryDisabled(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, ErrCodeHistoryDisabled,
		"settings history requires the sqlite registry backend")
}

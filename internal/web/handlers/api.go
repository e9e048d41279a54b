package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// jsonResponse is the envelope for all API JSON responses.
type jsonResponse struct {
	OK       bool   `json:"ok,omitempty"`
	Error    string `json:"error,omitempty"`
	BackupID string `json:"backupId,omitempty"`
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

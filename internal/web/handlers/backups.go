package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/receiving"
	"github.com/amekkawi/arq-console/internal/recipient"
	"github.com/amekkawi/arq-console/internal/telemetry"
	"github.com/go-chi/chi/v5"
)

const (
	ClientKeyHeader = "X-Client-Key"

	DefaultMaxBackupBodyBytes = 1 << 20
)

type ClientVerifier interface {
	VerifyClient(ctx context.Context, clientID, clientKey string) (receiving.ClientStatus, error)
}

type BackupTypeSupport interface {
	Supports(deliveryType, backupType string) bool
}

type HTTPPostSubmitter interface {
	SubmitHTTPPost(ctx context.Context, backupType, clientID, clientKey string, body []byte) (string, error)
}

// BackupHandler accepts backup results posted directly by clients.
type BackupHandler struct {
	verifier     ClientVerifier
	parsers      BackupTypeSupport
	intake       HTTPPostSubmitter
	maxBodyBytes int64
}

func NewBackupHandler(verifier ClientVerifier, parsers BackupTypeSupport, intake HTTPPostSubmitter, maxBodyBytes int64) *BackupHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBackupBodyBytes
	}
	return &BackupHandler{
		verifier:     verifier,
		parsers:      parsers,
		intake:       intake,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandlePost handles POST /v1/backups/{backupType}/{clientId}. The client key
// is read from the X-Client-Key header and the body is the raw report.
func (h *BackupHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	backupType := chi.URLParam(r, "backupType")
	clientID := chi.URLParam(r, "clientId")
	clientKey := strings.TrimSpace(r.Header.Get(ClientKeyHeader))

	if !recipient.IsValidBackupType(backupType) || !h.parsers.Supports(models.DeliveryTypeHTTP, backupType) {
		h.reject(w, http.StatusNotFound, "unsupported backup type")
		return
	}
	if !recipient.IsValidClientID(clientID) {
		h.reject(w, http.StatusNotFound, "client not found")
		return
	}
	if !recipient.IsValidClientKey(clientKey) {
		h.reject(w, http.StatusUnauthorized, "missing or invalid client key")
		return
	}

	status, err := h.verifier.VerifyClient(r.Context(), clientID, clientKey)
	if err != nil {
		slog.Error("failed to verify client", "client_id", clientID, "error", err)
		h.reject(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch status {
	case receiving.ClientNotFound:
		h.reject(w, http.StatusNotFound, "client not found")
		return
	case receiving.ClientKeyMismatch:
		h.reject(w, http.StatusUnauthorized, "invalid client key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.reject(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.reject(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) == 0 {
		h.reject(w, http.StatusBadRequest, "request body is required")
		return
	}

	backupID, err := h.intake.SubmitHTTPPost(r.Context(), backupType, clientID, clientKey, body)
	if err != nil {
		slog.Error("failed to submit backup result", "client_id", clientID, "backup_type", backupType, "error", err)
		h.reject(w, http.StatusInternalServerError, "internal server error")
		return
	}

	telemetry.DeliveriesTotal.WithLabelValues(models.DeliveryTypeHTTP, "accepted").Inc()
	slog.Info("accepted backup result", "backup_id", backupID, "client_id", clientID, "backup_type", backupType, "bytes", len(body))
	writeJSON(w, http.StatusAccepted, jsonResponse{OK: true, BackupID: backupID})
}

func (h *BackupHandler) reject(w http.ResponseWriter, status int, msg string) {
	telemetry.DeliveriesTotal.WithLabelValues(models.DeliveryTypeHTTP, "rejected").Inc()
	writeJSON(w, status, jsonResponse{Error: msg})
}

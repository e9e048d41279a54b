package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
)

type OrphanFinder interface {
	FindOrphanedBackupResultContent(ctx context.Context, deliveryType string, minimumAge time.Duration) ([]models.OrphanedBackupResultContent, error)
}

// OrphanHandler lists received content that was never archived.
type OrphanHandler struct {
	content       OrphanFinder
	defaultMinAge time.Duration
}

func NewOrphanHandler(content OrphanFinder, defaultMinAge time.Duration) *OrphanHandler {
	return &OrphanHandler{content: content, defaultMinAge: defaultMinAge}
}

type orphanListResponse struct {
	Orphans []models.OrphanedBackupResultContent `json:"orphans"`
}

// HandleList handles GET /api/orphans. Query parameters:
//
//	deliveryType  email or http; both when empty
//	minAge        seconds since the content was received
func (h *OrphanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	deliveryTypes := []string{models.DeliveryTypeEmail, models.DeliveryTypeHTTP}
	switch dt := r.URL.Query().Get("deliveryType"); dt {
	case "":
	case models.DeliveryTypeEmail, models.DeliveryTypeHTTP:
		deliveryTypes = []string{dt}
	default:
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: "deliveryType must be email or http"})
		return
	}

	minAge := h.defaultMinAge
	if raw := r.URL.Query().Get("minAge"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			writeJSON(w, http.StatusBadRequest, jsonResponse{Error: "minAge must be a non-negative number of seconds"})
			return
		}
		minAge = time.Duration(secs) * time.Second
	}

	resp := orphanListResponse{Orphans: []models.OrphanedBackupResultContent{}}
	for _, dt := range deliveryTypes {
		found, err := h.content.FindOrphanedBackupResultContent(r.Context(), dt, minAge)
		if err != nil {
			slog.Error("failed to list orphaned content", "delivery_type", dt, "error", err)
			writeJSON(w, http.StatusInternalServerError, jsonResponse{Error: "internal server error"})
			return
		}
		resp.Orphans = append(resp.Orphans, found...)
	}
	writeJSON(w, http.StatusOK, resp)
}

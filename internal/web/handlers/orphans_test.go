package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
)

type fakeOrphanFinder struct {
	byType map[string][]models.OrphanedBackupResultContent
	minAge []time.Duration
	err    error
}

func (f *fakeOrphanFinder) FindOrphanedBackupResultContent(_ context.Context, deliveryType string, minimumAge time.Duration) ([]models.OrphanedBackupResultContent, error) {
	f.minAge = append(f.minAge, minimumAge)
	if f.err != nil {
		return nil, f.err
	}
	return f.byType[deliveryType], nil
}

func getOrphans(h *OrphanHandler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/orphans"+query, nil)
	rr := httptest.NewRecorder()
	h.HandleList(rr, req)
	return rr
}

func TestHandleList(t *testing.T) {
	finder := &fakeOrphanFinder{byType: map[string][]models.OrphanedBackupResultContent{
		"email": {{DeliveryType: "email", BackupID: "email/m1"}},
		"http":  {{DeliveryType: "http", BackupID: "http/d1"}},
	}}
	h := NewOrphanHandler(finder, time.Hour)

	rr := getOrphans(h, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp orphanListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Orphans) != 2 {
		t.Fatalf("expected 2 orphans, got %d", len(resp.Orphans))
	}
	if finder.minAge[0] != time.Hour {
		t.Fatalf("expected default min age, got %v", finder.minAge[0])
	}

	finder.minAge = nil
	rr = getOrphans(h, "?deliveryType=http&minAge=30")
	resp = orphanListResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Orphans) != 1 || resp.Orphans[0].BackupID != "http/d1" {
		t.Fatalf("unexpected orphans: %+v", resp.Orphans)
	}
	if len(finder.minAge) != 1 || finder.minAge[0] != 30*time.Second {
		t.Fatalf("unexpected min age calls: %v", finder.minAge)
	}
}

func TestHandleList_BadInput(t *testing.T) {
	h := NewOrphanHandler(&fakeOrphanFinder{}, time.Hour)
	for _, q := range []string{"?deliveryType=ftp", "?minAge=-1", "?minAge=soon"} {
		if rr := getOrphans(h, q); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rr.Code)
		}
	}

	h = NewOrphanHandler(&fakeOrphanFinder{err: errors.New("list failed")}, time.Hour)
	if rr := getOrphans(h, ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHandleHealth(t *testing.T) {
	cases := []struct {
		name string
		db   Pinger
		want int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		NewHealthHandler(c.db).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, rr.Code)
		}
	}
}

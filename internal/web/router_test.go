package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/ratelimit"
	"github.com/amekkawi/arq-console/internal/receiving"
	"github.com/amekkawi/arq-console/internal/web/handlers"
)

type matchAll struct{}

func (matchAll) VerifyClient(context.Context, string, string) (receiving.ClientStatus, error) {
	return receiving.ClientMatch, nil
}

func (matchAll) Supports(string, string) bool { return true }

func (matchAll) SubmitHTTPPost(context.Context, string, string, string, []byte) (string, error) {
	return "http/d1", nil
}

func (matchAll) FindOrphanedBackupResultContent(context.Context, string, time.Duration) ([]models.OrphanedBackupResultContent, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	limiter := ratelimit.NewLimiter(0.001, 1)
	t.Cleanup(limiter.Stop)
	return NewRouter(RouterDeps{
		BackupHandler: handlers.NewBackupHandler(matchAll{}, matchAll{}, matchAll{}, 0),
		HealthHandler: handlers.NewHealthHandler(nil),
		OrphanHandler: handlers.NewOrphanHandler(matchAll{}, time.Hour),
		Limiter:       limiter,
		AdminToken:    "admin",
		Metrics:       http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method, path, auth string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/orphans", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/orphans", "Bearer admin", http.StatusOK},
		{http.MethodGet, "/v1/backups/json/c1", "", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, nil)
		if c.auth != "" {
			req.Header.Set("Authorization", c.auth)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != c.want {
			t.Errorf("%s %s: expected %d, got %d", c.method, c.path, c.want, rr.Code)
		}
	}
}

func TestRouter_BackupPostRateLimited(t *testing.T) {
	router := newTestRouter(t)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/backups/json/c1", strings.NewReader("{}"))
		req.Header.Set(handlers.ClientKeyHeader, "k1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post(); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}

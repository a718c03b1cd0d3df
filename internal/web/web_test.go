package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"untiscal/internal/config"
	syncer "untiscal/internal/sync"
)

type fakeStatus struct {
	res syncer.Result
	ok  bool
}

func (f *fakeStatus) LastResult() (syncer.Result, bool) { return f.res, f.ok }

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CalendarPath = filepath.Join(dir, "calendar.ics")
	cfg.ExamCalendarPath = filepath.Join(dir, "exams.ics")
	return cfg
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewServer(testServerConfig(t), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCalendarEndpoints(t *testing.T) {
	cfg := testServerConfig(t)
	srv := httptest.NewServer(NewServer(cfg, nil).Handler())
	defer srv.Close()

	// Nothing generated yet.
	resp, err := http.Get(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, os.WriteFile(cfg.CalendarPath, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o600))

	resp, err = http.Get(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestStatusEndpoint(t *testing.T) {
	status := &fakeStatus{
		res: syncer.Result{
			RanAt:      time.Date(2025, 10, 20, 6, 0, 0, 0, time.UTC),
			Events:     12,
			MainEvents: 10,
			ExamEvents: 2,
			Changes:    1,
			Notified:   true,
		},
		ok: true,
	}
	srv := httptest.NewServer(NewServer(testServerConfig(t), status).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestBasicAuth(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	srv := httptest.NewServer(NewServer(cfg, nil).Handler())
	defer srv.Close()

	// /health stays open.
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Everything else requires credentials.
	resp, err = http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	require.NoError(t, err)
	req.SetBasicAuth("u", "p")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

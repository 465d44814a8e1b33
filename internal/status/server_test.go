package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbreports/internal/cabinet"
	"wbreports/internal/config"
	"wbreports/internal/session"
)

func summary() *session.Summary {
	mau := config.Cabinet{Name: "MAU", ID: "1"}
	mab := config.Cabinet{Name: "MAB", ID: "2"}
	return &session.Summary{
		RunID:    "run-1",
		Date:     time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local),
		Started:  time.Now(),
		Duration: 90 * time.Second,
		Outcomes: []session.Outcome{
			{Cabinet: mau, Result: &cabinet.Result{ArchiveFile: "data/10.12.2025/mau_10.12.2025.xlsx"}, Duration: time.Minute},
			{Cabinet: mab, Err: errors.New("download timed out"), Step: cabinet.StepAwaitDownload, Duration: 30 * time.Second},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthBeforeFirstRun(t *testing.T) {
	r := NewRouter(NewTracker(), nil, nil)

	rec := get(t, r, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Nil(t, h.LastOK)
	assert.Zero(t, h.Runs)
}

func TestHealthDegradedAfterFailedCabinet(t *testing.T) {
	tr := NewTracker()
	tr.Begin()
	assert.True(t, tr.Health().Running)
	tr.Finish(summary(), nil)

	rec := get(t, NewRouter(tr, nil, nil), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.Running)
	assert.Equal(t, 1, h.Runs)
	require.NotNil(t, h.LastOK)
	assert.False(t, *h.LastOK)
}

func TestLastRun(t *testing.T) {
	tr := NewTracker()
	r := NewRouter(tr, nil, nil)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/runs/last").Code)

	tr.Finish(summary(), nil)
	rec := get(t, r, "/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var last RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, "10.12.2025", last.Date)
	assert.Equal(t, 1, last.Succeeded)
	assert.Equal(t, 1, last.Failed)
	require.Len(t, last.Cabinets, 2)
	assert.Equal(t, "data/10.12.2025/mau_10.12.2025.xlsx", last.Cabinets[0].File)
	assert.Equal(t, string(cabinet.StepAwaitDownload), last.Cabinets[1].Step)
	assert.Contains(t, last.Error, "1 of 2 cabinets failed")
}

func TestFatalRunError(t *testing.T) {
	tr := NewTracker()
	tr.Finish(&session.Summary{Date: time.Now()}, errors.New("failed to start browser"))

	last := tr.Last()
	require.NotNil(t, last)
	assert.Equal(t, "failed to start browser", last.Error)
	assert.Equal(t, "degraded", tr.Health().Status)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "wbreports_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(t, NewRouter(NewTracker(), reg, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wbreports_test_total 1")
}

func TestMetricsAbsentWithoutRegistry(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, NewRouter(NewTracker(), nil, nil), "/metrics").Code)
}

func TestServerStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ln.Addr().String(), NewRouter(NewTracker(), nil, nil), nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

package run

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchsheet/pkg/core/config"
	"pitchsheet/pkg/core/store"
	"pitchsheet/pkg/models"
)

type runCall struct {
	runID      string
	ticker     string
	periodType models.PeriodType
	numPeriods int
}

type fakeRunner struct {
	calls chan runCall
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: make(chan runCall, 4)}
}

func (f *fakeRunner) Run(_ context.Context, runID, ticker string, periodType models.PeriodType, numPeriods int) error {
	f.calls <- runCall{runID, ticker, periodType, numPeriods}
	return nil
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *store.MemoryRunRepo, *fakeRunner, *Handler) {
	t.Helper()
	repo := store.NewMemoryRunRepo()
	runner := newFakeRunner()
	h := NewHandler(repo, runner, opts)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, repo, runner, h
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func postRun(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartRunAppliesDefaults(t *testing.T) {
	srv, repo, runner, h := newTestServer(t, Options{})

	resp := postRun(t, srv, `{"ticker":" aapl "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run models.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, models.RunPending, run.Status)
	assert.Equal(t, "AAPL", run.Ticker)
	assert.Equal(t, models.PeriodAnnual, run.PeriodType)
	assert.Equal(t, 5, run.NumPeriods)
	require.NotNil(t, run.Config)
	assert.Equal(t, "1.0.0", run.Config.MappingVersion)

	select {
	case call := <-runner.calls:
		assert.Equal(t, runCall{run.RunID, "AAPL", models.PeriodAnnual, 5}, call)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline was not started")
	}
	h.Wait()

	stored, err := repo.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", stored.Ticker)
}

func TestStartRunQuarterly(t *testing.T) {
	srv, _, runner, h := newTestServer(t, Options{})

	resp := postRun(t, srv, `{"ticker":"MSFT","period_type":"10-Q","num_periods":8}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	call := <-runner.calls
	assert.Equal(t, models.PeriodQuarterly, call.periodType)
	assert.Equal(t, 8, call.numPeriods)
	h.Wait()
}

func TestStartRunValidation(t *testing.T) {
	srv, _, runner, _ := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"missing ticker", `{}`, "ticker is required"},
		{"blank ticker", `{"ticker":"   "}`, "ticker is required"},
		{"long ticker", `{"ticker":"ABCDEFGHIJK"}`, "ticker must be at most 10"},
		{"bad period type", `{"ticker":"AAPL","period_type":"8-K"}`, "period_type must be one of"},
		{"too many periods", `{"ticker":"AAPL","num_periods":21}`, "num_periods must be at most 20"},
		{"negative periods", `{"ticker":"AAPL","num_periods":-1}`, "num_periods must be at least 1"},
		{"malformed json", `{"ticker":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRun(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decodeDetail(t, resp), tt.detail)
		})
	}
	assert.Empty(t, runner.calls)
}

func TestStartRunConfiguredMaxPeriods(t *testing.T) {
	srv, _, _, _ := newTestServer(t, Options{Defaults: config.RunDefaults{
		PeriodType: models.PeriodAnnual, NumPeriods: 4, MaxPeriods: 8,
	}})

	resp := postRun(t, srv, `{"ticker":"AAPL","num_periods":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "num_periods must be at most 8", decodeDetail(t, resp))
}

func TestGetRun(t *testing.T) {
	srv, repo, _, _ := newTestServer(t, Options{})
	ctx := context.Background()
	require.NoError(t, repo.CreateRun(ctx, &models.Run{
		RunID: "run-1", Status: models.RunPending, Ticker: "AAPL",
		PeriodType: models.PeriodAnnual, NumPeriods: 5, CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.InsertStepLog(ctx, "run-1", models.StepLog{StepName: "resolve_company", Status: "completed"}))

	resp, err := http.Get(srv.URL + "/api/run/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run models.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "run-1", run.RunID)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, "resolve_company", run.Steps[0].StepName)
}

func TestGetRunNotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/api/run/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Run not found", decodeDetail(t, resp))
}

func TestDownload(t *testing.T) {
	srv, repo, _, _ := newTestServer(t, Options{})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "AAPL_10K_20250314.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK-fake-workbook"), 0644))

	for _, id := range []string{"done", "running", "no-artifact", "gone"} {
		require.NoError(t, repo.CreateRun(ctx, &models.Run{
			RunID: id, Status: models.RunPending, Ticker: "AAPL",
			PeriodType: models.PeriodAnnual, NumPeriods: 5, CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, repo.UpdateRunStatus(ctx, "done", store.RunUpdate{Status: models.RunCompleted, ArtifactPath: path}))
	require.NoError(t, repo.UpdateRunStatus(ctx, "running", store.RunUpdate{Status: models.RunRunning}))
	require.NoError(t, repo.UpdateRunStatus(ctx, "no-artifact", store.RunUpdate{Status: models.RunCompleted}))
	require.NoError(t, repo.UpdateRunStatus(ctx, "gone", store.RunUpdate{
		Status: models.RunCompleted, ArtifactPath: filepath.Join(t.TempDir(), "missing.xlsx"),
	}))

	t.Run("completed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/run/done/download")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "AAPL_10K_20250314.xlsx")
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "PK-fake-workbook", string(body))
	})

	cases := []struct {
		id     string
		status int
		detail string
	}{
		{"running", http.StatusBadRequest, "Run is not completed (status: running)"},
		{"no-artifact", http.StatusNotFound, "No workbook artifact found"},
		{"gone", http.StatusNotFound, "Workbook file not found on disk"},
		{"unknown", http.StatusNotFound, "Run not found"},
	}
	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/run/" + tc.id + "/download")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.detail, decodeDetail(t, resp))
		})
	}
}

func TestHistory(t *testing.T) {
	srv, repo, _, _ := newTestServer(t, Options{})
	ctx := context.Background()

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `[]`, string(raw))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.CreateRun(ctx, &models.Run{
			RunID: id, Status: models.RunPending, Ticker: "AAPL",
			PeriodType: models.PeriodAnnual, NumPeriods: 5, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	resp, err = http.Get(srv.URL + "/api/history?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	var items []models.HistoryItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].RunID)
	assert.Equal(t, "mid", items[1].RunID)

	bad, err := http.Get(srv.URL + "/api/history?limit=zero")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestCORS(t *testing.T) {
	srv, _, _, _ := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/run", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pitchsheet_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, _, _, _ := newTestServer(t, Options{Gatherer: reg})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "pitchsheet_test_total 1")

	noMetrics, _, _, _ := newTestServer(t, Options{})
	resp2, err := http.Get(noMetrics.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

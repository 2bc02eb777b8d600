package scan

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "hci-sched", SilenceUsage: true, SilenceErrors: true}
	InitScan(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func serve(t *testing.T, method, path string, status int, body string) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, method, r.Method)
		assert.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	t.Setenv("HCI_SCHEDULER_API_URL", ts.URL)
}

func TestScan_Started(t *testing.T) {
	serve(t, http.MethodPost, "/v1/runs", http.StatusAccepted, `{"run_id":"r1","status":"running"}`)

	out, err := execute(t, "scan")
	require.NoError(t, err)
	assert.Equal(t, "Scan r1 started (running)\n", out)
}

func TestScan_AlreadyRunning(t *testing.T) {
	serve(t, http.MethodPost, "/v1/runs", http.StatusConflict, `{"error":"scan already running"}`)

	_, err := execute(t, "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan already running")
}

func TestScanStatus_Snapshot(t *testing.T) {
	serve(t, http.MethodGet, "/v1/status", http.StatusOK, `{
		"state":"running",
		"daemon":"active",
		"current":{"id":"r9","trigger_date":"2026-03-02","status":"running","started_at":"2026-03-02T14:00:00Z"},
		"next_due":{"schedule_id":"s1","name":"nightly","hour":14,"minute":0,"at":"2026-03-03T14:00:00Z"},
		"at":"2026-03-02T14:00:05Z"
	}`)

	out, err := execute(t, "scan-status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:  running")
	assert.Contains(t, out, "Daemon: active")
	assert.Contains(t, out, "Current run: r9")
	assert.Contains(t, out, "nightly at 2026-03-03T14:00:00Z")
}

func TestScanStatus_NoSchedules(t *testing.T) {
	serve(t, http.MethodGet, "/v1/status", http.StatusOK, `{"state":"idle","at":"2026-03-02T14:00:05Z"}`)

	out, err := execute(t, "scan-status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:  idle")
	assert.Contains(t, out, "no schedules")
}

func TestScanStatus_ByID(t *testing.T) {
	serve(t, http.MethodGet, "/v1/runs/r1", http.StatusOK,
		`{"id":"r1","schedule_id":"s1","trigger_date":"2026-03-02","status":"succeeded"}`)

	out, err := execute(t, "scan-status", "--id", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "2026-03-02")
}

func TestScanRuns_OnDemandTrigger(t *testing.T) {
	serve(t, http.MethodGet, "/v1/runs", http.StatusOK,
		`{"items":[{"id":"r2","schedule_id":null,"trigger_date":"2026-03-02","status":"failed"}],"total":5}`)

	out, err := execute(t, "scan-runs")
	require.NoError(t, err)
	assert.Contains(t, out, "on-demand")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Showing 1 of 5 runs")
}

func TestScanLogs_DefaultsToLatest(t *testing.T) {
	serve(t, http.MethodGet, "/v1/runs/latest/logs", http.StatusOK,
		`{"run_id":"r3","status":"succeeded","lines":["sweeping 10.0.0.0/24","scan complete: 2 hosts up across 1 targets"]}`)

	out, err := execute(t, "scan-logs")
	require.NoError(t, err)
	assert.Equal(t, "Run r3 (succeeded)\nsweeping 10.0.0.0/24\nscan complete: 2 hosts up across 1 targets\n", out)
}

func TestScanCancel_NotRunning(t *testing.T) {
	serve(t, http.MethodPost, "/v1/runs/r4/cancel", http.StatusConflict, `{"error":"run is not running"}`)

	_, err := execute(t, "scan-cancel", "--id", "r4")
	require.Error(t, err)
	assert.Equal(t, "API error (409): run is not running", err.Error())
}

func TestScanCancel(t *testing.T) {
	serve(t, http.MethodPost, "/v1/runs/r5/cancel", http.StatusOK, `{"id":"r5","status":"cancelled"}`)

	out, err := execute(t, "scan-cancel", "--id", "r5")
	require.NoError(t, err)
	assert.Equal(t, "Scan r5 cancelled\n", out)
}

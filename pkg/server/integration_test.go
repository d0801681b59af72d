package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/gpiolog/pkg/bridge"
	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/producer"
	"github.com/nicktill/gpiolog/pkg/server/monitor"
	"github.com/nicktill/gpiolog/pkg/snapshot"
	"github.com/nicktill/gpiolog/pkg/store"
	"github.com/nicktill/gpiolog/pkg/viewer"
)

type stack struct {
	bridge       *Bridge
	bridgeURL    string
	client       *bridge.Client
	viewer       *Viewer
	router       *mux.Router
	snapshotPath string
}

// newStack runs a remote-mode bridge over HTTP and a viewer that copies the
// bridge's database from the host path.
func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()

	b, err := InitializeBridge(config.Bridge{
		DBPath: filepath.Join(dir, "bridge", "database.db"),
		Mode:   config.ModeRemote,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	bridgeRouter := mux.NewRouter()
	SetupBridgeRoutes(bridgeRouter, b, config.ModeRemote)
	bridgeSrv := httptest.NewServer(bridgeRouter)
	t.Cleanup(bridgeSrv.Close)

	ledger, err := snapshot.OpenLedger(snapshot.LedgerConfig{InMemory: true})
	require.NoError(t, err)

	cfg := config.Viewer{
		Exporter: config.Exporter{
			SnapshotPath: filepath.Join(dir, "Desktop", "gpio_data.db"),
			SourcePath:   b.Store.Path(),
		},
		Port:      "5000",
		BridgeURL: bridgeSrv.URL,
		LedgerDir: filepath.Join(dir, "ledger"),
	}
	v := InitializeViewer(cfg, ledger, nil)
	t.Cleanup(func() { v.Close() })

	router := mux.NewRouter()
	SetupRoutes(router, v, cfg.Port)

	return &stack{
		bridge:       b,
		bridgeURL:    bridgeSrv.URL,
		client:       bridge.NewClient(bridgeSrv.URL, 5*time.Second),
		viewer:       v,
		router:       router,
		snapshotPath: cfg.SnapshotPath,
	}
}

func (s *stack) logData(t *testing.T, pin, led int) {
	t.Helper()
	var ok bool
	require.NoError(t, s.client.Call(context.Background(), producer.MethodLogData, &ok, pin, led))
	require.True(t, ok)
}

func (s *stack) do(t *testing.T, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func TestE2E_LogAndView(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 1)
	s.logData(t, 0, 0)

	var data viewer.DataResponse
	rec := s.do(t, http.MethodGet, "/api/data?limit=1", &data)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, data.Error)
	assert.Equal(t, 2, data.Total)
	require.Len(t, data.Entries, 1)
	assert.Equal(t, 0, data.Entries[0].PinState)

	var stats viewer.StatsResponse
	s.do(t, http.MethodGet, "/api/stats", &stats)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, map[string]int{"0": 1, "1": 1}, stats.PinStateCounts)
	assert.Positive(t, stats.DatabaseSizeKB)

	rec = s.do(t, http.MethodGet, "/api/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=gpio_log_"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)

	var exports viewer.ExportsResponse
	s.do(t, http.MethodGet, "/api/exports", &exports)
	assert.Equal(t, 3, exports.Count)
}

func TestE2E_Clear(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 1)

	var data viewer.DataResponse
	s.do(t, http.MethodGet, "/api/data", &data)
	require.Equal(t, 1, data.Total)
	require.FileExists(t, s.snapshotPath)

	var clear viewer.ClearResponse
	rec := s.do(t, http.MethodPost, "/api/clear", &clear)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, clear.Success, clear.Message)
	assert.NoFileExists(t, s.snapshotPath)

	s.do(t, http.MethodGet, "/api/data", &data)
	assert.Equal(t, 0, data.Total)
}

func TestE2E_ClearWithBridgeDown(t *testing.T) {
	s := newStack(t)
	s.viewer.Service = viewer.NewService(
		snapshot.New(&snapshot.FileLocator{Path: s.bridge.Store.Path()}),
		s.snapshotPath,
		viewer.WithRemote(bridge.NewClient("http://127.0.0.1:1", time.Second)),
	)
	h := viewer.NewHandler(s.viewer.Service, nil)

	rec := httptest.NewRecorder()
	h.HandleClear(rec, httptest.NewRequest(http.MethodPost, "/api/clear", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var clear viewer.ClearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clear))
	assert.False(t, clear.Success)
}

func TestE2E_HealthAndStorage(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 0)

	var data viewer.DataResponse
	s.do(t, http.MethodGet, "/api/data", &data)

	var health HealthResponse
	rec := s.do(t, http.MethodGet, "/api/health", &health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Export.TotalExports)

	var usage monitor.Usage
	rec = s.do(t, http.MethodGet, "/api/storage", &usage)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, usage.Paths[s.snapshotPath])
}

func TestE2E_Dashboard(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/data")
}

func TestHealth_DegradedAfterRepeatedFailures(t *testing.T) {
	em := &monitor.ExportMonitor{}
	for i := 0; i < 4; i++ {
		em.RecordFailure(assert.AnError)
	}

	rec := httptest.NewRecorder()
	handleHealth(em)(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, 4, health.Export.ConsecutiveErrors)
}

func TestBridge_Health(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 1)

	resp, err := http.Get(s.bridgeURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health BridgeHealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, config.ModeRemote, health.Mode)
	assert.Equal(t, 1, health.Entries)
	assert.Contains(t, health.Methods, producer.MethodLogData)
}

func TestBridge_GetAllDataAndExports(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 1)
	s.logData(t, 0, 0)
	ctx := context.Background()

	var samples []store.Sample
	require.NoError(t, s.client.Call(ctx, producer.MethodGetAllData, &samples))
	require.Len(t, samples, 2)
	assert.Less(t, samples[0].ID, samples[1].ID)

	dir := t.TempDir()
	var dbPath string
	require.NoError(t, s.client.Call(ctx, producer.MethodExportDatabase, &dbPath, filepath.Join(dir, "export.db")))
	copied, err := store.OpenSnapshot(dbPath)
	require.NoError(t, err)
	defer copied.Close()
	count, err := copied.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var csvPath string
	require.NoError(t, s.client.Call(ctx, producer.MethodExportCSV, &csvPath, filepath.Join(dir, "gpio_log.csv")))
	assert.FileExists(t, csvPath)
}

func TestInitializeBridge_TimerMode(t *testing.T) {
	b, err := InitializeBridge(config.Bridge{
		DBPath:       filepath.Join(t.TempDir(), "database.db"),
		Mode:         config.ModeTimer,
		TickInterval: time.Second,
	})
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Ticker)
	assert.NotContains(t, b.RPC.Methods(), producer.MethodLogData)
	assert.Contains(t, b.RPC.Methods(), producer.MethodClearLog)
}

func TestInitializeBridge_InvalidMode(t *testing.T) {
	_, err := InitializeBridge(config.Bridge{DBPath: filepath.Join(t.TempDir(), "database.db"), Mode: "cron"})
	assert.ErrorContains(t, err, "invalid mode")
}

func TestLedgerTasks_StopCleanly(t *testing.T) {
	ledger, err := snapshot.OpenLedger(snapshot.LedgerConfig{InMemory: true})
	require.NoError(t, err)
	defer ledger.Close()

	old := snapshot.ExportRecord{ID: "old", StartedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, ledger.Record(context.Background(), old))

	var wg sync.WaitGroup
	stopPrune := make(chan bool)
	stopGC := make(chan bool)
	wg.Add(2)
	go RunLedgerPrune(ledger, 24*time.Hour, stopPrune, &wg)
	go RunLedgerGC(ledger, stopGC, &wg)

	require.Eventually(t, func() bool {
		records, err := ledger.Recent(context.Background(), 0)
		return err == nil && len(records) == 0
	}, 2*time.Second, 10*time.Millisecond)

	close(stopPrune)
	close(stopGC)
	wg.Wait()
}

func TestBroadcastData_PushesToDashboards(t *testing.T) {
	s := newStack(t)
	s.logData(t, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.viewer.Hub.Run(ctx)
	go BroadcastData(ctx, s.viewer.Service, s.viewer.Hub, 20*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(s.viewer.Hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var update viewer.Update
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "data_update", update.Type)
	assert.Equal(t, 1, update.Data.Total)
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/gpiolog/pkg/bridge"
	"github.com/nicktill/gpiolog/pkg/httpx"
	"github.com/nicktill/gpiolog/pkg/server/monitor"
	"github.com/nicktill/gpiolog/pkg/viewer"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

var startTime = time.Now()

// HealthResponse represents the viewer health check response.
type HealthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	Uptime  string               `json:"uptime"`
	Export  monitor.ExportStatus `json:"export"`
}

// BridgeHealthResponse represents the bridge health check response.
type BridgeHealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Uptime  string   `json:"uptime"`
	Mode    string   `json:"mode"`
	Methods []string `json:"methods"`
	Entries int      `json:"entries"`
}

// handleHealth returns viewer health, degraded while exports keep failing.
func handleHealth(exportMonitor *monitor.ExportMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !exportMonitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Version: Version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Export:  exportMonitor.Status(),
		})
	}
}

// handleStorageUsage returns disk usage of the snapshot and ledger.
func handleStorageUsage(storageMonitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := storageMonitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// handleBridgeHealth returns bridge health, unhealthy when the store cannot
// be read.
func handleBridgeHealth(b *Bridge, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := BridgeHealthResponse{
			Status:  "healthy",
			Version: Version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Mode:    mode,
			Methods: b.RPC.Methods(),
		}
		statusCode := http.StatusOK

		count, err := b.Store.Count(r.Context())
		if err != nil {
			resp.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
		resp.Entries = count

		httpx.RespondJSON(w, statusCode, resp)
	}
}

// SetupRoutes configures all HTTP routes for the viewer.
func SetupRoutes(router *mux.Router, v *Viewer, port string) {
	router.Use(httpx.LogRequests)
	router.Use(corsMiddleware(port))

	api := router.PathPrefix("/api").Subrouter()

	// Snapshot-backed views
	api.HandleFunc("/data", v.Handler.HandleData).Methods("GET")
	api.HandleFunc("/stats", v.Handler.HandleStats).Methods("GET")
	api.HandleFunc("/export/csv", v.Handler.HandleExportCSV).Methods("GET")
	api.HandleFunc("/clear", v.Handler.HandleClear).Methods("POST")

	// Export history and health
	api.HandleFunc("/exports", v.Handler.HandleExports).Methods("GET")
	api.HandleFunc("/storage", handleStorageUsage(v.StorageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(v.ExportMonitor)).Methods("GET")

	// WebSocket for live updates
	api.HandleFunc("/ws", v.Handler.HandleWebSocket).Methods("GET")

	router.HandleFunc("/", v.Handler.HandleIndex).Methods("GET")
}

// SetupBridgeRoutes configures the bridge's RPC and health routes.
func SetupBridgeRoutes(router *mux.Router, b *Bridge, mode string) {
	router.Use(httpx.LogRequests)
	b.RPC.Routes(router)
	router.HandleFunc("/health", handleBridgeHealth(b, mode)).Methods("GET")
}

// Compile-time check that the bridge client satisfies the viewer's remote.
var _ viewer.RemoteCaller = (*bridge.Client)(nil)

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package viewer

import (
	"bytes"
	_ "embed"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/export"
	"github.com/nicktill/gpiolog/pkg/httpx"
	"github.com/nicktill/gpiolog/pkg/snapshot"
)

//go:embed web/index.html
var dashboardHTML []byte

// ExportsResponse is the payload of GET /api/exports.
type ExportsResponse struct {
	Exports []snapshot.ExportRecord `json:"exports"`
	Count   int                     `json:"count"`
}

// Handler serves the viewer's HTTP API.
type Handler struct {
	service *Service
	hub     *Hub
	now     func() time.Time
}

// NewHandler creates a handler over service. hub may be nil, in which case
// the WebSocket endpoint answers 503.
func NewHandler(service *Service, hub *Hub) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		now:     time.Now,
	}
}

// HandleIndex serves the dashboard page.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(dashboardHTML); err != nil {
		log.Printf("Failed to write dashboard: %v", err)
	}
}

// HandleData handles GET /api/data?limit=N.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, config.DefaultDataLimit)
	resp := h.service.GetData(r.Context(), limit)
	if resp.Error != "" {
		log.Printf("Data request failed: %s", resp.Error)
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := h.service.GetStats(r.Context())
	if resp.Error != "" {
		log.Printf("Stats request failed: %s", resp.Error)
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleClear handles POST /api/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	resp := h.service.Clear(r.Context())
	log.Printf("Clear requested: %s", resp.Message)
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleExportCSV handles GET /api/export/csv. The body is buffered so a
// failed export can still answer with a JSON error.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	result, err := h.service.ExportCSV(r.Context(), &buf)
	if err != nil {
		log.Printf("CSV export failed: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.SetAttachment(w, "text/csv", export.Filename(h.now()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Failed to write CSV: %v", err)
		return
	}
	log.Printf("CSV export: %d entries", result.SamplesExported)
}

// HandleExports handles GET /api/exports?limit=N.
func (h *Handler) HandleExports(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Exports(r.Context(), parseLimit(r, config.DefaultExportsLimit))
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, ExportsResponse{Exports: records, Count: len(records)})
}

// HandleWebSocket handles GET /api/ws.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		httpx.RespondJSON(w, http.StatusServiceUnavailable, httpx.ErrorResponse{
			Error:   http.StatusText(http.StatusServiceUnavailable),
			Message: "live feed disabled",
		})
		return
	}
	h.hub.ServeWS(w, r)
}

// parseLimit reads ?limit, falling back to def when missing, malformed or
// not positive.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicktill/gpiolog/pkg/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// No Origin header means a non-browser client.
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// Update is a message pushed to dashboards.
type Update struct {
	Type      string       `json:"type"`
	Timestamp int64        `json:"timestamp"`
	Data      DataResponse `json:"data"`
}

// Hub fans live data updates out to connected dashboards.
type Hub struct {
	dashboards map[*websocket.Conn]struct{}
	joins      chan *websocket.Conn
	leaves     chan *websocket.Conn
	updates    chan []byte

	mu sync.RWMutex
}

// NewHub creates a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		dashboards: make(map[*websocket.Conn]struct{}),
		joins:      make(chan *websocket.Conn, config.WSChannelBuffer),
		leaves:     make(chan *websocket.Conn, config.WSChannelBuffer),
		updates:    make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run serves joins, leaves and updates until ctx is done, then closes
// every dashboard connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.dashboards {
				h.drop(conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.joins:
			h.mu.Lock()
			h.dashboards[conn] = struct{}{}
			log.Printf("Dashboard connected (%d live)", len(h.dashboards))
			h.mu.Unlock()
		case conn := <-h.leaves:
			h.mu.Lock()
			h.drop(conn)
			log.Printf("Dashboard disconnected (%d live)", len(h.dashboards))
			h.mu.Unlock()
		case payload := <-h.updates:
			for _, conn := range h.send(payload) {
				h.mu.Lock()
				h.drop(conn)
				h.mu.Unlock()
			}
		}
	}
}

// send writes payload to every dashboard and returns the ones that failed.
func (h *Hub) send(payload []byte) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var stale []*websocket.Conn
	for conn := range h.dashboards {
		conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("Dropping dashboard after failed update: %v", err)
			stale = append(stale, conn)
		}
	}
	return stale
}

// drop closes and forgets conn. h.mu must be held for writing.
func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.dashboards[conn]; !ok {
		return
	}
	delete(h.dashboards, conn)
	conn.Close()
}

// Broadcast queues data for every dashboard. When the queue is full the
// update is dropped.
func (h *Hub) Broadcast(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	select {
	case h.updates <- payload:
	default:
		log.Printf("Update queue full, skipping broadcast")
	}
	return nil
}

// HasClients reports whether any dashboard is connected.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	n := len(h.dashboards)
	h.mu.RUnlock()
	return n > 0
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Dashboard upgrade failed: %v", err)
		return
	}

	h.joins <- conn

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.leaves <- conn
	}()
	go keepAlive(ctx, conn)

	extend := func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	}
	extend("")
	conn.SetPongHandler(extend)

	// Dashboards never send data; reading only surfaces pongs and closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Dashboard connection closed: %v", err)
			}
			return
		}
	}
}

// keepAlive pings conn until ctx is done or a ping fails.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(config.WSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(config.WSWriteDeadline)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

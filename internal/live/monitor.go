// Monitor exposes a minimal health/websocket endpoint for reconciliation
// tooling to watch a live Runner — not the dashboard/CLI spec.md's
// "web dashboards" Non-goal excludes, just the ambient observability
// surface this module's ambient stack always carries. Grounded on
// internal/api/server.go's Server/Client/upgrader/readPump/writePump
// shape, trimmed to one broadcast direction: the monitor pushes run
// events out, it never accepts operator commands over the socket (that
// surface is exactly the dashboard/CLI scope excluded).
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// MonitorEvent is one pushed notification: a bar close, a signal, a
// fill, a state transition, or a terminal stop.
type MonitorEvent struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload,omitempty"`
	TsMs      int64       `json:"ts_ms"`
}

type monitorClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Monitor serves GET /healthz and a websocket event stream at
// /ws that every connected client receives the same broadcast feed on.
type Monitor struct {
	logger *zap.Logger

	mu       sync.RWMutex
	clients  map[string]*monitorClient
	upgrader websocket.Upgrader

	router *mux.Router
	srv    *http.Server
}

// NewMonitor builds a Monitor bound to addr (e.g. "127.0.0.1:8090").
func NewMonitor(logger *zap.Logger, addr string) *Monitor {
	m := &Monitor{
		logger:  logger,
		clients: make(map[string]*monitorClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		router: mux.NewRouter(),
	}
	m.router.HandleFunc("/healthz", m.handleHealthz).Methods("GET")
	m.router.HandleFunc("/ws", m.handleWebSocket)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowCredentials: false,
	}).Handler(m.router)

	m.srv = &http.Server{Addr: addr, Handler: handler, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
	return m
}

// Start begins serving in the background. ListenAndServe errors other
// than http.ErrServerClosed are logged, not returned, matching the
// monitor's role as ambient observability rather than a critical path.
func (m *Monitor) Start() {
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("live monitor server error", zap.Error(err))
		}
	}()
}

// Stop shuts the HTTP server down and closes every connected client.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	for _, c := range m.clients {
		c.conn.Close()
	}
	m.mu.Unlock()
	return m.srv.Shutdown(ctx)
}

// Broadcast pushes ev to every connected client. A client whose send
// buffer is full misses this event (logged and skipped) rather than
// blocking the broadcast; the client itself stays connected.
func (m *Monitor) Broadcast(ev MonitorEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		m.logger.Warn("live monitor marshal failed", zap.Error(err))
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		select {
		case c.send <- body:
		default:
			m.logger.Warn("live monitor client send buffer full, dropping", zap.String("client_id", c.id))
		}
	}
}

func (m *Monitor) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (m *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("live monitor websocket upgrade failed", zap.Error(err))
		return
	}

	client := &monitorClient{id: uuid.New().String(), conn: conn, send: make(chan []byte, 256)}

	m.mu.Lock()
	m.clients[client.id] = client
	m.mu.Unlock()

	m.logger.Info("live monitor client connected", zap.String("client_id", client.id))

	go m.writePump(client)
	m.readPump(client)
}

func (m *Monitor) readPump(c *monitorClient) {
	defer func() {
		m.mu.Lock()
		delete(m.clients, c.id)
		m.mu.Unlock()
		c.conn.Close()
		m.logger.Info("live monitor client disconnected", zap.String("client_id", c.id))
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (m *Monitor) writePump(c *monitorClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

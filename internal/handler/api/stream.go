package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	xlogger "drreport/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 16
	maxStreamConns = 256
)

// Hub fans report-ready events out to websocket subscribers. Bot front-ends
// that keep a connection open learn about fresh reports without polling the
// read API.
type Hub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewHub creates a websocket hub.
func NewHub(logger *xlogger.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/reports", h.ServeWS)
}

// Broadcast sends an event to every connected subscriber. Slow clients drop
// events rather than stalling the worker that published them.
func (h *Hub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("stream marshal failed", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- data:
		default:
			h.logger.Warn("stream client lagging, dropping event",
				xlogger.String("remote", conn.RemoteAddr().String()),
			)
		}
	}
}

// ServeWS upgrades the connection and streams events until the client leaves.
func (h *Hub) ServeWS(c echo.Context) error {
	h.mu.Lock()
	if len(h.clients) >= maxStreamConns {
		h.mu.Unlock()
		return c.NoContent(http.StatusServiceUnavailable)
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	h.logger.Info("stream client connected",
		xlogger.String("remote", conn.RemoteAddr().String()),
		xlogger.Int("clients", h.clientCount()),
	)

	go h.writeLoop(conn, ch)
	h.readLoop(conn)
	return nil
}

func (h *Hub) writeLoop(conn *websocket.Conn, ch chan []byte) {
	for data := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(conn)
			return
		}
	}
}

// readLoop discards inbound frames; it exists to observe close.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
		h.logger.Info("stream client disconnected",
			xlogger.String("remote", conn.RemoteAddr().String()),
		)
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

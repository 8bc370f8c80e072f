package live

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket connections and drives them
// through a Hub.
type Handler struct {
	hub      *Hub
	config   *Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil config uses DefaultConfig.
func NewHandler(hub *Hub, config *Config, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    hub,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			CheckOrigin:       config.CheckOrigin,
			EnableCompression: config.EnableCompression,
		},
		logger: logger.With("component", "live"),
	}
}

// ServeHTTP upgrades the request and blocks until the connection closes.
// The connection is registered while open and unregistered on exit.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, h.config, h.logger)
	if !h.hub.OnConnect(conn) {
		h.logger.Warn("connection refused", "conn", conn.ID())
		conn.Close()
		return
	}

	go conn.writePump()

	conn.readPump(func(msg []byte) {
		h.hub.OnClientEvent(conn, msg)
	})

	h.hub.OnDisconnect(conn)
	conn.Close()
}

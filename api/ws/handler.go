package ws

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/towerdefense/game/room"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	room     *room.Room
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler streaming rm to viewers.
// allowedOrigins controls which origins are accepted; an empty slice
// permits all origins (development only).
func NewHandler(rm *room.Room, router *Router, allowedOrigins []string, logger *zap.Logger) *Handler {
	h := &Handler{
		room:   rm,
		router: router,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  maxMessage,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessage)

	s := NewSession(conn, h.logger)
	s.Client = c.ClientIP()
	feed, cancel := h.room.Subscribe()
	h.logger.Info("viewer connected", zap.String("session", s.ID), zap.String("remote", c.ClientIP()))

	go s.writePump(feed)
	h.readPump(s)

	cancel()
	s.Close()
	h.logger.Info("viewer disconnected", zap.String("session", s.ID))
}

// readPump reads messages until the connection closes.
func (h *Handler) readPump(s *Session) {
	s.setReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.setReadDeadline()
		return nil
	})
	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		s.setReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

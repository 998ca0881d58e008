package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
	replyBuffer   = 32
	maxMessage    = 4096
)

// Packet is a client message, and the envelope of replies to it.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeReply = "reply"
	TypeError = "error"
)

// ErrorPayload is the body of an error reply.
type ErrorPayload struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Session is one WebSocket viewer. Room packets and replies share the
// connection through a single writer goroutine.
type Session struct {
	ID      string
	Conn    *websocket.Conn
	Client  string // remote address, for the audit trail
	LastSeq uint64

	replies chan []byte
	done    chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

// NewSession creates a session. conn may be nil in tests that only look at
// replies.
func NewSession(conn *websocket.Conn, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		Conn:    conn,
		replies: make(chan []byte, replyBuffer),
		done:    make(chan struct{}),
		logger:  logger.With(zap.String("session", id)),
	}
}

// Replies exposes queued replies.
func (s *Session) Replies() <-chan []byte { return s.replies }

// Close signals the write pump to shut down.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Reply queues a reply to the request with seq. Dropped if the queue is full.
func (s *Session) Reply(seq uint64, typ string, v any) {
	if s.IsClosed() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode reply", zap.String("type", typ), zap.Error(err))
		return
	}
	data, err := json.Marshal(&Packet{Seq: seq, Type: typ, Payload: payload})
	if err != nil {
		return
	}
	select {
	case s.replies <- data:
	case <-s.done:
	default:
		s.logger.Warn("reply queue full, dropping packet", zap.String("type", typ))
	}
}

func (s *Session) setReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}

// writePump forwards room packets and replies to the connection until the
// room feed closes, the session closes or a write fails.
func (s *Session) writePump(feed <-chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		var data []byte
		select {
		case pkt, ok := <-feed:
			if !ok {
				s.writeClose(websocket.CloseGoingAway)
				return
			}
			data = pkt
		case data = <-s.replies:
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-s.done:
			s.writeClose(websocket.CloseNormalClosure)
			return
		}
		_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Warn("ws write error", zap.Error(err))
			return
		}
	}
}

func (s *Session) writeClose(code int) {
	_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = s.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
}

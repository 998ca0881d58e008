package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/towerdefense/api/rest"
	"github.com/kasuganosora/towerdefense/audit"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded message payload. A returned error is sent
// back to the client as an error reply.
type HandlerFunc func(ctx context.Context, s *Session, seq uint64, payload json.RawMessage) error

// Router dispatches incoming packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	trail    *audit.Service
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers fn for msgType.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Audit records every dispatched intent into trail.
func (r *Router) Audit(trail *audit.Service) { r.trail = trail }

// Dispatch decodes raw, enforces increasing seq and invokes the handler.
func (r *Router) Dispatch(s *Session, raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet", zap.String("session", s.ID), zap.Error(err))
		s.Reply(0, TypeError, ErrorPayload{Error: "malformed packet"})
		return
	}

	// Seq 0 opts out of replay tracking.
	if pkt.Seq != 0 && pkt.Seq <= s.LastSeq {
		r.logger.Warn("replayed or out-of-order packet",
			zap.String("session", s.ID),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}
	if pkt.Seq != 0 {
		s.LastSeq = pkt.Seq
	}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type", zap.String("type", pkt.Type))
		s.Reply(pkt.Seq, TypeError, ErrorPayload{Error: "unknown message type " + pkt.Type})
		return
	}

	traceID := uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, traceID)
	start := time.Now()
	err := fn(ctx, s, pkt.Seq, pkt.Payload)
	if err != nil {
		r.logger.Debug("handler error",
			zap.String("type", pkt.Type),
			zap.String("session", s.ID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		s.Reply(pkt.Seq, TypeError, errorPayload(err))
	}
	if r.trail != nil && pkt.Type != MsgSnapshot && pkt.Type != MsgCheckPlacement {
		e := audit.Entry{
			At:         start,
			TraceID:    traceID,
			Source:     "ws",
			Action:     pkt.Type,
			Client:     s.Client,
			Status:     statusFor(err),
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			e.Error = err.Error()
		}
		r.trail.Log(e)
	}
}

// statusFor reports an intent outcome with the code REST would answer.
func statusFor(err error) int {
	if errors.Is(err, ErrBadPayload) {
		return http.StatusBadRequest
	}
	return rest.StatusFor(err)
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}

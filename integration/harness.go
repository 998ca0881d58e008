package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/towerdefense/api"
	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/config"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/room"
	"github.com/kasuganosora/towerdefense/game/sim"
	mw "github.com/kasuganosora/towerdefense/middleware"
	"github.com/kasuganosora/towerdefense/scheduler"
	"github.com/kasuganosora/towerdefense/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestServer wraps a real HTTP server around a running room.
type TestServer struct {
	Room   *room.Room
	Trail  *audit.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
}

// NewTestServer builds the same wiring as the serve command on the small
// test board. mutate may adjust the simulation before the room starts.
func NewTestServer(t *testing.T, mutate func(*sim.Config)) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	simCfg := testutil.SimConfig()
	if mutate != nil {
		mutate(&simCfg)
	}
	ctrl, err := sim.NewController(simCfg, event.NewBus(), logger)
	require.NoError(t, err)

	rm := room.New(ctrl, room.Config{TickMs: 10, SnapshotEveryTicks: 5, SubscriberBuffer: 256}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go rm.Run(ctx)

	srvCfg := config.Default().Server
	srvCfg.RateLimitRPS = 1000
	srvCfg.RateLimitBurst = 2000
	limiters := mw.NewLimiters(srvCfg.RateLimitRPS, srvCfg.RateLimitBurst)

	sched := scheduler.New(ctx, logger)
	sched.Every("limiter_prune", time.Minute, func() { limiters.Prune(time.Now().Add(-time.Minute)) })

	trail := audit.New(audit.Config{FlushInterval: 20 * time.Millisecond}, logger)

	engine, err := api.NewEngine(srvCfg, rm, limiters, trail, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		sched.Stop()
		trail.Stop()
		cancel()
		rm.Stop()
		srv.Close()
	})

	return &TestServer{
		Room:   rm,
		Trail:  trail,
		Sched:  sched,
		Server: srv,
		URL:    srv.URL,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// --- HTTP helpers ---

// PostJSON sends a POST request with a JSON body. body may be nil.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body)
}

// Delete sends a DELETE request.
func (ts *TestServer) Delete(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil)
}

// Get sends a GET request.
func (ts *TestServer) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil)
}

func (ts *TestServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Snapshot fetches /api/snapshot.
func (ts *TestServer) Snapshot(t *testing.T) sim.Snapshot {
	t.Helper()
	resp := ts.Get(t, "/api/snapshot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s sim.Snapshot
	ReadJSON(t, resp, &s)
	return s
}

// --- WebSocket client ---

// Packet is what the server pushes: room broadcasts and intent replies.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop feeds readCh so a receive timeout never touches the
// connection's read deadline.
// Packets skipped by one RecvUntil stay in backlog for the next.
type WSClient struct {
	Conn    *websocket.Conn
	t       *testing.T
	seq     uint64
	readCh  chan readResult
	backlog []Packet
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the test server's WS endpoint.
func (ts *TestServer) ConnectWS(t *testing.T) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 1024)}
	go wc.readLoop()
	t.Cleanup(func() { conn.Close() })
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes one intent and returns the sequence number it used.
func (wc *WSClient) Send(msgType string, payload any) uint64 {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	pkt := map[string]any{"seq": seq, "type": msgType}
	if payload != nil {
		pkt["payload"] = payload
	}
	data, err := json.Marshal(pkt)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
	return seq
}

// RecvAny reads one packet, returning an error on timeout or read failure.
func (wc *WSClient) RecvAny(timeout time.Duration) (Packet, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return Packet{}, res.err
		}
		var pkt Packet
		err := json.Unmarshal(res.data, &pkt)
		return pkt, err
	case <-time.After(timeout):
		return Packet{}, errTimeout
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errTimeout = timeoutError{}

// RecvUntil returns the first packet, queued or new, that match accepts.
func (wc *WSClient) RecvUntil(desc string, timeout time.Duration, match func(Packet) bool) Packet {
	wc.t.Helper()
	for i, pkt := range wc.backlog {
		if match(pkt) {
			wc.backlog = append(wc.backlog[:i], wc.backlog[i+1:]...)
			return pkt
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		pkt, err := wc.RecvAny(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %s: %v", desc, err)
		}
		if match(pkt) {
			return pkt
		}
		wc.backlog = append(wc.backlog, pkt)
	}
	wc.t.Fatalf("timed out waiting for %s", desc)
	return Packet{}
}

// RecvType reads packets until one with the given envelope type arrives.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) Packet {
	wc.t.Helper()
	return wc.RecvUntil(msgType, timeout, func(p Packet) bool { return p.Type == msgType })
}

// RecvReply waits for the reply (or error) to the intent sent with seq.
func (wc *WSClient) RecvReply(seq uint64, timeout time.Duration) Packet {
	wc.t.Helper()
	return wc.RecvUntil("reply", timeout, func(p Packet) bool {
		return p.Seq == seq && (p.Type == "reply" || p.Type == "error")
	})
}

// RecvEvent waits for a broadcast game event of typ and decodes it.
func (wc *WSClient) RecvEvent(typ event.Type, timeout time.Duration) event.Event {
	wc.t.Helper()
	var ev event.Event
	wc.RecvUntil(string(typ), timeout, func(p Packet) bool {
		if p.Type != room.PacketEvent {
			return false
		}
		ev = event.Event{}
		return json.Unmarshal(p.Payload, &ev) == nil && ev.Type == typ
	})
	return ev
}

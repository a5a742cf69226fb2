package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/driftline/driftline/internal/auth"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/protocol"
	"github.com/driftline/driftline/internal/room"
)

const (
	testSecret = "server-test-secret"
	testOrigin = "https://play.example.com"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		TickRate:       30,
		TokenSecret:    testSecret,
		TokenType:      "game",
		AllowedOrigins: []string{testOrigin},
		MaxPlayers:     2,
		WSReadLimit:    4096,
		IdleTimeout:    30 * time.Second,
		WSPingInterval: 15 * time.Second,
		EmptyGrace:     10 * time.Second,
		FinishedTTL:    30 * time.Second,
		StartPolicy:    "first",
		Game:           config.DefaultGame(),
	}
}

type testEnv struct {
	srv     *httptest.Server
	rooms   *room.Registry
	metrics *Metrics
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	metrics := NewMetrics()
	opts := room.OptionsFromConfig(cfg, logger)
	opts.Observer = metrics
	rooms := room.NewRegistry(opts)
	srv := httptest.NewServer(New(cfg, rooms, metrics, logger).Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rooms.Shutdown(ctx)
		srv.Close()
	})
	return &testEnv{srv: srv, rooms: rooms, metrics: metrics}
}

func token(t *testing.T, user, roomID string) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, auth.Claims{UserID: user, RoomID: roomID, DisplayName: user, Type: "game"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?" + query
}

func (e *testEnv) dial(t *testing.T, user, roomID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, e.wsURL("token="+token(t, user, roomID)+"&room="+roomID), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{testOrigin}},
	})
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

type envelope struct {
	Type string `json:"type"`
	raw  []byte
}

// waitForType reads frames until one of type typ arrives.
func waitForType(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		env.raw = data
		if env.Type == typ {
			return env
		}
	}
}

func write(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

func TestUpgradeAdmission(t *testing.T) {
	e := newTestEnv(t, testConfig())
	good := token(t, "u1", "r1")

	tests := []struct {
		name   string
		origin string
		query  string
		status int
		reason string
	}{
		{"foreign origin", "https://evil.test", "token=" + good + "&room=r1", http.StatusForbidden, RejectOrigin},
		{"missing origin", "", "token=" + good + "&room=r1", http.StatusForbidden, RejectOrigin},
		{"missing token", testOrigin, "room=r1", http.StatusUnauthorized, RejectToken},
		{"garbage token", testOrigin, "token=abc&room=r1", http.StatusUnauthorized, RejectToken},
		{"room mismatch", testOrigin, "token=" + good + "&room=r2", http.StatusBadRequest, RejectRoom},
		{"missing room", testOrigin, "token=" + good, http.StatusBadRequest, RejectRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.metrics.Rejected(tt.reason)
			req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/ws?"+tt.query, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if e.metrics.Rejected(tt.reason) != before+1 {
				t.Fatalf("rejection %q not counted", tt.reason)
			}
		})
	}
	if st := e.rooms.Stats(); st.Rooms != 0 {
		t.Fatalf("rejected upgrades created %d rooms", st.Rooms)
	}
}

func TestParseRound(t *testing.T) {
	tests := map[string]int{"": 1, "0": 1, "-4": 1, "abc": 1, "1": 1, "7": 7}
	for in, want := range tests {
		if got := parseRound(in); got != want {
			t.Errorf("parseRound(%q) = %d, want %d", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Connection flow
// ---------------------------------------------------------------------------

func TestJoinPingAndStart(t *testing.T) {
	e := newTestEnv(t, testConfig())
	conn := e.dial(t, "u1", "r1")

	var joined protocol.Joined
	json.Unmarshal(waitForType(t, conn, protocol.TypeJoined).raw, &joined)
	if joined.PlayerID != "u1" || joined.RoomID != "r1" || joined.Round != 1 {
		t.Fatalf("joined = %+v", joined)
	}

	sent := time.Now().UnixMilli()
	write(t, conn, `{"type":"ping","t":12345}`)
	var pong protocol.Pong
	json.Unmarshal(waitForType(t, conn, protocol.TypePong).raw, &pong)
	if pong.T != 12345 || pong.ServerTime < sent {
		t.Fatalf("pong = %+v", pong)
	}

	write(t, conn, `{"type":"start"}`)
	waitForType(t, conn, protocol.TypeGameStart)
	var st protocol.State
	json.Unmarshal(waitForType(t, conn, protocol.TypeState).raw, &st)
	if len(st.Payload.Players) != 1 || st.Payload.Players[0].ID != "u1" {
		t.Fatalf("state players = %+v", st.Payload.Players)
	}
}

func TestInvalidFrameKeepsConnection(t *testing.T) {
	e := newTestEnv(t, testConfig())
	conn := e.dial(t, "u1", "r1")
	waitForType(t, conn, protocol.TypeJoined)

	write(t, conn, `{"type":"teleport"}`)
	write(t, conn, `{"type":"ping","t":1}`)
	waitForType(t, conn, protocol.TypePong)
}

func TestRoomFullSendsErrorFrame(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	e := newTestEnv(t, cfg)
	first := e.dial(t, "u1", "r1")
	waitForType(t, first, protocol.TypeJoined)

	second := e.dial(t, "u2", "r1")
	var msg protocol.Error
	json.Unmarshal(waitForType(t, second, protocol.TypeError).raw, &msg)
	if msg.Code != protocol.CodeRoomFull {
		t.Fatalf("error = %+v", msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := second.Read(ctx); websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("read after refusal: %v", err)
	}
	if e.metrics.Rejected(RejectFull) != 1 {
		t.Fatal("room full rejection not counted")
	}
}

func TestDisconnectLeavesRoom(t *testing.T) {
	e := newTestEnv(t, testConfig())
	a := e.dial(t, "u1", "r1")
	waitForType(t, a, protocol.TypeJoined)
	b := e.dial(t, "u2", "r1")
	waitForType(t, b, protocol.TypeJoined)

	b.Close(websocket.StatusNormalClosure, "bye")

	var left protocol.Left
	json.Unmarshal(waitForType(t, a, protocol.TypeLeft).raw, &left)
	if left.PlayerID != "u2" {
		t.Fatalf("left = %+v", left)
	}
}

func TestShutdownNotifiesClients(t *testing.T) {
	e := newTestEnv(t, testConfig())
	conn := e.dial(t, "u1", "r1")
	waitForType(t, conn, protocol.TypeJoined)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.rooms.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	var msg protocol.Error
	json.Unmarshal(waitForType(t, conn, protocol.TypeError).raw, &msg)
	if msg.Code != protocol.CodeServerShutdown {
		t.Fatalf("error = %+v", msg)
	}
}

// ---------------------------------------------------------------------------
// Read-only endpoints
// ---------------------------------------------------------------------------

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp
}

func TestHealthAndStats(t *testing.T) {
	e := newTestEnv(t, testConfig())
	conn := e.dial(t, "u1", "r1")
	waitForType(t, conn, protocol.TypeJoined)

	var health healthResponse
	resp := getJSON(t, e.srv.URL+"/health", &health)
	if health.Status != "ok" || health.Rooms != 1 || health.Players != 1 || health.TickRate != 30 {
		t.Fatalf("health = %+v", health)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("health not CORS-open")
	}

	var stats statsResponse
	getJSON(t, e.srv.URL+"/stats", &stats)
	if stats.Rooms != 1 || stats.Players != 1 || stats.MemoryUsage.HeapAlloc == 0 {
		t.Fatalf("stats = %+v", stats)
	}

	var metrics map[string]any
	getJSON(t, e.srv.URL+"/metrics", &metrics)
	if metrics["ws_connections"].(float64) != 1 || metrics["rooms_created"].(float64) != 1 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t, testConfig())
	req, _ := http.NewRequest(http.MethodOptions, e.srv.URL+"/stats", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
}

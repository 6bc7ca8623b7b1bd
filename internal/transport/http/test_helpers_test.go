package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/config"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/proto"
	"github.com/vovakirdan/meetpoint-server/internal/store"
)

type testEnv struct {
	ts       *httptest.Server
	cfg      config.Config
	clock    *clock.Mock
	registry *core.Registry
	gateway  *core.Gateway
	auth     *auth.Service
}

type envOptions struct {
	cfg      func(*config.Config)
	observer core.Observer
	audit    store.AuditStore
	metrics  http.Handler
}

func startTestServer(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.ShareBaseURL = "https://meet.example.com/"
	if opts.cfg != nil {
		opts.cfg(&cfg)
	}

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	policy, err := core.ParseSessionPolicy(cfg.SessionPolicy)
	if err != nil {
		t.Fatalf("session policy: %v", err)
	}
	registry := core.NewRegistry(core.Options{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		RoomGracePeriod:  cfg.RoomGracePeriod,
		SessionQueueSize: cfg.SessionQueueSize,
		MaxParticipants:  cfg.MaxParticipants,
		MaxClockSkew:     cfg.MaxClockSkew,
		SessionPolicy:    policy,
		Clock:            mock,
		Observer:         opts.observer,
	})
	t.Cleanup(registry.Close)

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	disabledLogger := zerolog.New(nil)
	deps := Deps{
		Registry: registry,
		Gateway:  core.NewGateway(registry),
		Auth:     authService,
		Metrics:  opts.metrics,
	}
	if opts.audit != nil {
		deps.Audit = opts.audit
	}
	server := NewServer(deps, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		cfg:      cfg,
		clock:    mock,
		registry: registry,
		gateway:  deps.Gateway,
		auth:     authService,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

func (e *testEnv) createRoom(t *testing.T, roomID, ownerID, ownerName string) CreateRoomResponse {
	t.Helper()

	status, body := e.do(t, http.MethodPost, "/rooms", map[string]string{
		"ownerUserId": ownerID,
		"ownerName":   ownerName,
		"roomId":      roomID,
	}, "")
	if status != http.StatusCreated {
		t.Fatalf("create room: status %d: %s", status, body)
	}
	var resp CreateRoomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	return resp
}

func (e *testEnv) joinRoom(t *testing.T, roomID, userID, name string) JoinRoomResponse {
	t.Helper()

	status, body := e.do(t, http.MethodPost, "/rooms/"+roomID+"/join", map[string]string{
		"userId": userID,
		"name":   name,
	}, "")
	if status != http.StatusOK {
		t.Fatalf("join room: status %d: %s", status, body)
	}
	var resp JoinRoomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal join response: %v", err)
	}
	return resp
}

// nowMillis returns the server clock in Unix milliseconds.
func (e *testEnv) nowMillis() int64 {
	return e.clock.Now().UnixMilli()
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// wireOutbound is proto.Outbound with the payload left undecoded.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dial(t *testing.T, e *testEnv) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(testContext(t), e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(testContext(t), conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wireOutbound {
	t.Helper()

	var out wireOutbound
	if err := wsjson.Read(testContext(t), conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

// readEvent skips frames until an event named name arrives.
func readEvent(t *testing.T, conn *websocket.Conn, name string, v any) {
	t.Helper()

	for {
		out := readFrame(t, conn)
		if out.Type != proto.OutboundTypeEvent || out.Event != name {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(out.Data, v); err != nil {
				t.Fatalf("unmarshal %s: %v", name, err)
			}
		}
		return
	}
}

func readError(t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		out := readFrame(t, conn)
		if out.Type == proto.OutboundTypeError {
			if out.Error == nil {
				t.Fatalf("error frame without error body")
			}
			return out.Error
		}
	}
}

// openSession dials, says hello with token and returns the initial snapshot.
func openSession(t *testing.T, e *testEnv, token string) (*websocket.Conn, proto.Room) {
	t.Helper()

	conn := dial(t, e)
	sendFrame(t, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})

	out := readFrame(t, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventRoomSnapshot {
		t.Fatalf("expected room snapshot, got %+v", out)
	}
	var data proto.EventRoomSnapshotData
	if err := json.Unmarshal(out.Data, &data); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return conn, data.Room
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func findParticipant(room proto.Room, id string) (proto.Participant, bool) {
	for _, p := range room.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return proto.Participant{}, false
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response %s: %v", body, err)
	}
	return resp
}

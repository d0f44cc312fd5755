package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
	"github.com/open-teleop/console/services"
)

type fakeTransport struct {
	mu      sync.Mutex
	motions []teleop.MotionCommand
}

func (f *fakeTransport) Open() error  { return nil }
func (f *fakeTransport) Close() error { return nil }
func (f *fakeTransport) Send(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cmd, ok := payload.(teleop.MotionCommand); ok {
		f.motions = append(f.motions, cmd)
	}
	return nil
}

func (f *fakeTransport) lastMotion() (teleop.MotionCommand, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.motions) == 0 {
		return teleop.MotionCommand{}, false
	}
	return f.motions[len(f.motions)-1], true
}

type fixture struct {
	app       *fiber.App
	console   *services.Console
	transport *fakeTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Channel.URL = "ws://robot.local/ws"

	loop := scheduler.NewLoop(64)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	transport := &fakeTransport{}
	logger := customlog.NewNopLogger()
	console, err := services.NewConsole(cfg, transport, loop, scheduler.NewManual(), logger)
	if err != nil {
		t.Fatalf("NewConsole failed: %v", err)
	}

	app := fiber.New()
	RegisterConsoleRoutes(app, console, logger)
	RegisterConfigRoutes(app, cfg, logger)
	RegisterInputRoutes(app, console, logger)
	return &fixture{app: app, console: console, transport: transport}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.console.Connect()
	f.console.OnOpen("sid-1")
	if s, _ := f.console.Snapshot(); s.Control != connection.Connected {
		t.Fatalf("Expected connected, got %s", s.Control)
	}
}

func (f *fixture) do(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(method, path, nil))
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if code, body := f.do(t, "GET", "/health"); code != 200 || body["status"] != "healthy" {
		t.Errorf("Unexpected health response %d %v", code, body)
	}
}

func TestActionsRequireConnection(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/ping", "/api/v1/video/start", "/api/v1/camera/reset"} {
		if code, _ := f.do(t, "POST", path); code != fiber.StatusConflict {
			t.Errorf("POST %s while disconnected: expected 409, got %d", path, code)
		}
	}
	if code, _ := f.do(t, "POST", "/api/v1/estop"); code != 200 {
		t.Errorf("Emergency stop must never fail, got %d", code)
	}
}

func TestConnectReportsState(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "POST", "/api/v1/connect")
	if code != 200 {
		t.Fatalf("Connect returned %d", code)
	}
	state := body["state"].(map[string]interface{})
	if state["control"] != string(connection.Connecting) {
		t.Errorf("Expected connecting, got %v", state["control"])
	}
}

func TestSpeedEndpoint(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, "POST", "/api/v1/speed/turbo"); code != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for unknown level, got %d", code)
	}
	code, body := f.do(t, "POST", "/api/v1/speed/high")
	if code != 200 || body["state"].(map[string]interface{})["speed_level"] != "high" {
		t.Errorf("Unexpected speed response %d %v", code, body)
	}
}

func TestLogEndpoint(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	code, body := f.do(t, "GET", "/api/v1/log?limit=1")
	entries := body["entries"].([]interface{})
	if code != 200 || len(entries) != 1 {
		t.Fatalf("Unexpected log response %d %v", code, body)
	}
	newest := entries[0].(map[string]interface{})
	if newest["type"] != "success" || !strings.HasPrefix(newest["content"].(string), "Connected to server") {
		t.Errorf("Unexpected newest entry %v", newest)
	}

	if code, _ := f.do(t, "GET", "/api/v1/log?limit=abc"); code != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", code)
	}
}

func TestKeyMapAndDiagnostics(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, "GET", "/api/v1/keymap")
	keys := body["keys"].(map[string]interface{})
	if keys["W"] != "forward" || keys["ArrowLeft"] != "left" {
		t.Errorf("Unexpected key map %v", keys)
	}

	if code, body := f.do(t, "GET", "/api/v1/diagnostics"); code != 200 || body["metrics"] == nil {
		t.Errorf("Unexpected diagnostics response %d %v", code, body)
	}
}

func TestConfigEndpointServesYAML(t *testing.T) {
	f := newFixture(t)
	resp, err := f.app.Test(httptest.NewRequest("GET", "/api/v1/config", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tick_interval_ms: 100") {
		t.Errorf("Unexpected config body:\n%s", body)
	}
}

func TestInputSocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, "GET", "/ws/input"); code != fiber.StatusUpgradeRequired {
		t.Errorf("Expected 426, got %d", code)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestInputSocketDrivesConsole(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go f.app.Listener(ln)
	defer f.app.Shutdown()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/input", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	conn.WriteJSON(InputFrame{Type: FrameKeyDown, Key: "W"})
	eventually(t, "forward command", func() bool {
		cmd, ok := f.transport.lastMotion()
		return ok && cmd.Direction == teleop.Forward
	})

	conn.WriteJSON(InputFrame{Type: FrameKeyDown, Key: "x"})
	var reply ReplyFrame
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil || reply.Type != "error" {
		t.Errorf("Expected an error reply, got %+v (%v)", reply, err)
	}

	conn.WriteJSON(InputFrame{Type: FrameJoystick, X: 0, Y: -40, Radius: 50})
	conn.Close()

	eventually(t, "stop after socket loss", func() bool {
		cmd, ok := f.transport.lastMotion()
		return ok && cmd.IsStop()
	})
	s, _ := f.console.Snapshot()
	if len(s.Intents) != 0 {
		t.Errorf("Intents survived socket loss: %v", s.Intents)
	}
}

func TestApplyFrameValidation(t *testing.T) {
	f := newFixture(t)
	cases := []InputFrame{
		{Type: "teleport"},
		{Type: FrameButtonDown, Direction: "up"},
		{Type: FrameSpeed, Level: "ludicrous"},
	}
	for _, frame := range cases {
		if err := applyFrame(f.console, frame); err == nil {
			t.Errorf("Expected error for %+v", frame)
		}
	}
}

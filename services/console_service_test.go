package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/channel"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
)

type sent struct {
	event   string
	payload interface{}
}

type fakeTransport struct {
	opens  int
	closes int
	sent   []sent
}

func (f *fakeTransport) Open() error  { f.opens++; return nil }
func (f *fakeTransport) Close() error { f.closes++; return nil }
func (f *fakeTransport) Send(event string, payload interface{}) error {
	f.sent = append(f.sent, sent{event, payload})
	return nil
}

func (f *fakeTransport) motions() []teleop.MotionCommand {
	var out []teleop.MotionCommand
	for _, s := range f.sent {
		if s.event == connection.EventMoveCommand {
			out = append(out, s.payload.(teleop.MotionCommand))
		}
	}
	return out
}

func (f *fakeTransport) stops() int {
	n := 0
	for _, m := range f.motions() {
		if m.IsStop() {
			n++
		}
	}
	return n
}

func newTestConsole(t *testing.T, mutate func(*config.Config)) (*Console, *fakeTransport, *scheduler.Manual) {
	t.Helper()
	cfg := config.Default()
	cfg.Channel.URL = "ws://robot.local:8000/ws"
	if mutate != nil {
		mutate(cfg)
	}
	transport := &fakeTransport{}
	clock := scheduler.NewManual()
	console, err := NewConsole(cfg, transport, scheduler.Inline{}, clock, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("NewConsole failed: %v", err)
	}
	return console, transport, clock
}

func connect(t *testing.T, c *Console) {
	t.Helper()
	c.Connect()
	c.OnOpen("sid-1")
	if s, _ := c.Snapshot(); s.Control != connection.Connected {
		t.Fatalf("Expected connected, got %s", s.Control)
	}
}

func event(name string, data string) channel.Envelope {
	env := channel.Envelope{Event: name}
	if data != "" {
		env.Data = json.RawMessage(data)
	}
	return env
}

func TestNewConsoleRejectsBadSpeedLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.SpeedLevel = "ludicrous"
	if _, err := NewConsole(cfg, &fakeTransport{}, scheduler.Inline{}, scheduler.NewManual(), customlog.NewNopLogger()); err == nil {
		t.Errorf("Expected configuration error")
	}
}

func TestInputIgnoredWhileDisconnected(t *testing.T) {
	c, transport, clock := newTestConsole(t, nil)

	accepted, err := c.KeyDown("w")
	if err != nil || !accepted {
		t.Fatalf("Control key should be recognised even when offline: %v %v", accepted, err)
	}
	c.Joystick(teleop.JoystickVector{Y: 1})
	clock.Advance(time.Second)

	s, _ := c.Snapshot()
	if len(s.Intents) != 0 || s.DispatchActive {
		t.Errorf("Offline input reached the core: %+v", s)
	}
	if len(transport.motions()) != 0 {
		t.Errorf("Commands sent while disconnected: %v", transport.motions())
	}
}

func TestUnmappedKeyNotAccepted(t *testing.T) {
	c, _, _ := newTestConsole(t, nil)
	connect(t, c)
	if accepted, _ := c.KeyDown("x"); accepted {
		t.Errorf("Unmapped key accepted")
	}
}

func TestEmergencyStopIsIdempotent(t *testing.T) {
	c, transport, clock := newTestConsole(t, nil)
	connect(t, c)

	c.KeyDown("w")
	c.KeyDown("a")
	clock.Advance(250 * time.Millisecond)

	c.EmergencyStop()
	c.EmergencyStop()
	clock.Advance(time.Second)

	if transport.stops() != 1 {
		t.Errorf("Expected exactly one stop, got %d", transport.stops())
	}
	s, _ := c.Snapshot()
	if len(s.Intents) != 0 || s.DispatchActive {
		t.Errorf("Emergency stop left state behind: %+v", s)
	}
	if s.LastCommand == nil || !s.LastCommand.IsStop() {
		t.Errorf("Expected stop as last command, got %v", s.LastCommand)
	}

	entries, _ := c.Log(0)
	warnings := 0
	for _, e := range entries {
		if e.Text == "Emergency stop" {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("Expected one emergency stop entry, got %d", warnings)
	}
}

func TestEmergencyStopAfterReleaseStillSends(t *testing.T) {
	c, transport, clock := newTestConsole(t, nil)
	connect(t, c)

	c.KeyDown("w")
	clock.Advance(150 * time.Millisecond)
	c.KeyUp("w")
	if transport.stops() != 1 {
		t.Fatalf("Expected the release stop, got %d", transport.stops())
	}

	c.EmergencyStop()
	if transport.stops() != 2 {
		t.Errorf("Emergency stop after a release stop sent nothing: %d stops", transport.stops())
	}
	c.EmergencyStop()
	if transport.stops() != 2 {
		t.Errorf("Repeated emergency stop sent again: %d stops", transport.stops())
	}
}

func TestEmergencyStopRearms(t *testing.T) {
	c, transport, clock := newTestConsole(t, nil)
	connect(t, c)

	c.EmergencyStop()
	c.EmergencyStop()
	if transport.stops() != 1 {
		t.Fatalf("Expected one stop, got %d", transport.stops())
	}

	// New intent re-arms it.
	c.KeyDown("d")
	c.EmergencyStop()
	if transport.stops() != 2 {
		t.Errorf("Expected a stop after new intent, got %d", transport.stops())
	}

	// So does a new connection.
	c.OnClose("transport close", false)
	clock.Advance(time.Second)
	c.OnOpen("sid-2")
	c.EmergencyStop()
	if transport.stops() != 3 {
		t.Errorf("Expected a stop after reconnecting, got %d", transport.stops())
	}
}

func TestZeroMaxAttemptsDisablesReconnect(t *testing.T) {
	c, transport, clock := newTestConsole(t, func(cfg *config.Config) { cfg.Reconnect.MaxAttempts = 0 })
	connect(t, c)

	c.OnError(errors.New("boom"))
	clock.Advance(time.Minute)

	if transport.opens != 1 {
		t.Errorf("Expected no reconnection with max_attempts 0, got %d opens", transport.opens)
	}
	if s, _ := c.Snapshot(); s.Control != connection.Disconnected || s.RetryPending {
		t.Errorf("Unexpected state %+v", s.Snapshot)
	}
}

func TestEmergencyStopWhileDisconnectedStillClears(t *testing.T) {
	c, transport, _ := newTestConsole(t, nil)
	if err := c.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop failed: %v", err)
	}
	if len(transport.sent) != 0 {
		t.Errorf("Nothing should be sent while disconnected")
	}
}

// Disconnect while a session is active tears everything down in the same turn.
func TestDisconnectTearsDownDispatch(t *testing.T) {
	c, transport, clock := newTestConsole(t, nil)
	connect(t, c)

	c.KeyDown("w")
	clock.Advance(200 * time.Millisecond)
	before := len(transport.motions())

	c.OnClose("transport close", false)
	s, _ := c.Snapshot()
	if s.DispatchActive || len(s.Intents) != 0 {
		t.Fatalf("Dispatch survived disconnect: %+v", s)
	}

	clock.Advance(500 * time.Millisecond)
	if len(transport.motions()) != before {
		t.Errorf("Commands sent after disconnect")
	}

	// Reconnection alone must not resume the old intent.
	clock.Advance(time.Second)
	c.OnOpen("sid-2")
	clock.Advance(time.Second)
	if len(transport.motions()) != before {
		t.Errorf("Stale intent resumed after reconnect: %v", transport.motions()[before:])
	}
}

func TestManualDisconnectSendsStopFirst(t *testing.T) {
	c, transport, _ := newTestConsole(t, nil)
	connect(t, c)
	c.KeyDown("e")
	c.Disconnect()

	motions := transport.motions()
	if len(motions) != 2 || !motions[1].IsStop() {
		t.Errorf("Expected rotate then stop, got %v", motions)
	}
	if transport.closes != 1 {
		t.Errorf("Transport not closed")
	}
}

func TestPulseKeyHoldsUntilRepeatsStop(t *testing.T) {
	c, transport, clock := newTestConsole(t, func(cfg *config.Config) { cfg.Terminal.KeyHoldMs = 300 })
	connect(t, c)

	c.PulseKey("w")
	clock.Advance(200 * time.Millisecond)
	c.PulseKey("w")
	clock.Advance(200 * time.Millisecond)

	if s, _ := c.Snapshot(); !s.DispatchActive {
		t.Fatalf("Repeat should keep the key held")
	}

	clock.Advance(200 * time.Millisecond)
	s, _ := c.Snapshot()
	if s.DispatchActive {
		t.Errorf("Key still held after the hold time")
	}
	motions := transport.motions()
	if !motions[len(motions)-1].IsStop() {
		t.Errorf("Expected release to stop, got %v", motions)
	}
}

func TestButtonStopIsEmergencyStop(t *testing.T) {
	c, transport, _ := newTestConsole(t, nil)
	connect(t, c)
	c.ButtonPress(teleop.Forward)
	c.ButtonPress(teleop.Stop)

	if transport.stops() != 1 {
		t.Errorf("Expected one stop, got %v", transport.motions())
	}
	if s, _ := c.Snapshot(); len(s.Intents) != 0 {
		t.Errorf("Stop button left intents %v", s.Intents)
	}
}

func TestSpeedLevelChangeIsLogged(t *testing.T) {
	c, _, _ := newTestConsole(t, nil)
	if err := c.SetSpeedLevel("warp"); err == nil {
		t.Errorf("Expected error for unknown level")
	}
	c.SetSpeedLevel(teleop.SpeedHigh)
	c.SetSpeedLevel(teleop.SpeedHigh)

	entries, _ := c.Log(0)
	if len(entries) != 1 || entries[0].Text != "Speed set to high (1.5x)" {
		t.Errorf("Unexpected log %+v", entries)
	}
}

func TestInboundEventsAreRouted(t *testing.T) {
	c, transport, _ := newTestConsole(t, nil)
	connect(t, c)

	c.OnEvent(event(connection.EventConnectionEstablished, `{"message":"Welcome"}`))
	c.StartVideo()
	c.OnEvent(event(connection.EventStreamStatus, `{"status":"streaming_started"}`))
	c.OnEvent(event(connection.EventVideoFrame, `{"frame":"..."}`))
	c.OnEvent(event(connection.EventTelemetryUpdate, `{"battery":87}`))
	c.OnEvent(event(connection.EventCameraActionResult, `{"action":"reset","status":"success"}`))
	c.OnEvent(event("mystery", ""))

	s, _ := c.Snapshot()
	if s.Video != connection.Streaming {
		t.Errorf("Expected streaming, got %s", s.Video)
	}

	m := c.Diagnostics()
	if string(m.Telemetry[connection.EventTelemetryUpdate]) != `{"battery":87}` {
		t.Errorf("Telemetry not stored: %v", m.Telemetry)
	}
	if m.VideoFrames != 1 {
		t.Errorf("Expected 1 frame, got %d", m.VideoFrames)
	}

	entries, _ := c.Log(0)
	if entries[0].Text != "Camera reset successful" {
		t.Errorf("Unexpected newest entry %+v", entries[0])
	}
	found := false
	for _, e := range entries {
		if e.Text == "Server: Welcome" {
			found = true
		}
	}
	if !found {
		t.Errorf("connection_established not logged")
	}
	if transport.sent[0].event != connection.EventStartVideoStream {
		t.Errorf("Expected start_video_stream, got %v", transport.sent)
	}
}

func TestPingRecordsLatency(t *testing.T) {
	c, transport, _ := newTestConsole(t, nil)
	if err := c.Ping(); err != connection.ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	connect(t, c)
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	payload := transport.sent[0].payload.(map[string]interface{})
	ts := payload["timestamp"].(int64)

	c.OnEvent(event(connection.EventPong, `{"message":"pong","timestamp":`+jsonInt(ts)+`}`))
	if m := c.Diagnostics(); m.PongsReceived != 1 || m.LatencyMs == nil {
		t.Errorf("Pong not recorded: %+v", m)
	}
}

func TestPeriodicPing(t *testing.T) {
	c, transport, clock := newTestConsole(t, func(cfg *config.Config) { cfg.Channel.PingIntervalMs = 1000 })
	countPings := func() int {
		n := 0
		for _, s := range transport.sent {
			if s.event == connection.EventPing {
				n++
			}
		}
		return n
	}

	connect(t, c)
	clock.Advance(3 * time.Second)
	if n := countPings(); n != 3 {
		t.Errorf("Expected 3 pings, got %d", n)
	}

	c.OnClose("transport close", true)
	clock.Advance(3 * time.Second)
	if n := countPings(); n != 3 {
		t.Errorf("Ping ticker survived disconnect, %d pings", n)
	}
}

func TestLogObserversSeeTransitions(t *testing.T) {
	c, _, _ := newTestConsole(t, nil)
	var seen []eventlog.Entry
	c.OnLogEntry(func(e eventlog.Entry) { seen = append(seen, e) })
	connect(t, c)

	if len(seen) != 2 || seen[1].Severity != eventlog.SeveritySuccess {
		t.Errorf("Unexpected entries %+v", seen)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/diagnostic"
	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/domain/video"
	"github.com/open-teleop/console/pkg/channel"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
)

// ConsoleService is the operator console as seen by input surfaces. All
// methods are safe for concurrent use; work runs on the console executor.
type ConsoleService interface {
	Connect() error
	Disconnect() error
	Ping() error

	KeyDown(key string) (bool, error)
	KeyUp(key string) (bool, error)
	PulseKey(key string) (bool, error)
	Joystick(v teleop.JoystickVector) error
	JoystickRelease() error
	ButtonPress(dir teleop.Direction) error
	ButtonRelease(dir teleop.Direction) error
	ButtonReleaseAll() error
	SetSpeedLevel(level teleop.SpeedLevel) error
	EmergencyStop() error

	StartVideo() error
	StopVideo() error
	ResetCamera() error

	Snapshot() (Snapshot, error)
	Log(limit int) ([]eventlog.Entry, error)
	Diagnostics() diagnostic.Metrics
}

// Snapshot is the console state shown to the operator.
type Snapshot struct {
	connection.Snapshot
	Intents        []string              `json:"intents"`
	DispatchActive bool                  `json:"dispatch_active"`
	SessionID      string                `json:"session_id,omitempty"`
	LastCommand    *teleop.MotionCommand `json:"last_command,omitempty"`
	SpeedLevel     teleop.SpeedLevel     `json:"speed_level"`
}

// Console wires the teleoperation core together. Everything except the
// exported entry points runs on the executor's goroutine.
type Console struct {
	exec   scheduler.Executor
	sched  scheduler.Scheduler
	logger customlog.Logger

	events      *eventlog.Log
	machine     *connection.Machine
	link        *connection.Link
	aggregator  *teleop.Aggregator
	dispatcher  *teleop.Dispatcher
	video       *video.VideoService
	diagnostics *diagnostic.DiagnosticService

	keyHold      time.Duration
	pulses       map[string]scheduler.Handle
	pingInterval time.Duration
	pingTicker   scheduler.Handle

	// stopLatched is set once an emergency stop has been transmitted and
	// cleared by new intent or a new connection.
	stopLatched bool
}

var _ ConsoleService = (*Console)(nil)
var _ channel.Handler = (*Console)(nil)

// NewConsole builds the console core from configuration. The transport must
// deliver its callbacks to the returned console's channel.Handler methods.
func NewConsole(cfg *config.Config, transport connection.Transport, exec scheduler.Executor, sched scheduler.Scheduler, logger customlog.Logger) (*Console, error) {
	level, err := teleop.ParseSpeedLevel(cfg.Dispatch.SpeedLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch configuration: %w", err)
	}

	events := eventlog.New(cfg.EventLog.Capacity)
	retry := connection.NewRetryPolicy(cfg.ReconnectDelay(), cfg.Reconnect.MaxAttempts)
	machine := connection.NewMachine(transport, retry, sched, events, logger.WithField("component", "connection"))
	link := connection.NewLink(machine, transport, logger)

	aggregator := teleop.NewAggregator()
	dispatcher := teleop.NewDispatcher(
		aggregator.Intents(),
		teleop.NewResolver(cfg.Joystick.DeadZoneRatio),
		link,
		sched,
		cfg.TickInterval(),
		logger.WithField("component", "dispatcher"),
	)
	dispatcher.SetSpeedLevel(level)

	c := &Console{
		exec:         exec,
		sched:        sched,
		logger:       logger,
		events:       events,
		machine:      machine,
		link:         link,
		aggregator:   aggregator,
		dispatcher:   dispatcher,
		video:        video.NewVideoService(machine, link, events, logger),
		diagnostics:  diagnostic.NewDiagnosticService(),
		keyHold:      cfg.KeyHold(),
		pulses:       make(map[string]scheduler.Handle),
		pingInterval: cfg.PingInterval(),
	}

	aggregator.SetListener(intentHook{console: c, next: dispatcher})
	link.AddMotionObserver(func(cmd teleop.MotionCommand, _ string) {
		c.diagnostics.ObserveMotion(cmd)
	})
	machine.OnTeardown(c.teardown)
	machine.Subscribe(c.onStateChange)
	events.Subscribe(c.mirrorEntry)
	return c, nil
}

// DiagnosticService exposes the diagnostics collector for HTTP handlers.
func (c *Console) DiagnosticService() *diagnostic.DiagnosticService {
	return c.diagnostics
}

// OnLogEntry registers an observer for every new event log entry. Observers
// run on the console goroutine and must not block.
func (c *Console) OnLogEntry(fn func(eventlog.Entry)) error {
	return c.exec.Do(func() { c.events.Subscribe(fn) })
}

// OnStateChange registers a channel state observer.
func (c *Console) OnStateChange(fn func(connection.Change)) error {
	return c.exec.Do(func() { c.machine.Subscribe(fn) })
}

// OnMotion registers an observer for transmitted motion commands.
func (c *Console) OnMotion(fn connection.MotionObserver) error {
	return c.exec.Do(func() { c.link.AddMotionObserver(fn) })
}

// Connect starts a manual connection attempt.
func (c *Console) Connect() error {
	return c.exec.Do(c.machine.Connect)
}

// Disconnect stops motion and closes the control channel.
func (c *Console) Disconnect() error {
	return c.exec.Do(func() {
		c.emergencyStop()
		c.machine.Disconnect()
	})
}

// Ping sends a latency probe.
func (c *Console) Ping() error {
	var err error
	if doErr := c.exec.Do(func() { err = c.ping(true) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Console) ping(record bool) error {
	ts := c.diagnostics.RecordPing()
	err := c.link.Emit(connection.EventPing, map[string]interface{}{
		"timestamp": ts,
		"message":   "ping from client",
	})
	if err == nil && record {
		c.events.Info(fmt.Sprintf("Sent ping (timestamp: %d)", ts))
	}
	return err
}

// live reports whether operator input should be accepted.
func (c *Console) live() bool {
	return c.machine.Control() == connection.Connected
}

// KeyDown holds a key. It reports whether the key is a control key.
func (c *Console) KeyDown(key string) (bool, error) {
	accepted := false
	err := c.exec.Do(func() {
		if !teleop.IsControlKey(key) {
			return
		}
		accepted = true
		if c.live() {
			c.aggregator.KeyDown(key)
		}
	})
	return accepted, err
}

// KeyUp releases a key.
func (c *Console) KeyUp(key string) (bool, error) {
	accepted := false
	err := c.exec.Do(func() {
		if !teleop.IsControlKey(key) {
			return
		}
		accepted = true
		c.cancelPulse(key)
		if c.live() {
			c.aggregator.KeyUp(key)
		}
	})
	return accepted, err
}

// PulseKey holds a key for the configured hold time. Repeats of the same key
// extend the hold, which lets terminals without key-up events drive motion.
func (c *Console) PulseKey(key string) (bool, error) {
	accepted := false
	err := c.exec.Do(func() {
		if !teleop.IsControlKey(key) {
			return
		}
		accepted = true
		if !c.live() {
			return
		}
		id := teleop.KeyPress{Key: key}.ID()
		c.cancelPulse(key)
		c.aggregator.KeyDown(key)

		var h scheduler.Handle
		h = c.sched.After(c.keyHold, func() {
			if c.pulses[id] != h {
				return
			}
			delete(c.pulses, id)
			c.aggregator.KeyUp(key)
		})
		c.pulses[id] = h
	})
	return accepted, err
}

func (c *Console) cancelPulse(key string) {
	id := teleop.KeyPress{Key: key}.ID()
	if h, ok := c.pulses[id]; ok {
		h.Cancel()
		delete(c.pulses, id)
	}
}

func (c *Console) cancelPulses() {
	for id, h := range c.pulses {
		h.Cancel()
		delete(c.pulses, id)
	}
}

// Joystick updates the joystick vector.
func (c *Console) Joystick(v teleop.JoystickVector) error {
	return c.exec.Do(func() {
		if c.live() {
			c.aggregator.SetJoystick(v)
		}
	})
}

// JoystickRelease removes the joystick from the intent set.
func (c *Console) JoystickRelease() error {
	return c.exec.Do(func() {
		if c.live() {
			c.aggregator.ReleaseJoystick()
		}
	})
}

// ButtonPress holds a directional button. Pressing stop is an emergency stop.
func (c *Console) ButtonPress(dir teleop.Direction) error {
	if dir == teleop.Stop {
		return c.EmergencyStop()
	}
	if _, err := teleop.ParseDirection(string(dir)); err != nil {
		return err
	}
	var err error
	if doErr := c.exec.Do(func() {
		if c.live() {
			err = c.aggregator.PressButton(dir)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// ButtonRelease releases one directional button.
func (c *Console) ButtonRelease(dir teleop.Direction) error {
	return c.exec.Do(func() {
		if c.live() {
			c.aggregator.ReleaseButton(dir)
		}
	})
}

// ButtonReleaseAll releases every held button.
func (c *Console) ButtonReleaseAll() error {
	return c.exec.Do(func() {
		if c.live() {
			c.aggregator.ReleaseButtons()
		}
	})
}

// SetSpeedLevel changes the speed preset.
func (c *Console) SetSpeedLevel(level teleop.SpeedLevel) error {
	if _, err := teleop.ParseSpeedLevel(string(level)); err != nil {
		return err
	}
	return c.exec.Do(func() {
		if c.dispatcher.SpeedLevel() == level {
			return
		}
		c.dispatcher.SetSpeedLevel(level)
		c.events.Info(fmt.Sprintf("Speed set to %s (%.1fx)", level, level.Multiplier()))
	})
}

// EmergencyStop clears all intent, cancels dispatch and sends a stop when
// connected. Repeated calls with no new intent in between send one stop. It
// never fails on console state.
func (c *Console) EmergencyStop() error {
	return c.exec.Do(c.emergencyStop)
}

func (c *Console) emergencyStop() {
	c.cancelPulses()
	c.aggregator.Clear()
	c.dispatcher.Cancel()

	if !c.link.Connected() || c.stopLatched {
		return
	}
	if c.link.SendMotion(teleop.StopCommand()) {
		c.stopLatched = true
		c.events.Warning("Emergency stop")
	}
}

// intentHook re-arms the emergency stop whenever intent starts again.
type intentHook struct {
	console *Console
	next    teleop.IntentListener
}

func (h intentHook) IntentStarted() {
	h.console.stopLatched = false
	h.next.IntentStarted()
}

func (h intentHook) IntentEnded() {
	h.next.IntentEnded()
}

// teardown runs when the control channel leaves connected. It is the
// cancellation half of the emergency stop; nothing is sent.
func (c *Console) teardown() {
	c.cancelPulses()
	c.aggregator.Clear()
	c.dispatcher.Cancel()
	c.stopPingTicker()
}

func (c *Console) onStateChange(change connection.Change) {
	if change.Channel != connection.ControlChannel || change.To != connection.Connected {
		return
	}
	c.stopLatched = false
	if c.pingInterval > 0 {
		c.stopPingTicker()
		c.pingTicker = c.sched.Every(c.pingInterval, func() {
			if err := c.ping(false); err != nil {
				c.logger.Debugf("Periodic ping not sent: %v", err)
			}
		})
	}
}

func (c *Console) stopPingTicker() {
	if c.pingTicker != nil {
		c.pingTicker.Cancel()
		c.pingTicker = nil
	}
}

func (c *Console) mirrorEntry(e eventlog.Entry) {
	l := c.logger.WithField("event_log", e.ID)
	switch e.Severity {
	case eventlog.SeverityError:
		l.Errorf("%s", e.Text)
	case eventlog.SeverityWarning:
		l.Warnf("%s", e.Text)
	default:
		l.Infof("%s", e.Text)
	}
}

// StartVideo requests the video stream.
func (c *Console) StartVideo() error {
	var err error
	if doErr := c.exec.Do(func() { err = c.video.StartStream() }); doErr != nil {
		return doErr
	}
	return err
}

// StopVideo stops the video stream.
func (c *Console) StopVideo() error {
	var err error
	if doErr := c.exec.Do(func() { err = c.video.StopStream() }); doErr != nil {
		return doErr
	}
	return err
}

// ResetCamera asks the robot to reset its camera.
func (c *Console) ResetCamera() error {
	var err error
	if doErr := c.exec.Do(func() { err = c.video.ResetCamera() }); doErr != nil {
		return doErr
	}
	return err
}

// Snapshot returns the current console state.
func (c *Console) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.exec.Do(func() { s = c.snapshot() })
	return s, err
}

func (c *Console) snapshot() Snapshot {
	s := Snapshot{
		Snapshot:       c.machine.Snapshot(),
		Intents:        c.aggregator.Intents().IDs(),
		DispatchActive: c.dispatcher.Active(),
		SpeedLevel:     c.dispatcher.SpeedLevel(),
	}
	if session, ok := c.dispatcher.Session(); ok {
		s.SessionID = session.ID
	}
	if last, ok := c.link.LastSent(); ok {
		s.LastCommand = &last
	}
	return s
}

// Log returns up to limit entries, newest first.
func (c *Console) Log(limit int) ([]eventlog.Entry, error) {
	var entries []eventlog.Entry
	err := c.exec.Do(func() { entries = c.events.Recent(limit) })
	return entries, err
}

// Diagnostics returns collected metrics.
func (c *Console) Diagnostics() diagnostic.Metrics {
	return c.diagnostics.GetMetrics()
}

// OnOpen implements channel.Handler.
func (c *Console) OnOpen(connID string) {
	c.exec.Post(func() { c.machine.HandleOpen(connID) })
}

// OnClose implements channel.Handler.
func (c *Console) OnClose(reason string, expected bool) {
	c.exec.Post(func() { c.machine.HandleClose(reason, expected) })
}

// OnError implements channel.Handler.
func (c *Console) OnError(err error) {
	c.exec.Post(func() { c.machine.HandleError(err.Error()) })
}

// OnEvent implements channel.Handler.
func (c *Console) OnEvent(env channel.Envelope) {
	c.exec.Post(func() { c.route(env) })
}

type messagePayload struct {
	Message string `json:"message"`
}

type pongPayload struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type streamStatusPayload struct {
	Status string `json:"status"`
}

type commandReceivedPayload struct {
	Type      string `json:"type"`
	Direction string `json:"direction"`
}

func (c *Console) route(env channel.Envelope) {
	c.diagnostics.RecordEvent(env.Event)

	switch env.Event {
	case connection.EventConnectionEstablished:
		var p messagePayload
		if c.decode(env, &p) {
			c.machine.HandleEstablished(p.Message)
		}
	case connection.EventPong:
		var p pongPayload
		if c.decode(env, &p) {
			c.diagnostics.RecordPong(p.Timestamp)
		}
	case connection.EventCommandReceived:
		var p commandReceivedPayload
		if c.decode(env, &p) {
			c.logger.Debugf("Command received: %s - %s", p.Type, p.Direction)
		}
	case connection.EventStreamStatus:
		var p streamStatusPayload
		if c.decode(env, &p) {
			c.machine.HandleStreamStatus(p.Status)
		}
	case connection.EventVideoStreamError:
		var p messagePayload
		if !c.decode(env, &p) || p.Message == "" {
			p.Message = "unknown error"
		}
		c.machine.HandleStreamError(p.Message)
	case connection.EventVideoFrame:
		c.machine.HandleVideoFrame()
	case connection.EventCameraActionResult:
		var p video.CameraActionResult
		if c.decode(env, &p) {
			c.video.HandleCameraResult(p)
		}
	case connection.EventTelemetryUpdate, connection.EventNetworkMetrics, connection.EventArmPositionUpdate:
		c.diagnostics.RecordTelemetry(env.Event, env.Data)
	default:
		c.logger.Debugf("Unhandled event %q", env.Event)
	}
}

func (c *Console) decode(env channel.Envelope, v interface{}) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		c.logger.Warnf("Malformed %s payload: %v", env.Event, err)
		return false
	}
	return true
}

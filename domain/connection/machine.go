package connection

import (
	"fmt"

	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
)

// Transport is the bidirectional channel to the robot controller. Open is
// asynchronous: the outcome arrives through the Machine's Handle methods.
type Transport interface {
	Open() error
	Close() error
	Send(event string, payload interface{}) error
}

// Change describes one state transition.
type Change struct {
	Channel Channel `json:"channel"`
	From    State   `json:"from"`
	To      State   `json:"to"`
	Text    string  `json:"text"`
}

// Snapshot is a point-in-time view of both channels.
type Snapshot struct {
	Control       State  `json:"control"`
	Video         State  `json:"video"`
	ConnectionID  string `json:"connection_id,omitempty"`
	RetryAttempts int    `json:"retry_attempts"`
	MaxAttempts   int    `json:"max_attempts"`
	RetryPending  bool   `json:"retry_pending"`
}

// Machine owns the control and video channel states. Every transition
// appends one entry to the event log. Leaving the connected control state
// runs the teardown hooks before the transition returns.
type Machine struct {
	control Channel
	states  map[Channel]State

	transport Transport
	retry     *RetryPolicy
	sched     scheduler.Scheduler
	events    *eventlog.Log
	logger    log.Logger

	connID       string
	manual       bool
	pendingRetry scheduler.Handle

	teardown  []func()
	observers []func(Change)
}

// NewMachine creates a machine with both channels disconnected.
func NewMachine(transport Transport, retry *RetryPolicy, sched scheduler.Scheduler, events *eventlog.Log, logger log.Logger) *Machine {
	if retry == nil {
		retry = NewRetryPolicy(DefaultRetryDelay, DefaultMaxRetryAttempts)
	}
	return &Machine{
		states: map[Channel]State{
			ControlChannel: Disconnected,
			VideoChannel:   Disconnected,
		},
		transport: transport,
		retry:     retry,
		sched:     sched,
		events:    events,
		logger:    logger,
	}
}

// OnTeardown registers a hook run synchronously when the control channel
// stops being connected.
func (m *Machine) OnTeardown(fn func()) {
	m.teardown = append(m.teardown, fn)
}

// Subscribe registers a state change observer.
func (m *Machine) Subscribe(fn func(Change)) {
	m.observers = append(m.observers, fn)
}

// Control returns the control channel state.
func (m *Machine) Control() State { return m.states[ControlChannel] }

// Video returns the video channel state.
func (m *Machine) Video() State { return m.states[VideoChannel] }

// ConnectionID is the id reported by the last successful open.
func (m *Machine) ConnectionID() string { return m.connID }

// Snapshot returns the current state of both channels.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Control:       m.Control(),
		Video:         m.Video(),
		ConnectionID:  m.connID,
		RetryAttempts: m.retry.Attempts(),
		MaxAttempts:   m.retry.MaxAttempts,
		RetryPending:  m.pendingRetry != nil,
	}
}

// Connect starts a manual connection attempt with a fresh retry budget.
// It does nothing while connecting or connected.
func (m *Machine) Connect() {
	switch m.Control() {
	case Connecting, Connected:
		return
	}
	m.cancelRetry()
	m.retry.Reset()
	m.manual = false
	m.attempt()
}

// Disconnect closes the control channel on operator request. No retry follows.
func (m *Machine) Disconnect() {
	m.manual = true
	m.cancelRetry()

	var text string
	switch m.Control() {
	case Connected:
		text = "Disconnected from server"
	case Connecting:
		text = "Connection attempt cancelled"
	case Error:
		text = "Reconnection cancelled"
	default:
		return
	}
	m.transition(ControlChannel, Disconnected, text)
	if err := m.transport.Close(); err != nil {
		m.logger.Warnf("Failed to close control channel: %v", err)
	}
}

// HandleOpen records that the transport is open.
func (m *Machine) HandleOpen(connID string) {
	if m.Control() != Connecting {
		m.logger.Debugf("Ignoring open in state %s", m.Control())
		return
	}
	m.cancelRetry()
	m.retry.Reset()
	m.connID = connID
	m.transition(ControlChannel, Connected, fmt.Sprintf("Connected to server (id: %s)", connID))
}

// HandleEstablished logs the controller's greeting. It is not a transition.
func (m *Machine) HandleEstablished(message string) {
	m.events.Info(fmt.Sprintf("Server: %s", message))
}

// HandleClose records a transport close. Unexpected closes start the
// reconnection policy.
func (m *Machine) HandleClose(reason string, expected bool) {
	switch m.Control() {
	case Connected:
		m.transition(ControlChannel, Disconnected, fmt.Sprintf("Disconnected from server: %s", reason))
	case Connecting:
		m.transition(ControlChannel, Error, fmt.Sprintf("Connection closed during handshake: %s", reason))
	default:
		return
	}
	if !expected && !m.manual {
		m.scheduleRetry()
	}
}

// HandleError records a transport failure and starts the reconnection policy.
func (m *Machine) HandleError(message string) {
	switch m.Control() {
	case Connecting, Connected:
		m.transition(ControlChannel, Error, fmt.Sprintf("Connection error: %s", message))
	default:
		m.logger.Debugf("Ignoring transport error in state %s: %s", m.Control(), message)
		return
	}
	if !m.manual {
		m.scheduleRetry()
	}
}

// RequestStream moves the video channel to connecting. The caller emits the
// start request.
func (m *Machine) RequestStream() error {
	if m.Control() != Connected {
		return ErrNotConnected
	}
	switch m.Video() {
	case Connecting, Connected, Streaming:
		return nil
	}
	m.transition(VideoChannel, Connecting, "Requesting video stream")
	return nil
}

// StopStream moves the video channel to disconnected.
func (m *Machine) StopStream() {
	if m.Video() == Disconnected {
		return
	}
	m.transition(VideoChannel, Disconnected, "Video stream stopped")
}

// HandleStreamStatus applies a stream_status acknowledgement.
func (m *Machine) HandleStreamStatus(status string) {
	switch status {
	case StreamStarted:
		switch m.Video() {
		case Connecting, Connected:
			m.transition(VideoChannel, Streaming, "Video stream started")
		}
	case StreamStopped:
		if m.Video() != Disconnected {
			m.transition(VideoChannel, Disconnected, "Video stream stopped by server")
		}
	default:
		m.logger.Warnf("Unknown stream status %q", status)
	}
}

// HandleVideoFrame treats a frame as confirmation that the stream is live.
func (m *Machine) HandleVideoFrame() {
	switch m.Video() {
	case Connecting, Connected:
		m.transition(VideoChannel, Streaming, "Video streaming")
	}
}

// HandleStreamError moves the video channel to error. The control channel is
// unaffected.
func (m *Machine) HandleStreamError(message string) {
	if m.Video() == Error {
		return
	}
	m.transition(VideoChannel, Error, fmt.Sprintf("Video stream error: %s", message))
}

func (m *Machine) attempt() {
	m.transition(ControlChannel, Connecting, "Connecting to robot controller")
	if err := m.transport.Open(); err != nil {
		m.HandleError(err.Error())
	}
}

func (m *Machine) scheduleRetry() {
	if !m.retry.Attempt() {
		if m.Control() == Error {
			text := fmt.Sprintf("Reconnection failed after %d attempts", m.retry.MaxAttempts)
			if m.retry.MaxAttempts == 0 {
				text = "Connection lost, automatic reconnection disabled"
			}
			m.transition(ControlChannel, Disconnected, text)
		}
		m.logger.Warnf("Reconnection attempts exhausted, manual connect required")
		return
	}

	delay := m.retry.NextDelay()
	m.logger.Infof("Reconnecting in %v (attempt %d/%d)", delay, m.retry.Attempts(), m.retry.MaxAttempts)
	m.cancelRetry()
	m.pendingRetry = m.sched.After(delay, func() {
		m.pendingRetry = nil
		if m.manual {
			return
		}
		switch m.Control() {
		case Disconnected, Error:
			m.attempt()
		}
	})
}

func (m *Machine) cancelRetry() {
	if m.pendingRetry != nil {
		m.pendingRetry.Cancel()
		m.pendingRetry = nil
	}
}

// transition moves ch to `to`, records it, and notifies observers. Illegal
// edges are logged and dropped.
func (m *Machine) transition(ch Channel, to State, text string) {
	from := m.states[ch]
	if err := checkTransition(ch, from, to); err != nil {
		m.logger.Errorf("%v", err)
		return
	}
	m.states[ch] = to
	m.events.Append(text, Severity(to))
	m.logger.WithField("channel", ch).Infof("%s -> %s: %s", from, to, text)

	if ch == ControlChannel && from == Connected {
		m.connID = ""
		for _, fn := range m.teardown {
			fn()
		}
		if m.Video() != Disconnected {
			m.transition(VideoChannel, Disconnected, "Video stream stopped: control channel lost")
		}
	}

	change := Change{Channel: ch, From: from, To: to, Text: text}
	for _, fn := range m.observers {
		fn(change)
	}
}

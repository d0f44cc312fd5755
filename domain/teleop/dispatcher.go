package teleop

import (
	"time"

	"github.com/google/uuid"
	"github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
)

// DefaultTickInterval is the period between repeated motion commands.
const DefaultTickInterval = 100 * time.Millisecond

// Sender transmits motion commands over the control channel.
type Sender interface {
	Connected() bool
	// SendMotion transmits cmd and reports whether it left the console.
	// It must drop the command silently when the channel is down.
	SendMotion(cmd MotionCommand) bool
}

// DispatchSession is the repeating send loop that exists while intents are held.
type DispatchSession struct {
	ID            string
	Started       time.Time
	LastDirection Direction
	Ticks         int
	Sent          int

	handle scheduler.Handle
}

// Dispatcher converts the intent set into a periodic command stream. At most
// one session exists at a time.
type Dispatcher struct {
	intents  *IntentSet
	resolver Resolver
	sender   Sender
	sched    scheduler.Scheduler
	interval time.Duration
	level    SpeedLevel
	logger   log.Logger

	session *DispatchSession
}

// NewDispatcher wires a dispatcher to the aggregator's set.
func NewDispatcher(intents *IntentSet, resolver Resolver, sender Sender, sched scheduler.Scheduler, interval time.Duration, logger log.Logger) *Dispatcher {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Dispatcher{
		intents:  intents,
		resolver: resolver,
		sender:   sender,
		sched:    sched,
		interval: interval,
		level:    SpeedMedium,
		logger:   logger,
	}
}

// SpeedLevel returns the active level.
func (d *Dispatcher) SpeedLevel() SpeedLevel {
	return d.level
}

// SetSpeedLevel changes the level used from the next command on.
func (d *Dispatcher) SetSpeedLevel(level SpeedLevel) {
	d.level = level
}

// Session returns a copy of the active session.
func (d *Dispatcher) Session() (DispatchSession, bool) {
	if d.session == nil {
		return DispatchSession{}, false
	}
	return *d.session, true
}

// Active reports whether a session is running.
func (d *Dispatcher) Active() bool {
	return d.session != nil
}

// IntentStarted starts a session: one command is sent immediately and the
// timer repeats it every interval.
func (d *Dispatcher) IntentStarted() {
	if d.session != nil {
		return
	}
	d.start()
}

// IntentEnded cancels the session and sends a single stop.
func (d *Dispatcher) IntentEnded() {
	d.Cancel()
	if d.sender.Connected() {
		d.sender.SendMotion(StopCommand())
	}
}

// Cancel stops the timer and drops the session without sending anything.
// It reports whether a session was running.
func (d *Dispatcher) Cancel() bool {
	s := d.session
	if s == nil {
		return false
	}
	if s.handle != nil {
		s.handle.Cancel()
	}
	d.session = nil
	d.logger.Debugf("Dispatch session %s ended after %d ticks", s.ID, s.Ticks)
	return true
}

func (d *Dispatcher) start() {
	s := &DispatchSession{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	d.session = s
	d.logger.Debugf("Dispatch session %s started", s.ID)

	d.emit(s)
	s.handle = d.sched.Every(d.interval, func() { d.Tick(s) })
}

// Tick runs one iteration of session s. A tick for a session that is no
// longer current does nothing.
func (d *Dispatcher) Tick(s *DispatchSession) {
	if s == nil || d.session != s {
		return
	}
	s.Ticks++
	d.emit(s)
}

func (d *Dispatcher) emit(s *DispatchSession) {
	cmd, ok := d.resolver.Resolve(d.intents, d.level)
	if !ok {
		return
	}
	if !d.sender.Connected() {
		return
	}
	if d.sender.SendMotion(cmd) {
		s.LastDirection = cmd.Direction
		s.Sent++
	}
}

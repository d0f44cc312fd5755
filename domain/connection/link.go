package connection

import (
	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/log"
)

// MotionObserver sees every motion command that left the console, with the
// id of the connection it was sent on.
type MotionObserver func(cmd teleop.MotionCommand, connID string)

// Link is the connection context handed to the dispatcher and the emergency
// stop. It gates every send on the control channel being connected.
type Link struct {
	machine   *Machine
	transport Transport
	logger    log.Logger

	lastSent  *teleop.MotionCommand
	observers []MotionObserver
}

// NewLink binds a transport to the machine that tracks it.
func NewLink(machine *Machine, transport Transport, logger log.Logger) *Link {
	l := &Link{machine: machine, transport: transport, logger: logger}
	machine.Subscribe(func(c Change) {
		if c.Channel == ControlChannel && c.To == Connected {
			l.lastSent = nil
		}
	})
	return l
}

// AddMotionObserver registers an observer for transmitted commands.
func (l *Link) AddMotionObserver(o MotionObserver) {
	l.observers = append(l.observers, o)
}

// Connected implements teleop.Sender.
func (l *Link) Connected() bool {
	return l.machine.Control() == Connected
}

// SendMotion implements teleop.Sender. Commands are dropped without a log
// entry while the channel is down. Transport failures surface through the
// machine, not the caller.
func (l *Link) SendMotion(cmd teleop.MotionCommand) bool {
	if !l.Connected() {
		return false
	}
	if err := l.transport.Send(EventMoveCommand, cmd); err != nil {
		l.logger.Debugf("move_command %s not sent: %v", cmd, err)
		return false
	}
	sent := cmd
	l.lastSent = &sent
	connID := l.machine.ConnectionID()
	for _, o := range l.observers {
		o(cmd, connID)
	}
	return true
}

// Emit sends a non-motion event.
func (l *Link) Emit(event string, payload interface{}) error {
	if !l.Connected() {
		return ErrNotConnected
	}
	return l.transport.Send(event, payload)
}

// LastSent returns the last command transmitted on the current connection.
func (l *Link) LastSent() (teleop.MotionCommand, bool) {
	if l.lastSent == nil {
		return teleop.MotionCommand{}, false
	}
	return *l.lastSent, true
}

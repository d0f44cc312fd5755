// Package connection tracks the lifecycle of the control and video channels
// and owns the context used to send commands over them.
package connection

import (
	"errors"
	"fmt"

	"github.com/open-teleop/console/domain/eventlog"
)

var (
	// ErrInvalidTransition is returned when a state change is not an allowed edge.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNotConnected is returned by operations that need the control channel.
	ErrNotConnected = errors.New("control channel is not connected")
)

// State of a channel.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Streaming    State = "streaming"
	Error        State = "error"
)

// Channel names a logical channel.
type Channel string

const (
	ControlChannel Channel = "control"
	VideoChannel   Channel = "video"
)

type edge struct {
	from State
	to   State
}

// Any state may move to Error; those edges are not listed.
var controlEdges = map[edge]bool{
	{Disconnected, Connecting}: true,
	{Connecting, Connected}:    true,
	{Connecting, Disconnected}: true,
	{Connected, Disconnected}:  true,
	{Error, Connecting}:        true,
	{Error, Disconnected}:      true,
}

var videoEdges = map[edge]bool{
	{Disconnected, Connecting}: true,
	{Connecting, Connected}:    true,
	{Connecting, Streaming}:    true,
	{Connecting, Disconnected}: true,
	{Connected, Streaming}:     true,
	{Connected, Disconnected}:  true,
	{Streaming, Disconnected}:  true,
	{Error, Connecting}:        true,
	{Error, Disconnected}:      true,
}

// Allowed reports whether from→to is a legal edge on the channel.
func Allowed(ch Channel, from, to State) bool {
	if to == Error && from != Error {
		return ch == ControlChannel || ch == VideoChannel
	}
	switch ch {
	case ControlChannel:
		return controlEdges[edge{from, to}]
	case VideoChannel:
		return videoEdges[edge{from, to}]
	}
	return false
}

func checkTransition(ch Channel, from, to State) error {
	if !Allowed(ch, from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, ch, from, to)
	}
	return nil
}

// Severity maps the destination state to the event log severity of the
// entry recorded for the transition.
func Severity(to State) eventlog.Severity {
	switch to {
	case Connected, Streaming:
		return eventlog.SeveritySuccess
	case Disconnected:
		return eventlog.SeverityWarning
	case Error:
		return eventlog.SeverityError
	}
	return eventlog.SeverityInfo
}

package teleop

import (
	"errors"
)

// ErrNotHoldable is returned for buttons that cannot be held as a motion intent.
var ErrNotHoldable = errors.New("direction cannot be held")

// IntentListener is told when the intent set changes between empty and non-empty.
type IntentListener interface {
	IntentStarted()
	IntentEnded()
}

// Aggregator is the only writer of the IntentSet. It translates raw input
// events into set mutations and reports emptiness transitions.
type Aggregator struct {
	set      *IntentSet
	listener IntentListener
}

// NewAggregator returns an aggregator over a fresh set.
func NewAggregator() *Aggregator {
	return &Aggregator{set: NewIntentSet()}
}

// SetListener registers the transition listener.
func (a *Aggregator) SetListener(l IntentListener) {
	a.listener = l
}

// Intents exposes the set for readers. Callers must not mutate it.
func (a *Aggregator) Intents() *IntentSet {
	return a.set
}

// KeyDown adds a held key. Keys outside the control map are ignored and
// reported as false.
func (a *Aggregator) KeyDown(key string) bool {
	if !IsControlKey(key) {
		return false
	}
	a.add(KeyPress{Key: key})
	return true
}

// KeyUp releases a key.
func (a *Aggregator) KeyUp(key string) bool {
	if !IsControlKey(key) {
		return false
	}
	a.remove(KeyPress{Key: key}.ID())
	return true
}

// SetJoystick adds or updates the joystick vector. An update keeps the
// joystick's place in the set.
func (a *Aggregator) SetJoystick(v JoystickVector) {
	a.add(v)
}

// ReleaseJoystick removes the joystick.
func (a *Aggregator) ReleaseJoystick() {
	a.remove(JoystickVector{}.ID())
}

// PressButton holds a directional button.
func (a *Aggregator) PressButton(dir Direction) error {
	if dir == Stop {
		return ErrNotHoldable
	}
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}
	a.add(HeldButton{Direction: dir})
	return nil
}

// ReleaseButton releases one held button.
func (a *Aggregator) ReleaseButton(dir Direction) {
	a.remove(HeldButton{Direction: dir}.ID())
}

// ReleaseButtons releases every held button, for surfaces whose release
// event does not say which button it was.
func (a *Aggregator) ReleaseButtons() {
	wasEmpty := a.set.Len() == 0
	for _, src := range a.set.Sources() {
		if _, ok := src.(HeldButton); ok {
			a.set.Remove(src.ID())
		}
	}
	a.notifyIfEnded(wasEmpty)
}

// Clear empties the set without notifying the listener.
func (a *Aggregator) Clear() {
	a.set.Clear()
}

// Len returns the number of live sources.
func (a *Aggregator) Len() int {
	return a.set.Len()
}

func (a *Aggregator) add(src InputSource) {
	wasEmpty := a.set.Len() == 0
	a.set.Add(src)
	if wasEmpty && a.listener != nil {
		a.listener.IntentStarted()
	}
}

func (a *Aggregator) remove(id string) {
	wasEmpty := a.set.Len() == 0
	a.set.Remove(id)
	a.notifyIfEnded(wasEmpty)
}

func (a *Aggregator) notifyIfEnded(wasEmpty bool) {
	if !wasEmpty && a.set.Len() == 0 && a.listener != nil {
		a.listener.IntentEnded()
	}
}

package teleop

import (
	"math"
)

// InputSource is one live contributor to the operator's intent.
type InputSource interface {
	// ID identifies the source inside an IntentSet.
	ID() string
}

// KeyPress is a held keyboard key.
type KeyPress struct {
	Key string
}

// ID implements InputSource.
func (k KeyPress) ID() string { return "key:" + normalizeKey(k.Key) }

// JoystickVector is a virtual joystick displacement normalized to the control
// surface radius: length 1 is the rim, +Y is forward and +X is right.
type JoystickVector struct {
	X float64
	Y float64
}

// ID implements InputSource. There is only ever one joystick.
func (JoystickVector) ID() string { return "joystick" }

// Ratio is the displacement as a fraction of the radius, capped at 1.
func (v JoystickVector) Ratio() float64 {
	return math.Min(math.Hypot(v.X, v.Y), 1)
}

// JoystickFromPointer converts a pointer offset from the joystick center in
// screen coordinates (Y grows downward) into a normalized vector. Offsets
// beyond maxRadius are pulled back onto the rim.
func JoystickFromPointer(dx, dy, maxRadius float64) JoystickVector {
	if maxRadius <= 0 {
		return JoystickVector{}
	}
	if dist := math.Hypot(dx, dy); dist > maxRadius {
		angle := math.Atan2(dy, dx)
		dx = math.Cos(angle) * maxRadius
		dy = math.Sin(angle) * maxRadius
	}
	return JoystickVector{X: dx / maxRadius, Y: -dy / maxRadius}
}

// HeldButton is an on-screen directional button being held down.
type HeldButton struct {
	Direction Direction
}

// ID implements InputSource.
func (b HeldButton) ID() string { return "button:" + string(b.Direction) }

// IntentSet is an insertion-ordered set of input sources keyed by ID.
// The last element is the most recently added source.
type IntentSet struct {
	sources []InputSource
}

// NewIntentSet returns an empty set.
func NewIntentSet() *IntentSet {
	return &IntentSet{}
}

func (s *IntentSet) indexOf(id string) int {
	for i, src := range s.sources {
		if src.ID() == id {
			return i
		}
	}
	return -1
}

// Add appends src. If a source with the same ID is present its value is
// replaced in place, its position is kept, and Add returns false.
func (s *IntentSet) Add(src InputSource) bool {
	if i := s.indexOf(src.ID()); i >= 0 {
		s.sources[i] = src
		return false
	}
	s.sources = append(s.sources, src)
	return true
}

// Remove deletes the source with the given ID. Removing an absent ID is a no-op.
func (s *IntentSet) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.sources = append(s.sources[:i], s.sources[i+1:]...)
	return true
}

// Contains reports whether id is present.
func (s *IntentSet) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

// Clear removes everything.
func (s *IntentSet) Clear() {
	s.sources = nil
}

// Len returns the number of sources.
func (s *IntentSet) Len() int {
	return len(s.sources)
}

// Latest returns the most recently added source.
func (s *IntentSet) Latest() (InputSource, bool) {
	if len(s.sources) == 0 {
		return nil, false
	}
	return s.sources[len(s.sources)-1], true
}

// Sources returns a copy, oldest first.
func (s *IntentSet) Sources() []InputSource {
	out := make([]InputSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// IDs returns source identities, oldest first.
func (s *IntentSet) IDs() []string {
	out := make([]string, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.ID()
	}
	return out
}

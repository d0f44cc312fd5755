package teleop

import (
	"math"
)

// DefaultDeadZoneRatio is the joystick displacement below which no motion is requested.
const DefaultDeadZoneRatio = 0.2

// Resolver reduces an IntentSet to at most one motion command.
type Resolver struct {
	DeadZoneRatio float64
}

// NewResolver returns a resolver with the given joystick dead zone.
func NewResolver(deadZone float64) Resolver {
	return Resolver{DeadZoneRatio: deadZone}
}

// Resolve walks the set from the most recent source to the oldest and returns
// the command of the first source that yields one. The set is not modified.
func (r Resolver) Resolve(set *IntentSet, level SpeedLevel) (MotionCommand, bool) {
	if set == nil {
		return MotionCommand{}, false
	}
	for i := len(set.sources) - 1; i >= 0; i-- {
		if cmd, ok := r.resolveSource(set.sources[i], level); ok {
			return cmd, true
		}
	}
	return MotionCommand{}, false
}

func (r Resolver) resolveSource(src InputSource, level SpeedLevel) (MotionCommand, bool) {
	switch s := src.(type) {
	case KeyPress:
		dir, ok := DirectionForKey(s.Key)
		if !ok {
			return MotionCommand{}, false
		}
		return MotionCommand{Direction: dir, Speed: level.Multiplier()}, true
	case HeldButton:
		if s.Direction == Stop || s.Direction == "" {
			return MotionCommand{}, false
		}
		return MotionCommand{Direction: s.Direction, Speed: level.Multiplier()}, true
	case JoystickVector:
		return r.resolveJoystick(s, level)
	}
	return MotionCommand{}, false
}

func (r Resolver) resolveJoystick(v JoystickVector, level SpeedLevel) (MotionCommand, bool) {
	ratio := v.Ratio()
	if ratio <= r.DeadZoneRatio {
		return MotionCommand{}, false
	}

	var dir Direction
	if math.Abs(v.Y) > math.Abs(v.X) {
		if v.Y > 0 {
			dir = Forward
		} else {
			dir = Backward
		}
	} else {
		if v.X > 0 {
			dir = Right
		} else {
			dir = Left
		}
	}
	return MotionCommand{Direction: dir, Speed: ClampSpeed(ratio * level.Multiplier())}, true
}

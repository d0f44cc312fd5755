// Package teleop turns operator input into a rate-limited stream of motion commands.
package teleop

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDirection  = errors.New("unknown direction")
	ErrUnknownSpeedLevel = errors.New("unknown speed level")
)

// Direction is the motion requested from the robot base.
type Direction string

const (
	Forward     Direction = "forward"
	Backward    Direction = "backward"
	Left        Direction = "left"
	Right       Direction = "right"
	RotateLeft  Direction = "rotate_left"
	RotateRight Direction = "rotate_right"
	Stop        Direction = "stop"
)

// Directions lists every direction in wire order.
var Directions = []Direction{Forward, Backward, Left, Right, RotateLeft, RotateRight, Stop}

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Speed bounds for a transmitted motion command.
const (
	MinSpeed = 0.1
	MaxSpeed = 2.0
)

// ClampSpeed limits a raw speed to [MinSpeed, MaxSpeed].
func ClampSpeed(v float64) float64 {
	if v < MinSpeed {
		return MinSpeed
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}

// SpeedLevel is the operator-selected speed preset.
type SpeedLevel string

const (
	SpeedLow    SpeedLevel = "low"
	SpeedMedium SpeedLevel = "medium"
	SpeedHigh   SpeedLevel = "high"
)

// Multiplier returns the base speed for the level. Unknown levels behave as medium.
func (l SpeedLevel) Multiplier() float64 {
	switch l {
	case SpeedLow:
		return 0.5
	case SpeedHigh:
		return 1.5
	default:
		return 1.0
	}
}

// ParseSpeedLevel validates a level name.
func ParseSpeedLevel(s string) (SpeedLevel, error) {
	switch SpeedLevel(strings.ToLower(s)) {
	case SpeedLow:
		return SpeedLow, nil
	case SpeedMedium:
		return SpeedMedium, nil
	case SpeedHigh:
		return SpeedHigh, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpeedLevel, s)
}

// MotionCommand is the payload of a move_command event.
type MotionCommand struct {
	Direction Direction `json:"direction"`
	Speed     float64   `json:"speed"`
}

// StopCommand is the authoritative stop. It always carries zero speed.
func StopCommand() MotionCommand {
	return MotionCommand{Direction: Stop, Speed: 0}
}

// IsStop reports whether the command is a stop.
func (c MotionCommand) IsStop() bool {
	return c.Direction == Stop
}

func (c MotionCommand) String() string {
	return fmt.Sprintf("%s@%.2f", c.Direction, c.Speed)
}

var keyDirections = map[string]Direction{
	"w":          Forward,
	"s":          Backward,
	"a":          Left,
	"d":          Right,
	"q":          RotateLeft,
	"e":          RotateRight,
	"ArrowUp":    Forward,
	"ArrowDown":  Backward,
	"ArrowLeft":  Left,
	"ArrowRight": Right,
}

// normalizeKey folds single letters so that 'W' and 'w' are the same key.
func normalizeKey(key string) string {
	if len(key) == 1 {
		return strings.ToLower(key)
	}
	return key
}

// DirectionForKey maps a keyboard key name to a direction.
func DirectionForKey(key string) (Direction, bool) {
	d, ok := keyDirections[normalizeKey(key)]
	return d, ok
}

// IsControlKey reports whether the key drives the robot. Only control keys
// should have their default browser action suppressed.
func IsControlKey(key string) bool {
	_, ok := DirectionForKey(key)
	return ok
}

// KeyMap returns every accepted key name, letters in both cases.
func KeyMap() map[string]Direction {
	out := make(map[string]Direction, len(keyDirections)*2)
	for k, d := range keyDirections {
		out[k] = d
		if len(k) == 1 {
			out[strings.ToUpper(k)] = d
		}
	}
	return out
}

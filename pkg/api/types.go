package api

// --- Data Structures for WebSocket Messages ---

// Input frame types accepted on /ws/input.
const (
	FrameKeyDown     = "keydown"
	FrameKeyUp       = "keyup"
	FrameKeyPulse    = "keypulse"
	FrameJoystick    = "joystick"
	FrameJoystickEnd = "joystick_end"
	FrameButtonDown  = "button_down"
	FrameButtonUp    = "button_up"
	FrameEstop       = "estop"
	FrameSpeed       = "speed"
)

// InputFrame is one operator input event from a browser surface.
//
// Joystick frames carry either a pointer offset from the joystick center in
// screen pixels together with the radius, or, when Radius is zero, an already
// normalized vector with +Y forward.
type InputFrame struct {
	Type      string  `json:"type"`
	Key       string  `json:"key,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Radius    float64 `json:"radius,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Level     string  `json:"level,omitempty"`
}

// ReplyFrame is sent back when a frame cannot be applied.
type ReplyFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

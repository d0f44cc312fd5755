package api

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/services"
)

// RegisterInputRoutes mounts the operator input websocket at /ws/input.
func RegisterInputRoutes(app *fiber.App, console services.ConsoleService, logger customlog.Logger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/input", websocket.New(func(conn *websocket.Conn) {
		InputWebSocketHandler(conn, console, logger)
	}))
}

// InputWebSocketHandler applies operator input frames to the console. When
// the socket goes away for any reason the console is emergency stopped.
func InputWebSocketHandler(conn *websocket.Conn, console services.ConsoleService, logger customlog.Logger) {
	logger.Infof("Input WebSocket connected: %s", conn.RemoteAddr())
	defer func() {
		if err := console.EmergencyStop(); err != nil {
			logger.Warnf("Emergency stop on input disconnect failed: %v", err)
		}
		logger.Infof("Input WebSocket disconnected: %s", conn.RemoteAddr())
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("Input WS read error: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			logger.Debugf("Ignoring non-text input WS message type: %d", mt)
			continue
		}

		var frame InputFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			reply(conn, logger, fmt.Sprintf("malformed frame: %v", err))
			continue
		}
		if err := applyFrame(console, frame); err != nil {
			reply(conn, logger, err.Error())
		}
	}
}

func reply(conn *websocket.Conn, logger customlog.Logger, message string) {
	if err := conn.WriteJSON(ReplyFrame{Type: "error", Message: message}); err != nil {
		logger.Debugf("Input WS reply failed: %v", err)
	}
}

func applyFrame(console services.ConsoleService, frame InputFrame) error {
	switch frame.Type {
	case FrameKeyDown, FrameKeyUp, FrameKeyPulse:
		var accepted bool
		var err error
		switch frame.Type {
		case FrameKeyDown:
			accepted, err = console.KeyDown(frame.Key)
		case FrameKeyUp:
			accepted, err = console.KeyUp(frame.Key)
		default:
			accepted, err = console.PulseKey(frame.Key)
		}
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("not a control key: %q", frame.Key)
		}
		return nil
	case FrameJoystick:
		v := teleop.JoystickVector{X: frame.X, Y: frame.Y}
		if frame.Radius > 0 {
			v = teleop.JoystickFromPointer(frame.X, frame.Y, frame.Radius)
		}
		return console.Joystick(v)
	case FrameJoystickEnd:
		return console.JoystickRelease()
	case FrameButtonDown:
		dir, err := teleop.ParseDirection(frame.Direction)
		if err != nil {
			return err
		}
		return console.ButtonPress(dir)
	case FrameButtonUp:
		if frame.Direction == "" {
			return console.ButtonReleaseAll()
		}
		dir, err := teleop.ParseDirection(frame.Direction)
		if err != nil {
			return err
		}
		return console.ButtonRelease(dir)
	case FrameEstop:
		return console.EmergencyStop()
	case FrameSpeed:
		level, err := teleop.ParseSpeedLevel(frame.Level)
		if err != nil {
			return err
		}
		return console.SetSpeedLevel(level)
	}
	return fmt.Errorf("unknown frame type %q", frame.Type)
}

// Package wire holds the binary encoding used to mirror motion commands to
// local subscribers. MotionCommand.go and Direction.go are generated from
// motion_command.fbs.
package wire

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/open-teleop/console/domain/teleop"
)

var ErrMalformed = errors.New("malformed motion command buffer")

var toWire = map[teleop.Direction]Direction{
	teleop.Forward:     DirectionForward,
	teleop.Backward:    DirectionBackward,
	teleop.Left:        DirectionLeft,
	teleop.Right:       DirectionRight,
	teleop.RotateLeft:  DirectionRotateLeft,
	teleop.RotateRight: DirectionRotateRight,
	teleop.Stop:        DirectionStop,
}

// MotionRecord is a decoded motion command.
type MotionRecord struct {
	Command   teleop.MotionCommand
	ConnectionID string
	Timestamp time.Time
}

// EncodeMotion serializes cmd with the connection it was sent on.
func EncodeMotion(cmd teleop.MotionCommand, connectionID string, at time.Time) []byte {
	builder := flatbuffers.NewBuilder(64)
	cid := builder.CreateString(connectionID)

	dir, ok := toWire[cmd.Direction]
	if !ok {
		dir = DirectionStop
	}

	MotionCommandStart(builder)
	MotionCommandAddDirection(builder, dir)
	MotionCommandAddSpeed(builder, cmd.Speed)
	MotionCommandAddTimestampNs(builder, at.UnixNano())
	MotionCommandAddConnectionId(builder, cid)
	builder.Finish(MotionCommandEnd(builder))
	return builder.FinishedBytes()
}

// DecodeMotion parses a buffer produced by EncodeMotion.
func DecodeMotion(buf []byte) (rec MotionRecord, err error) {
	if len(buf) < flatbuffers.SizeUOffsetT*2 {
		return MotionRecord{}, ErrMalformed
	}
	defer func() {
		if r := recover(); r != nil {
			rec = MotionRecord{}
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	msg := GetRootAsMotionCommand(buf, 0)
	wireDir := msg.Direction()
	var dir teleop.Direction
	for d, w := range toWire {
		if w == wireDir {
			dir = d
		}
	}
	if dir == "" {
		return MotionRecord{}, fmt.Errorf("%w: direction %s", ErrMalformed, wireDir)
	}

	return MotionRecord{
		Command:   teleop.MotionCommand{Direction: dir, Speed: msg.Speed()},
		ConnectionID: string(msg.ConnectionId()),
		Timestamp: time.Unix(0, msg.TimestampNs()),
	}, nil
}

package video

import (
	"fmt"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/pkg/log"
)

// CameraActionResult is the payload of camera_action_result.
type CameraActionResult struct {
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VideoService requests and stops the robot's video stream over the control channel
type VideoService struct {
	machine *connection.Machine
	link    *connection.Link
	events  *eventlog.Log
	logger  log.Logger
}

// NewVideoService creates a new video service instance
func NewVideoService(machine *connection.Machine, link *connection.Link, events *eventlog.Log, logger log.Logger) *VideoService {
	return &VideoService{
		machine: machine,
		link:    link,
		events:  events,
		logger:  logger,
	}
}

// StartStream asks the robot to start streaming. The video channel stays in
// connecting until the robot confirms.
func (s *VideoService) StartStream() error {
	if err := s.machine.RequestStream(); err != nil {
		return err
	}
	if err := s.link.Emit(connection.EventStartVideoStream, struct{}{}); err != nil {
		s.machine.HandleStreamError(err.Error())
		return err
	}
	return nil
}

// StopStream asks the robot to stop streaming.
func (s *VideoService) StopStream() error {
	if !s.link.Connected() {
		return connection.ErrNotConnected
	}
	if err := s.link.Emit(connection.EventStopVideoStream, struct{}{}); err != nil {
		s.logger.Warnf("Failed to send stop_video_stream: %v", err)
	}
	s.machine.StopStream()
	return nil
}

// ResetCamera asks the robot to reinitialize its camera.
func (s *VideoService) ResetCamera() error {
	if err := s.link.Emit(connection.EventResetCamera, struct{}{}); err != nil {
		return err
	}
	s.events.Info("Resetting camera")
	return nil
}

// HandleCameraResult records the outcome of a camera action.
func (s *VideoService) HandleCameraResult(result CameraActionResult) {
	if result.Action != "reset" {
		s.logger.Debugf("Ignoring camera action result for %q", result.Action)
		return
	}
	if result.Status == "success" {
		s.events.Success("Camera reset successful")
		return
	}
	msg := result.Message
	if msg == "" {
		msg = "Unknown error"
	}
	s.events.Error(fmt.Sprintf("Camera reset failed: %s", msg))
}

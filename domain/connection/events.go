package connection

// Outbound control channel events.
const (
	EventMoveCommand      = "move_command"
	EventPing             = "ping"
	EventStartVideoStream = "start_video_stream"
	EventStopVideoStream  = "stop_video_stream"
	EventResetCamera      = "reset_camera"
)

// Inbound control channel events.
const (
	EventConnectionEstablished = "connection_established"
	EventPong                  = "pong"
	EventCommandReceived       = "command_received"
	EventStreamStatus          = "stream_status"
	EventVideoStreamError      = "video_stream_error"
	EventVideoFrame            = "video_frame"
	EventCameraActionResult    = "camera_action_result"
	EventTelemetryUpdate       = "telemetry_update"
	EventNetworkMetrics        = "network_metrics"
	EventArmPositionUpdate     = "arm_position_update"
)

// Values of stream_status.status.
const (
	StreamStarted = "streaming_started"
	StreamStopped = "streaming_stopped"
)

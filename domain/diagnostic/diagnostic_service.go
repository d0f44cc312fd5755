package diagnostic

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/console/domain/teleop"
)

// EventInfo holds counters for one inbound event type
type EventInfo struct {
	Event        string `json:"event"`
	Count        int64  `json:"count"`
	LastReceived int64  `json:"last_received"`
}

// Metrics represents console diagnostics information
type Metrics struct {
	Timestamp      time.Time                  `json:"timestamp"`
	Events         []EventInfo                `json:"events"`
	LatencyMs      *int64                     `json:"latency_ms"`
	PingsSent      int64                      `json:"pings_sent"`
	PongsReceived  int64                      `json:"pongs_received"`
	VideoFrames    int64                      `json:"video_frames"`
	MotionCommands int64                      `json:"motion_commands"`
	StopCommands   int64                      `json:"stop_commands"`
	LastCommand    *teleop.MotionCommand      `json:"last_command,omitempty"`
	Telemetry      map[string]json.RawMessage `json:"telemetry"`
}

// DiagnosticService collects console health data. It is written from the
// console loop and read from HTTP handlers.
type DiagnosticService struct {
	mu sync.RWMutex

	events        map[string]*EventInfo
	latencyMs     *int64
	pingsSent     int64
	pongsReceived int64
	videoFrames   int64
	moves         int64
	stops         int64
	lastCommand   *teleop.MotionCommand
	telemetry     map[string]json.RawMessage

	now func() time.Time
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService() *DiagnosticService {
	return &DiagnosticService{
		events:    make(map[string]*EventInfo),
		telemetry: make(map[string]json.RawMessage),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *DiagnosticService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RecordEvent counts an inbound event.
func (s *DiagnosticService) RecordEvent(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.events[event]
	if !exists {
		info = &EventInfo{Event: event}
		s.events[event] = info
	}
	info.Count++
	info.LastReceived = s.now().UnixMilli()
	if event == "video_frame" {
		s.videoFrames++
	}
}

// RecordPing notes an outbound ping and returns the timestamp to send with it.
func (s *DiagnosticService) RecordPing() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingsSent++
	return s.now().UnixMilli()
}

// RecordPong computes round-trip latency from the echoed ping timestamp.
func (s *DiagnosticService) RecordPong(sentMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pongsReceived++
	if sentMs <= 0 {
		return
	}
	latency := s.now().UnixMilli() - sentMs
	if latency < 0 {
		latency = 0
	}
	s.latencyMs = &latency
}

// RecordTelemetry keeps the latest payload of a telemetry event.
func (s *DiagnosticService) RecordTelemetry(event string, payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry[event] = append(json.RawMessage(nil), payload...)
}

// ObserveMotion counts a transmitted motion command.
func (s *DiagnosticService) ObserveMotion(cmd teleop.MotionCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.IsStop() {
		s.stops++
	} else {
		s.moves++
	}
	c := cmd
	s.lastCommand = &c
}

// GetMetrics returns the current metrics
func (s *DiagnosticService) GetMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]EventInfo, 0, len(s.events))
	for _, info := range s.events {
		events = append(events, *info)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Event < events[j].Event })

	telemetry := make(map[string]json.RawMessage, len(s.telemetry))
	for k, v := range s.telemetry {
		telemetry[k] = v
	}

	m := Metrics{
		Timestamp:      s.now(),
		Events:         events,
		PingsSent:      s.pingsSent,
		PongsReceived:  s.pongsReceived,
		VideoFrames:    s.videoFrames,
		MotionCommands: s.moves,
		StopCommands:   s.stops,
		Telemetry:      telemetry,
	}
	if s.latencyMs != nil {
		l := *s.latencyMs
		m.LatencyMs = &l
	}
	if s.lastCommand != nil {
		c := *s.lastCommand
		m.LastCommand = &c
	}
	return m
}

// GetMetricsHandler handles API requests for console metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

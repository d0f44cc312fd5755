package zeromq

import (
	"time"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/wire"
)

// Topics published by the console
const (
	TopicLog    = "console.log"
	TopicState  = "console.state"
	TopicMotion = "console.motion"
)

// Message types on the published topics
const (
	MsgTypeLogEntry    = "LOG_ENTRY"
	MsgTypeStateChange = "STATE_CHANGE"
)

// Publisher is the subset of ZeroMQService the event publisher needs
type Publisher interface {
	PublishMessage(topic string, message []byte) error
	PublishJSON(topic string, messageType string, data interface{}) error
}

// EventPublisher mirrors console activity to local subscribers. Publish
// failures are logged and never reach the caller.
type EventPublisher struct {
	service Publisher
	logger  customlog.Logger
	now     func() time.Time
}

// NewEventPublisher creates a new publisher for console events
func NewEventPublisher(service Publisher, logger customlog.Logger) *EventPublisher {
	return &EventPublisher{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// PublishLogEntry publishes an operator event log entry as JSON
func (p *EventPublisher) PublishLogEntry(entry eventlog.Entry) {
	if err := p.service.PublishJSON(TopicLog, MsgTypeLogEntry, entry); err != nil {
		p.logger.Debugf("Failed to publish log entry %s: %v", entry.ID, err)
	}
}

// PublishStateChange publishes a channel state transition as JSON
func (p *EventPublisher) PublishStateChange(change connection.Change) {
	if err := p.service.PublishJSON(TopicState, MsgTypeStateChange, change); err != nil {
		p.logger.Debugf("Failed to publish state change: %v", err)
	}
}

// PublishMotion publishes a transmitted motion command as a MotionCommand flatbuffer
func (p *EventPublisher) PublishMotion(cmd teleop.MotionCommand, connID string) {
	buf := wire.EncodeMotion(cmd, connID, p.now())
	if err := p.service.PublishMessage(TopicMotion, buf); err != nil {
		p.logger.Debugf("Failed to publish motion %s: %v", cmd, err)
	}
}

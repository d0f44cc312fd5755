package zeromq

import (
	"encoding/json"
	"fmt"
	"time"
)

// Request and response types served on the REP socket
const (
	MsgTypeStatusRequest  = "STATUS_REQUEST"
	MsgTypeStatusResponse = "STATUS_RESPONSE"
	MsgTypeLogRequest     = "LOG_REQUEST"
	MsgTypeLogResponse    = "LOG_RESPONSE"
	MsgTypeEstopRequest   = "ESTOP_REQUEST"
	MsgTypeEstopResponse  = "ESTOP_RESPONSE"
)

// ConsoleControl is what the request handlers need from the console
type ConsoleControl interface {
	Status() (interface{}, error)
	RecentLog(limit int) (interface{}, error)
	EmergencyStop() error
}

// LogRequest is the optional Data of a LOG_REQUEST
type LogRequest struct {
	Limit int `json:"limit"`
}

func respond(messageType string, data interface{}) ([]byte, error) {
	response := ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().Unix()),
		Data:      data,
	}
	responseData, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	return responseData, nil
}

// RegisterConsoleHandlers registers the status, log and emergency stop request handlers
func RegisterConsoleHandlers(service *ZeroMQService, console ConsoleControl) {
	service.RegisterHandlerFunc(MsgTypeStatusRequest, func(data []byte) ([]byte, error) {
		status, err := console.Status()
		if err != nil {
			return nil, err
		}
		return respond(MsgTypeStatusResponse, status)
	})

	service.RegisterHandlerFunc(MsgTypeLogRequest, func(data []byte) ([]byte, error) {
		var msg struct {
			Data LogRequest `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		entries, err := console.RecentLog(msg.Data.Limit)
		if err != nil {
			return nil, err
		}
		return respond(MsgTypeLogResponse, entries)
	})

	service.RegisterHandlerFunc(MsgTypeEstopRequest, func(data []byte) ([]byte, error) {
		if err := console.EmergencyStop(); err != nil {
			return nil, err
		}
		service.logger.Warnf("Emergency stop requested over ZeroMQ")
		return respond(MsgTypeEstopResponse, map[string]string{"status": "OK"})
	})
}

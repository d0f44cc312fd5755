// Package channel implements the control channel to the robot controller
// as JSON event envelopes over a websocket.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	customlog "github.com/open-teleop/console/pkg/log"
)

var (
	ErrNotOpen   = errors.New("control channel is not open")
	ErrQueueFull = errors.New("send queue is full")
)

// ConnectionIDHeader is read from the handshake response when the controller
// assigns connection ids.
const ConnectionIDHeader = "X-Connection-Id"

const writeWait = 2 * time.Second

// Envelope is one event on the wire.
type Envelope struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Handler receives channel lifecycle and inbound events. Callbacks arrive on
// the client's goroutines.
type Handler interface {
	OnOpen(connID string)
	OnEvent(env Envelope)
	OnClose(reason string, expected bool)
	OnError(err error)
}

// Options configures a Client.
type Options struct {
	URL              string
	HandshakeTimeout time.Duration
	SendQueueSize    int
}

// Client is a websocket control channel. Open dials in the background and
// reports the outcome to the handler.
type Client struct {
	opts    Options
	dialer  *websocket.Dialer
	handler Handler
	logger  customlog.Logger

	mu      sync.Mutex
	gen     int
	dialing bool
	closing bool
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
}

// NewClient creates a client. SetHandler must be called before Open.
func NewClient(opts Options, logger customlog.Logger) *Client {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 64
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger,
	}
}

// SetHandler registers the event handler.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Open starts dialing. It is a no-op while a connection exists or is being dialed.
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler == nil {
		return errors.New("channel handler not set")
	}
	if c.conn != nil || c.dialing {
		return nil
	}
	c.gen++
	c.dialing = true
	c.closing = false
	go c.dial(c.gen)
	return nil
}

func (c *Client) dial(gen int) {
	c.logger.Infof("Dialing control channel %s", c.opts.URL)
	conn, resp, err := c.dialer.Dial(c.opts.URL, nil)

	c.mu.Lock()
	c.dialing = false
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.handler.OnError(fmt.Errorf("dial %s: %w", c.opts.URL, err))
		return
	}

	connID := ""
	if resp != nil {
		connID = resp.Header.Get(ConnectionIDHeader)
	}
	if connID == "" {
		connID = uuid.NewString()
	}

	send := make(chan []byte, c.opts.SendQueueSize)
	done := make(chan struct{})
	c.conn = conn
	c.send = send
	c.done = done
	c.mu.Unlock()

	// OnOpen must be delivered before any inbound event or close.
	c.handler.OnOpen(connID)
	go c.writeLoop(conn, send, done)
	go c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(conn, gen, err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warnf("Dropping malformed frame: %v", err)
			continue
		}
		c.handler.OnEvent(env)
	}
}

func (c *Client) finish(conn *websocket.Conn, gen int, readErr error) {
	c.mu.Lock()
	expected := c.closing || gen != c.gen
	if c.conn == conn {
		c.conn = nil
		close(c.done)
		c.send = nil
		c.done = nil
	}
	c.mu.Unlock()
	conn.Close()

	reason := readErr.Error()
	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) {
		reason = fmt.Sprintf("closed by server (%d %s)", closeErr.Code, closeErr.Text)
		if closeErr.Code == websocket.CloseNormalClosure {
			expected = true
		}
	}
	if expected {
		reason = "client disconnect"
	}
	c.handler.OnClose(reason, expected)
}

func (c *Client) writeLoop(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warnf("Write failed, closing control channel: %v", err)
				conn.Close()
				return
			}
		}
	}
}

// Send queues an event. It never blocks.
func (c *Client) Send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotOpen
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close shuts the connection down. The handler sees an expected close.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	c.gen++
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debugf("Close frame not sent: %v", err)
	}
	return conn.Close()
}

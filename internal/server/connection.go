package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/frame"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 256
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection is one WebSocket viewer of one table. An empty user watches
// anonymously.
type Connection struct {
	conn       *websocket.Conn
	user       string
	controller *controller.Controller
	send       chan *Message
	logger     *log.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	closed     bool
	closeOnce  sync.Once
}

func NewConnection(conn *websocket.Conn, user string, c *controller.Controller, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:       conn,
		user:       user,
		controller: c,
		send:       make(chan *Message, sendBuffer),
		logger:     logger.WithPrefix("conn").With("table", c.Name(), "user", user),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Connection) User() string { return c.user }

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Start subscribes to the table, sends the current frame and begins
// pumping messages.
func (c *Connection) Start() {
	updates, unsubscribe := c.controller.Subscribe()
	if f := c.controller.Frames(); f != nil {
		c.sendFrame(f)
	}

	go c.writePump()
	go c.readPump()
	go c.forward(updates, unsubscribe)
}

// Close stops accepting messages. The write pump flushes what is queued,
// sends a close frame and closes the socket.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
	return nil
}

// SendMessage queues msg, closing the connection if its buffer is full.
func (c *Connection) SendMessage(msg *Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) sendFrame(set frame.Set) {
	c.sendData(MessageTypeFrame, set.For(c.user))
}

func (c *Connection) sendData(t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error("Failed to encode message", "type", t, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

// forward relays controller updates until the subscription ends.
func (c *Connection) forward(updates <-chan controller.Update, unsubscribe func()) {
	defer func() { _ = c.Close() }()
	defer unsubscribe()

	for {
		select {
		case <-c.ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				c.logger.Debug("Table stopped")
				return
			}
			for _, set := range u.Frames {
				c.sendFrame(set)
			}
			if u.Notice != nil && slices.Contains(u.Notice.Users, c.user) {
				c.sendData(MessageTypeNotice, NoticeData{Message: u.Notice.Message})
			}
			if u.Unavailable {
				c.sendData(MessageTypeUnavailable, nil)
				return
			}
		}
	}
}

// readPump handles incoming actions from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var data ActionData
		if err := c.conn.ReadJSON(&data); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		c.handleAction(data)
	}
}

func (c *Connection) handleAction(data ActionData) {
	if c.user == frame.Anonymous {
		c.sendData(MessageTypeNotice, NoticeData{Message: "You are not an authenticated user."})
		return
	}
	c.logger.Debug("Received action", "action", data.Action)
	if err := c.controller.Handle(c.user, data.Action); err != nil {
		c.sendData(MessageTypeUnavailable, nil)
		_ = c.Close()
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ipc

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/tidwall/gjson"
)

// Handler answers one message. A nil envelope sends nothing back; an error
// is turned into an error message for the same request.
type Handler func(env Envelope) (*Envelope, error)

// Connection is one game session. Messages are handled in arrival order,
// so a session has at most one plan in flight.
type Connection struct {
	conn     net.Conn
	handlers map[string]Handler
	writeMu  sync.Mutex
	greeted  bool

	// Player is set by the hello handler and only used for logging.
	Player string
}

func NewConnection(conn net.Conn, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{conn: conn, handlers: handlers}
}

// Handle routes messages of msgType to h. It must be called before Serve.
func (c *Connection) Handle(msgType string, h Handler) {
	c.handlers[msgType] = h
}

func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.write(env)
}

func (c *Connection) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteEnvelope(c.conn, env)
}

// Close ends the session and unblocks Serve.
func (c *Connection) Close() error { return c.conn.Close() }

// Serve reads and answers messages until the peer goes away or a reply
// cannot be written. It closes the connection on return.
func (c *Connection) Serve() {
	defer c.conn.Close()

	for {
		env, err := ReadEnvelope(c.conn)
		if err != nil {
			slog.Info("session ended", "player", c.Player, "error", err)
			return
		}
		if err := c.dispatch(env); err != nil {
			slog.Error("reply failed", "type", env.Type, "player", c.Player, "error", err)
			return
		}
	}
}

func (c *Connection) dispatch(env Envelope) error {
	h, ok := c.handlers[env.Type]
	if !ok {
		slog.Warn("unhandled message", "type", env.Type, "player", c.Player)
		return nil
	}
	if env.Type != TypeHello && !c.greeted {
		return c.refuse(env, ErrNotGreeted)
	}

	resp, err := h(env)
	if err != nil {
		return c.refuse(env, err)
	}
	if env.Type == TypeHello {
		c.greeted = true
	}
	if resp == nil {
		return nil
	}
	if err := c.write(*resp); err != nil {
		if errors.Is(err, ErrTooLarge) {
			return c.refuse(env, err)
		}
		return err
	}
	slog.Debug("replied", "type", resp.Type, "player", c.Player)
	return nil
}

// refuse answers env with an error message carrying its request id.
func (c *Connection) refuse(env Envelope, cause error) error {
	id := gjson.GetBytes(env.Data, "requestId").String()
	slog.Warn("request refused", "type", env.Type, "request", id, "player", c.Player, "error", cause)
	return c.Send(TypeError, ErrorMessage{RequestID: id, Error: cause.Error()})
}

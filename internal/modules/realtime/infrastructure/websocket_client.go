package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"careLinkWs/internal/modules/realtime/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxFrameSize = 1 << 16
)

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	sendMu       sync.Mutex
	closed       bool
	userID       string
	role         string
	connectionID string
	commands     *CommandProcessor
	subscribed   map[string]struct{}
	closeOnce    sync.Once
	closeHooks   []func(*Client)
	hookMu       sync.Mutex
}

// NewClient crea un cliente WebSocket con metadata de usuario y buffer configurable.
func NewClient(hub *Hub, conn *websocket.Conn, userID, role, connectionID string, buf int, fallback CommandHandler) *Client {
	if buf <= 0 {
		buf = 16
	}
	client := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, buf),
		userID:       strings.TrimSpace(userID),
		role:         strings.TrimSpace(role),
		connectionID: connectionID,
		subscribed:   make(map[string]struct{}),
	}
	client.commands = NewCommandProcessor(hub, fallback)
	return client
}

func (c *Client) UserID() string       { return c.userID }
func (c *Client) Role() string         { return c.role }
func (c *Client) ConnectionID() string { return c.connectionID }

// Commands exposes the processor so transports can register actions.
func (c *Client) Commands() *CommandProcessor { return c.commands }

func (c *Client) key() string {
	return c.userID + ":" + c.connectionID
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.invokeCloseHooks()
	})
}

// AddCloseHook registers a callback that will be executed once when the client closes.
func (c *Client) AddCloseHook(fn func(*Client)) {
	if fn == nil {
		return
	}
	c.hookMu.Lock()
	c.closeHooks = append(c.closeHooks, fn)
	c.hookMu.Unlock()
}

func (c *Client) invokeCloseHooks() {
	c.hookMu.Lock()
	hooks := append([]func(*Client){}, c.closeHooks...)
	c.closeHooks = nil
	c.hookMu.Unlock()

	for _, hook := range hooks {
		func(h func(*Client)) {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("ws close hook panic", slog.Any("error", r))
				}
			}()
			h(c)
		}(hook)
	}
}

// enqueue reports false when the client is closed or its buffer is full; a full buffer detaches it.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("websocket send buffer full", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID))
		go c.hub.detachClient(c)
		return false
	}
}

func (c *Client) SendEnvelope(env *domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("websocket marshal error", slog.Any("error", err))
		return
	}
	c.enqueue(data)
}

func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("websocket write error", slog.String("userId", c.userID), slog.Any("error", err))
				c.hub.detachClient(c)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				slog.Warn("websocket ping error", slog.String("userId", c.userID), slog.Any("error", err))
				c.hub.detachClient(c)
				return
			}
		}
	}
}

// ReadPump processes commands one at a time so a connection's commands apply in order.
func (c *Client) ReadPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	defer c.hub.detachClient(c)
	for {
		var cmd Command
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID), slog.Any("error", err))
			}
			return
		}
		c.commands.Process(ctx, c, cmd)
	}
}

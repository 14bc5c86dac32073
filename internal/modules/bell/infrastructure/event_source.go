package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("bell: not connected")

// Status describes the link between the bell and the realtime service.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Frame is a server envelope whose data stays raw until the consumer knows its shape.
type Frame struct {
	Topic     string            `json:"topic"`
	Event     string            `json:"event"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Update is emitted on the source channel: either a status transition or a frame.
type Update struct {
	Status Status
	Frame  *Frame
}

type command struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// EventSource keeps one websocket to the service open, reconnecting with backoff.
type EventSource struct {
	endpoint string
	dialer   *websocket.Dialer
	backoff  *Backoff
	updates  chan Update

	mu        sync.Mutex
	conn      *websocket.Conn
	requestID string
}

// NewEventSource builds a source for rawURL (http(s) or ws(s)); the token travels as the
// token query parameter. A nil backoff uses NewBackoff.
func NewEventSource(rawURL, token string, backoff *Backoff) (*EventSource, error) {
	endpoint, err := websocketURL(rawURL, token)
	if err != nil {
		return nil, err
	}
	if backoff == nil {
		backoff = NewBackoff()
	}
	return &EventSource{
		endpoint: endpoint,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff:  backoff,
		updates:  make(chan Update, 32),
	}, nil
}

func websocketURL(rawURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("bell: invalid url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("bell: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if token = strings.TrimSpace(token); token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Updates streams statuses and frames until Run returns, then it is closed.
func (s *EventSource) Updates() <-chan Update {
	return s.updates
}

// Run connects and reconnects until ctx is cancelled.
func (s *EventSource) Run(ctx context.Context) {
	defer close(s.updates)
	s.emit(ctx, Update{Status: StatusConnecting})
	for {
		conn, err := s.dial(ctx)
		if err == nil {
			s.backoff.Reset()
			s.emit(ctx, Update{Status: StatusConnected})
			err = s.readLoop(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		delay := s.backoff.Next()
		slog.Debug("bell reconnect scheduled", slog.Duration("delay", delay), slog.Int("attempt", s.backoff.Attempt()), slog.Any("error", err))
		s.emit(ctx, Update{Status: StatusReconnecting})
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *EventSource) dial(ctx context.Context) (*websocket.Conn, error) {
	requestID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Request-ID", requestID)
	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.requestID = requestID
	s.mu.Unlock()
	return conn, nil
}

func (s *EventSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				slog.Warn("bell dropped malformed frame", slog.Any("error", err))
				continue
			}
			return err
		}
		if !s.emit(ctx, Update{Frame: &frame}) {
			return ctx.Err()
		}
	}
}

func (s *EventSource) emit(ctx context.Context, u Update) bool {
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send writes a command on the current connection.
func (s *EventSource) Send(action string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteJSON(command{Action: action, Payload: payload}); err != nil {
		return fmt.Errorf("bell: send %s: %w", action, err)
	}
	return nil
}

// RequestID identifies the current connection attempt in the server logs.
func (s *EventSource) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

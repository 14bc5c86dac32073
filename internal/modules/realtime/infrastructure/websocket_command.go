package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"careLinkWs/internal/modules/realtime/domain"
)

type Command struct {
	Action  string          `json:"action"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c Command) actionKey() string {
	return normalizeAction(c.Action)
}

type CommandHandler func(ctx context.Context, client *Client, cmd Command)

// CommandProcessor routes client commands by action. Handlers run synchronously on the
// read pump, bounded by a per-command timeout.
type CommandProcessor struct {
	hub      *Hub
	handlers map[string]CommandHandler
	fallback CommandHandler
	timeout  time.Duration
}

func NewCommandProcessor(hub *Hub, fallback CommandHandler) *CommandProcessor {
	processor := &CommandProcessor{
		hub:      hub,
		handlers: make(map[string]CommandHandler),
		fallback: fallback,
		timeout:  10 * time.Second,
	}
	processor.Register("subscribe", processor.handleSubscribe)
	processor.Register("unsubscribe", processor.handleUnsubscribe)
	processor.Register("ping", processor.handlePing)
	return processor
}

func (p *CommandProcessor) Register(action string, handler CommandHandler) {
	if handler == nil {
		return
	}
	key := normalizeAction(action)
	if key == "" {
		return
	}
	p.handlers[key] = handler
}

func (p *CommandProcessor) Process(ctx context.Context, client *Client, cmd Command) {
	if client == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	action := cmd.actionKey()
	if action == "" {
		return
	}

	handler, ok := p.handlers[action]
	if !ok {
		handler = p.fallback
	}
	if handler == nil {
		slog.Debug("ws command ignored", slog.String("userId", client.userID), slog.String("connectionId", client.connectionID), slog.String("action", action))
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	handler(cmdCtx, client, cmd)
}

func (p *CommandProcessor) handleSubscribe(_ context.Context, client *Client, cmd Command) {
	topic := domain.NormalizeTopic(cmd.Topic)
	if topic == "" {
		slog.Debug("ws subscribe ignored empty topic", slog.String("userId", client.userID), slog.String("connectionId", client.connectionID))
		return
	}
	p.hub.subscribe(client, topic)
	slog.Debug("ws subscribe", slog.String("userId", client.userID), slog.String("connectionId", client.connectionID), slog.String("topic", topic))
}

func (p *CommandProcessor) handleUnsubscribe(_ context.Context, client *Client, cmd Command) {
	topic := domain.NormalizeTopic(cmd.Topic)
	if topic == "" {
		return
	}
	p.hub.unsubscribe(client, topic)
}

func (p *CommandProcessor) handlePing(_ context.Context, client *Client, _ Command) {
	client.SendEnvelope(domain.NewEnvelope(domain.TopicSystem, domain.EventPong, nil))
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

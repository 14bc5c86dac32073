package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"careLinkWs/internal/modules/realtime/domain"
)

type Hub struct {
	topics  map[string]map[*Client]struct{}
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[string]*Client),
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.clients[c.key()]; ok && existing != c {
		h.detachLocked(existing)
	}
	h.clients[c.key()] = c
	slog.Info("ws client registered", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID))
}

func (h *Hub) subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	c.subscribed[topic] = struct{}{}
}

func (h *Hub) unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.subscribed, topic)
	slog.Debug("ws client unsubscribed", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID), slog.String("topic", topic))
}

func (h *Hub) detachClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
}

func (h *Hub) detachLocked(c *Client) {
	if c == nil {
		return
	}
	for topic := range c.subscribed {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	if current, ok := h.clients[c.key()]; ok && current == c {
		delete(h.clients, c.key())
	}
	c.close()
	slog.Info("ws client detached", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID))
}

// Broadcast sends env to the subscribers of its topic, restricted to the target identity
// when the envelope carries one. Slow clients are detached instead of blocking the caller.
func (h *Hub) Broadcast(_ context.Context, env *domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("broadcast marshal error", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	subs := h.topics[env.Topic]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	target := strings.TrimSpace(env.Target())
	for _, c := range clients {
		if target != "" && c.userID != target {
			continue
		}
		c.enqueue(data)
	}
}

func (h *Hub) AttachClient(c *Client, topics []string) {
	h.registerClient(c)
	for _, topic := range topics {
		if trimmed := domain.NormalizeTopic(topic); trimmed != "" {
			h.subscribe(c, trimmed)
		}
	}
	slog.Info("ws client attached", slog.String("userId", c.userID), slog.String("connectionId", c.connectionID), slog.Any("topics", topics))
}

// Connections counts attached clients, optionally of one identity.
func (h *Hub) Connections(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if identity == "" {
		return len(h.clients)
	}
	count := 0
	for _, c := range h.clients {
		if c.userID == identity {
			count++
		}
	}
	return count
}

// Close detaches every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.detachLocked(c)
	}
}

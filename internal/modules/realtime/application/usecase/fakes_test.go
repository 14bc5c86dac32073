package usecase

import (
	"context"
	"sync"

	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/shared/auth"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	envelopes []*domain.Envelope
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, env *domain.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, env)
}

func (b *recordingBroadcaster) forTarget(identity, event string) []*domain.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Envelope, 0)
	for _, env := range b.envelopes {
		if env.Target() == identity && env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.InboundEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.InboundEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry port.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) Recent(_ context.Context, userID string, limit int) ([]port.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]port.AuditEntry, 0)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || a.entries[i].UserID == userID {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type stubValidator struct {
	claims map[string]*auth.Claims
}

func (v stubValidator) Validate(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	claims, ok := v.claims[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

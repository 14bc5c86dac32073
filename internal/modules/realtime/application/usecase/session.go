package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
)

const DefaultSessionRetention = 15 * time.Minute

// Session holds the notification store and messaging channel of one identity.
type Session struct {
	identity    string
	store       *notifications.Store
	channel     *messaging.Channel
	refs        int
	reminders   port.Reminders
	cancel      context.CancelFunc
	expiry      *time.Timer
	unsubscribe func()
}

func (s *Session) Identity() string            { return s.identity }
func (s *Session) Store() *notifications.Store { return s.store }
func (s *Session) Channel() *messaging.Channel { return s.channel }

type SessionConfig struct {
	Capacity  int
	Retention time.Duration
	Directory *messaging.Directory
}

// SessionRegistry owns the sessions of every identity. The first Acquire of an identity
// starts its reminder producers, built once per session so their state survives
// reconnects; the last Release stops them and arms a retention timer
// after which the session is dropped. Events keep flowing into retained sessions so a
// reconnecting consumer receives what it missed in its connect snapshot.
type SessionRegistry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	cfg         SessionConfig
	broadcaster port.Broadcaster
	reminders   port.ReminderFactory
	baseCtx     context.Context
	closed      bool
}

func NewSessionRegistry(ctx context.Context, broadcaster port.Broadcaster, reminders port.ReminderFactory, cfg SessionConfig) *SessionRegistry {
	if cfg.Capacity <= 0 {
		cfg.Capacity = notifications.DefaultCapacity
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSessionRetention
	}
	if cfg.Directory == nil {
		cfg.Directory = messaging.DefaultDirectory()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &SessionRegistry{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		broadcaster: broadcaster,
		reminders:   reminders,
		baseCtx:     ctx,
	}
}

// Acquire attaches a consumer to identity, creating the session on demand.
func (r *SessionRegistry) Acquire(identity string, role messaging.Role) *Session {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(identity)
	if role != "" {
		s.channel.SetRole(role)
	}
	s.refs++
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	if s.cancel == nil && r.reminders != nil && !r.closed {
		if s.reminders == nil {
			s.reminders = r.reminders(identity, s.store)
		}
		ctx, cancel := context.WithCancel(r.baseCtx)
		s.cancel = cancel
		go s.reminders.Run(ctx)
	}
	slog.Debug("session acquired", slog.String("userId", identity), slog.Int("refs", s.refs))
	return s
}

// Release detaches one consumer. Extra releases are ignored.
func (r *SessionRegistry) Release(identity string) {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok || s.refs == 0 {
		return
	}
	s.refs--
	slog.Debug("session released", slog.String("userId", identity), slog.Int("refs", s.refs))
	if s.refs > 0 {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	r.armExpiryLocked(s)
}

// Lookup returns the live or retained session of identity.
func (r *SessionRegistry) Lookup(identity string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[strings.TrimSpace(identity)]
	return s, ok
}

// Ensure returns the session of identity, creating a retained one when none exists so
// events addressed to an offline identity are kept until it connects. A non-empty role
// updates the messaging role of the session.
func (r *SessionRegistry) Ensure(identity string, role messaging.Role) *Session {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ensureLocked(identity)
	if role != "" {
		s.channel.SetRole(role)
	}
	if s.refs == 0 && s.expiry == nil {
		r.armExpiryLocked(s)
	}
	return s
}

// Each visits every session. fn must not call back into the registry.
func (r *SessionRegistry) Each(fn func(*Session)) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		fn(s)
	}
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every reminder producer and drops all sessions.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for identity, s := range r.sessions {
		r.dropLocked(identity, s)
	}
}

func (r *SessionRegistry) ensureLocked(identity string) *Session {
	if s, ok := r.sessions[identity]; ok {
		return s
	}
	s := &Session{
		identity: identity,
		store:    notifications.NewStore(notifications.WithCapacity(r.cfg.Capacity)),
		channel:  messaging.NewChannel(identity, "", r.cfg.Directory, nil),
	}
	s.unsubscribe = s.store.Subscribe(func(change notifications.Change) {
		r.pushNotifications(identity, change.Items, change.Unread)
	})
	r.sessions[identity] = s
	slog.Info("session created", slog.String("userId", identity))
	return s
}

func (r *SessionRegistry) armExpiryLocked(s *Session) {
	var timer *time.Timer
	timer = time.AfterFunc(r.cfg.Retention, func() {
		r.expire(s, timer)
	})
	s.expiry = timer
}

// expire drops s when timer is still its armed retention timer. A timer that already
// fired while Acquire held the lock is stale and ignored.
func (r *SessionRegistry) expire(s *Session, timer *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.expiry != timer || s.refs != 0 {
		return
	}
	if current, ok := r.sessions[s.identity]; ok && current == s {
		r.dropLocked(s.identity, s)
		slog.Info("session expired", slog.String("userId", s.identity))
	}
}

func (r *SessionRegistry) dropLocked(identity string, s *Session) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	delete(r.sessions, identity)
}

func (r *SessionRegistry) pushNotifications(identity string, items []notifications.Notification, unread int) {
	if r.broadcaster == nil {
		return
	}
	env := domain.NewEnvelope(domain.TopicNotifications, domain.EventSnapshot, domain.NotificationsSnapshot{Items: items, Unread: unread})
	r.broadcaster.Broadcast(r.baseCtx, env.For(identity))
}

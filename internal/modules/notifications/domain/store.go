package domain

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Store is the single source of truth for one identity's notification list.
// Entries are kept newest first and bounded by capacity; the oldest entries are evicted.
// Mutations and listener deliveries are serialized in call order. Listeners must not
// call mutating methods of the same store.
type Store struct {
	writeMu sync.Mutex

	mu           sync.RWMutex
	items        []Notification
	capacity     int
	lastID       int64
	now          func() time.Time
	listeners    map[int]Listener
	nextListener int
}

// Option customizes a Store.
type Option func(*Store)

// WithCapacity bounds the number of retained notifications. Non-positive values use DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithClock replaces the wall clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		capacity:  DefaultCapacity,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a new unread notification at the head of the list and returns it.
func (s *Store) Add(in Input) Notification {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	now := s.now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	kind := in.Type
	if _, ok := allowedTypes[string(kind)]; !ok {
		kind = TypeInfo
	}
	timestamp := strings.TrimSpace(in.Timestamp)
	if timestamp == "" {
		timestamp = now.Format(TimestampLayout)
	}
	created := Notification{
		ID:        id,
		Message:   strings.TrimSpace(in.Message),
		Type:      kind,
		Timestamp: timestamp,
	}

	size := len(s.items) + 1
	if size > s.capacity {
		size = s.capacity
	}
	next := make([]Notification, 0, size)
	next = append(next, created)
	next = append(next, s.items[:size-1]...)
	s.items = next
	change := s.changeLocked(ChangeAdded, id)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, change)
	return created
}

// Remove deletes the notification with the given id. Unknown ids are ignored.
func (s *Store) Remove(id int64) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	next := make([]Notification, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	s.items = next
	change := s.changeLocked(ChangeRemoved, id)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, change)
	return true
}

// MarkRead flags a single notification as read.
func (s *Store) MarkRead(id int64) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	if s.items[idx].Read {
		s.mu.Unlock()
		return true
	}
	s.items[idx].Read = true
	change := s.changeLocked(ChangeRead, id)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, change)
	return true
}

// MarkAllRead flags every notification as read. Calling it again changes nothing.
func (s *Store) MarkAllRead() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := false
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	change := s.changeLocked(ChangeReadAll, 0)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, change)
}

// List returns a copy of the notifications, newest first.
func (s *Store) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CountUnread(s.items)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers a listener and returns the function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []Notification {
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) changeLocked(kind ChangeKind, id int64) Change {
	items := s.snapshotLocked()
	return Change{Kind: kind, ID: id, Items: items, Unread: CountUnread(items)}
}

func (s *Store) listenersLocked() []Listener {
	if len(s.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		l(change)
	}
}

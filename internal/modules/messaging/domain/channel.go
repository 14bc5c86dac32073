package domain

import (
	"strings"
	"sync"
	"time"
)

// Channel holds the flat message list of one identity and the active conversation.
type Channel struct {
	mu        sync.RWMutex
	owner     string
	role      Role
	directory *Directory
	messages  []Message
	selected  string
	unread    int
	lastID    int64
	now       func() time.Time
}

func NewChannel(owner string, role Role, directory *Directory, now func() time.Time) *Channel {
	if directory == nil {
		directory = DefaultDirectory()
	}
	if now == nil {
		now = time.Now
	}
	return &Channel{owner: owner, role: role, directory: directory, now: now}
}

func (c *Channel) Owner() string { return c.owner }

func (c *Channel) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SetRole updates the role once the identity authenticates; sessions can exist before that.
func (c *Channel) SetRole(role Role) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

// Compose validates and appends an outgoing message (local echo). Rejected input leaves the channel untouched.
func (c *Channel) Compose(recipient, content string) (Message, error) {
	recipient = strings.TrimSpace(recipient)
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	if recipient == "" {
		return Message{}, ErrMissingRecipient
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.directory.Allows(c.role, c.owner, c.messages, recipient) {
		return Message{}, ErrRecipientNotAllowed
	}
	now := c.now()
	msg := Message{
		ID:        c.nextIDLocked(now),
		Sender:    c.owner,
		Recipient: recipient,
		Content:   content,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	c.messages = append(c.messages, msg)
	return msg, nil
}

// Receive appends an inbound message and returns it as stored. The bool reports whether
// it is a new unread message addressed to the owner. Messages carrying an id are dropped
// when the same sender already delivered that id; id-less messages get a channel id.
func (c *Channel) Receive(msg Message) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.ID == 0 {
		msg.ID = c.nextIDLocked(c.now())
	} else {
		for _, existing := range c.messages {
			if existing.ID == msg.ID && existing.Sender == msg.Sender {
				return existing, false
			}
		}
	}
	c.messages = append(c.messages, msg)
	if msg.Recipient == c.owner && !msg.Read {
		c.unread++
		return msg, true
	}
	return msg, false
}

// nextIDLocked returns max(now in ms, last id + 1).
func (c *Channel) nextIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

// SelectRecipient switches the active conversation and marks every message addressed
// to the owner as read, whichever conversation it belongs to.
func (c *Channel) SelectRecipient(recipient string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = strings.TrimSpace(recipient)
	for i := range c.messages {
		if c.messages[i].Recipient == c.owner {
			c.messages[i].Read = true
		}
	}
	c.unread = 0
}

func (c *Channel) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Visible returns the active conversation.
func (c *Channel) Visible() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return VisibleMessages(c.messages, c.owner, c.selected)
}

// Conversation returns the messages exchanged with other, regardless of the active selection.
func (c *Channel) Conversation(other string) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return VisibleMessages(c.messages, c.owner, strings.TrimSpace(other))
}

func (c *Channel) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// Recipients lists the contacts of the owner's role filtered by search.
func (c *Channel) Recipients(search string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return FilterRecipients(c.directory.Recipients(c.role, c.owner, c.messages), search)
}

func (c *Channel) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

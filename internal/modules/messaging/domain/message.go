package domain

import "errors"

var (
	ErrEmptyContent        = errors.New("message content is empty")
	ErrMissingRecipient    = errors.New("message recipient is missing")
	ErrRecipientNotAllowed = errors.New("recipient not allowed for role")
)

// Message is one entry of the flat per-identity message list.
type Message struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Between reports whether the message belongs to the conversation {a, b}.
func (m Message) Between(a, b string) bool {
	return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
}

// VisibleMessages filters the conversation between currentUser and selected, keeping insertion order.
func VisibleMessages(messages []Message, currentUser, selected string) []Message {
	out := make([]Message, 0)
	if selected == "" {
		return out
	}
	for _, m := range messages {
		if (m.Sender == currentUser && m.Recipient == selected) || (m.Recipient == currentUser && m.Sender == selected) {
			out = append(out, m)
		}
	}
	return out
}

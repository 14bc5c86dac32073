package domain

import "strings"

const (
	TopicSystem        = "system"
	TopicNotifications = "notifications"
	TopicMessages      = "messages"

	EventConnected    = "connected"
	EventPong         = "pong"
	EventError        = "error"
	EventJoined       = "joined"
	EventSnapshot     = "snapshot"
	EventConversation = "conversation"
	EventRecipients   = "recipients"
)

// Inbound event names delivered by the event source.
const (
	EventNewMessage          = "newMessage"
	EventAppointmentUpdate   = "appointmentUpdate"
	EventAppointmentReminder = "appointmentReminder"
	EventNewNotification     = "newNotification"
)

// DefaultTopics are attached to every websocket connection.
func DefaultTopics() []string {
	return []string{TopicSystem, TopicNotifications, TopicMessages}
}

// NormalizeTopic trims and lowercases a topic name.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

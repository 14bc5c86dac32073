package domain

import (
	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
)

// NotificationsSnapshot is pushed to every consumer of an identity on each store change.
type NotificationsSnapshot struct {
	Items  []notifications.Notification `json:"items"`
	Unread int                          `json:"unread"`
}

// ConversationSnapshot describes the active conversation of a messaging panel.
type ConversationSnapshot struct {
	With       string              `json:"with"`
	Messages   []messaging.Message `json:"messages"`
	Unread     int                 `json:"unread"`
	Recipients []string            `json:"recipients,omitempty"`
}

type RecipientsSnapshot struct {
	Search     string   `json:"search,omitempty"`
	Recipients []string `json:"recipients"`
}

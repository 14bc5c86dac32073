package domain

// Client to server websocket command payloads.

type SendMessageCommand struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

type SelectRecipientCommand struct {
	Recipient string `json:"recipient"`
}

type NotificationIDCommand struct {
	ID int64 `json:"id" validate:"required"`
}

type RecipientsCommand struct {
	Search string `json:"search"`
}

type JoinCommand struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

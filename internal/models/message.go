package models

import "time"

// InboundMessage is a chat message as delivered by any transport.
type InboundMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	ReplyToken     string    `json:"replyToken,omitempty"`
	SentAt         time.Time `json:"sentAt"`
}

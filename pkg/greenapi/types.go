package greenapi

// Webhook event types. Only incoming messages are persisted; the rest is
// provider housekeeping and is acknowledged without processing.
const (
	WebhookIncomingMessage = "incomingMessageReceived"
	WebhookOutgoingStatus  = "outgoingMessageStatus"
	WebhookStateInstance   = "stateInstanceChanged"
)

// Message payload variants inside messageData.
const (
	MessageTypeText         = "textMessage"
	MessageTypeExtendedText = "extendedTextMessage"
)

// Instance authorization states returned by getStateInstance.
const (
	StateAuthorized    = "authorized"
	StateNotAuthorized = "notAuthorized"
	StateBlocked       = "blocked"
	StateStarting      = "starting"
)

// WebhookPayload is the provider's push notification body. The same shape
// arrives in the body of a queued notification on the poll path.
type WebhookPayload struct {
	TypeWebhook  string       `json:"typeWebhook"`
	InstanceData InstanceData `json:"instanceData"`
	Timestamp    int64        `json:"timestamp"`
	IDMessage    string       `json:"idMessage"`
	SenderData   SenderData   `json:"senderData"`
	MessageData  MessageData  `json:"messageData"`
}

type InstanceData struct {
	IDInstance   int64  `json:"idInstance"`
	Wid          string `json:"wid"`
	TypeInstance string `json:"typeInstance"`
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

// MessageData is a small tagged union: exactly one of the variant pointers is
// set for shapes we understand, everything else maps to "discard".
type MessageData struct {
	TypeMessage             string                   `json:"typeMessage"`
	TextMessageData         *TextMessageData         `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedTextMessageData `json:"extendedTextMessageData,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

type ExtendedTextMessageData struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
}

// Text resolves the union into plain message text. The second return is
// false for media, reactions, and any shape this service does not persist.
func (m MessageData) Text() (string, bool) {
	switch m.TypeMessage {
	case MessageTypeText:
		if m.TextMessageData != nil && m.TextMessageData.TextMessage != "" {
			return m.TextMessageData.TextMessage, true
		}
	case MessageTypeExtendedText:
		if m.ExtendedTextMessageData != nil && m.ExtendedTextMessageData.Text != "" {
			return m.ExtendedTextMessageData.Text, true
		}
	}
	return "", false
}

// Notification is one item from the provider's per-instance queue. The
// receipt id acknowledges (deletes) it after processing.
type Notification struct {
	ReceiptID int64          `json:"receiptId"`
	Body      WebhookPayload `json:"body"`
}

type SendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}

type StateInstanceResponse struct {
	StateInstance string `json:"stateInstance"`
}

// Authorized reports whether the instance can send and receive.
func (s *StateInstanceResponse) Authorized() bool {
	return s != nil && s.StateInstance == StateAuthorized
}

// RecentMessage is one row from lastIncomingMessages/lastOutgoingMessages.
// The provider spells direction "incoming"/"outgoing" here.
type RecentMessage struct {
	Type        string `json:"type"`
	IDMessage   string `json:"idMessage"`
	Timestamp   int64  `json:"timestamp"`
	TypeMessage string `json:"typeMessage"`
	ChatID      string `json:"chatId"`
	TextMessage string `json:"textMessage"`
	SenderID    string `json:"senderId,omitempty"`
	SenderName  string `json:"senderName,omitempty"`
}

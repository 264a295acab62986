package models

import "time"

type ConversationType string

const (
	ConversationTypeClient  ConversationType = "client"
	ConversationTypeLead    ConversationType = "lead"
	ConversationTypeUnknown ConversationType = "unknown"
)

// Conversation is a derived grouping of all messages sharing one normalized
// contact phone. It is never stored; every rebuild produces it from scratch.
type Conversation struct {
	ID              string           `json:"id"`
	ClinicID        string           `json:"clinicId"`
	Type            ConversationType `json:"type"`
	DisplayName     string           `json:"displayName"`
	Phone           string           `json:"phone"`
	ClientID        *int64           `json:"clientId,omitempty"`
	LeadID          *int64           `json:"leadId,omitempty"`
	Messages        []Message        `json:"messages"`
	LastMessage     string           `json:"lastMessage"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
}

package realtime

import (
	"sort"

	"vetline/internal/models"
	"vetline/internal/phone"
)

// MergeMessage folds one message event into an existing conversation view
// without rebuilding it. conversationID names the target conversation;
// when empty it is derived from the message's sender phone, which covers
// inbound events. Messages land at the end of their conversation in arrival
// order; only the conversation list is resorted. The input slice is not
// modified.
//
// Merge has no identity source, so a message from a contact absent from the
// view opens a placeholder conversation typed unknown with the normalized
// phone as its display name. The next full rebuild replaces it with the
// resolved client or lead conversation under the same key.
func MergeMessage(conversations []models.Conversation, conversationID string, msg models.Message) []models.Conversation {
	key := conversationID
	if key == "" {
		key = phone.Normalize(msg.SenderPhone)
	}
	if key == "" {
		return conversations
	}

	out := cloneConversations(conversations)

	idx := -1
	for i := range out {
		if out[i].ID == key {
			idx = i
			break
		}
	}

	if idx == -1 {
		conv := models.Conversation{
			ID:              key,
			ClinicID:        msg.ClinicID,
			Type:            models.ConversationTypeUnknown,
			DisplayName:     key,
			Phone:           key,
			Messages:        []models.Message{msg},
			LastMessage:     msg.Content,
			LastMessageTime: msg.SentAt,
		}
		out = append(out, conv)
		sortConversations(out)
		return out
	}

	conv := &out[idx]
	for _, existing := range conv.Messages {
		if existing.ID != "" && existing.ID == msg.ID {
			return conversations
		}
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg.Content
	conv.LastMessageTime = msg.SentAt

	sortConversations(out)
	return out
}

// SupersedeMessage replaces the placeholder with the confirmed message in
// place, keeping its position. A missing placeholder degrades to a plain
// merge so the confirmed message is never lost.
func SupersedeMessage(conversations []models.Conversation, tempID string, msg models.Message) []models.Conversation {
	out := cloneConversations(conversations)
	for i := range out {
		for j := range out[i].Messages {
			if out[i].Messages[j].ID == tempID {
				out[i].Messages[j] = msg
				if j == len(out[i].Messages)-1 {
					out[i].LastMessage = msg.Content
					out[i].LastMessageTime = msg.SentAt
					sortConversations(out)
				}
				return out
			}
		}
	}
	return MergeMessage(conversations, "", msg)
}

// RemoveMessage drops a rolled-back placeholder. A conversation left with no
// messages is removed entirely.
func RemoveMessage(conversations []models.Conversation, tempID string) []models.Conversation {
	out := cloneConversations(conversations)
	for i := range out {
		for j := range out[i].Messages {
			if out[i].Messages[j].ID != tempID {
				continue
			}
			conv := &out[i]
			conv.Messages = append(conv.Messages[:j], conv.Messages[j+1:]...)
			if len(conv.Messages) == 0 {
				out = append(out[:i], out[i+1:]...)
				return out
			}
			last := conv.Messages[len(conv.Messages)-1]
			conv.LastMessage = last.Content
			conv.LastMessageTime = last.SentAt
			sortConversations(out)
			return out
		}
	}
	return conversations
}

func sortConversations(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageTime.Equal(b.LastMessageTime) {
			return a.LastMessageTime.After(b.LastMessageTime)
		}
		return a.ID < b.ID
	})
}

func cloneConversations(conversations []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(conversations))
	copy(out, conversations)
	for i := range out {
		msgs := make([]models.Message, len(out[i].Messages))
		copy(msgs, out[i].Messages)
		out[i].Messages = msgs
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vetline/internal/identity"
	"vetline/internal/models"
	"vetline/internal/phone"
	"vetline/pkg/greenapi"

	"github.com/sirupsen/logrus"
)

// ConversationStore is the read side of the persistence boundary used when
// building conversations from stored rows.
type ConversationStore interface {
	GetMessagesByClinic(ctx context.Context, clinicID string) ([]models.Message, error)
	GetActiveClients(ctx context.Context, clinicID string) ([]models.Client, error)
	GetOpenLeads(ctx context.Context, clinicID string) ([]models.Lead, error)
}

// RecentMessageSource is the provider-direct alternative: last N minutes of
// traffic without touching the store. Identity resolution happens locally in
// that mode since the provider knows nothing about clients or leads.
type RecentMessageSource interface {
	LastIncomingMessages(ctx context.Context, minutes int) ([]greenapi.RecentMessage, error)
	LastOutgoingMessages(ctx context.Context, minutes int) ([]greenapi.RecentMessage, error)
}

// BuildConversations groups messages into per-contact conversations. It is a
// pure function of its inputs: rebuilding from the same message set yields
// the same grouping and ordering regardless of input order, which both
// ingestion paths rely on.
func BuildConversations(messages []models.Message, clients []models.Client, leads []models.Lead) []models.Conversation {
	resolver := identity.NewResolver(clients, leads)

	grouped := make(map[string]*models.Conversation)
	for i := range messages {
		msg := messages[i]
		key, rawPhone := conversationKey(&msg, resolver)
		if key == "" {
			// Unattributable: outbound with no link, or no usable phone.
			continue
		}

		conv, ok := grouped[key]
		if !ok {
			res := resolver.Resolve(key)
			conv = &models.Conversation{
				ID:          key,
				ClinicID:    msg.ClinicID,
				Type:        res.Type(),
				DisplayName: res.DisplayName(rawPhone),
				Phone:       rawPhone,
			}
			if res.Client != nil {
				id := res.Client.ID
				conv.ClientID = &id
			} else if res.Lead != nil {
				id := res.Lead.ID
				conv.LeadID = &id
			}
			grouped[key] = conv
		}
		conv.Messages = append(conv.Messages, msg)
	}

	conversations := make([]models.Conversation, 0, len(grouped))
	for _, conv := range grouped {
		conv.Messages = dedupByID(conv.Messages)
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			a, b := conv.Messages[i], conv.Messages[j]
			if !a.SentAt.Equal(b.SentAt) {
				return a.SentAt.Before(b.SentAt)
			}
			return a.ID < b.ID
		})
		last := conv.Messages[len(conv.Messages)-1]
		conv.LastMessage = last.Content
		conv.LastMessageTime = last.SentAt
		conversations = append(conversations, *conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageTime.Equal(b.LastMessageTime) {
			return a.LastMessageTime.After(b.LastMessageTime)
		}
		return a.ID < b.ID
	})

	return conversations
}

// conversationKey derives the grouping key: normalized sender phone for
// inbound, the linked identity's phone for outbound.
func conversationKey(msg *models.Message, resolver *identity.Resolver) (key, rawPhone string) {
	if msg.Direction == models.DirectionInbound {
		return phone.Normalize(msg.SenderPhone), displayPhone(msg.SenderPhone)
	}

	if msg.LinkedClientID != nil {
		if c := resolver.ClientByID(*msg.LinkedClientID); c != nil {
			return phone.Normalize(c.PrimaryPhone), c.PrimaryPhone
		}
	}
	if msg.LinkedLeadID != nil {
		if l := resolver.LeadByID(*msg.LinkedLeadID); l != nil {
			return phone.Normalize(l.Phone), l.Phone
		}
	}
	// Outbound rows from the provider-direct source carry the chat phone
	// even when no identity matches; stored outbound rows do not.
	if msg.SenderPhone != "" {
		return phone.Normalize(msg.SenderPhone), displayPhone(msg.SenderPhone)
	}
	return "", ""
}

func displayPhone(raw string) string {
	if normalized := phone.Normalize(raw); normalized != "" {
		return normalized
	}
	return raw
}

func dedupByID(messages []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(messages))
	out := messages[:0]
	for _, m := range messages {
		if m.ID != "" {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}

// FilterByType keeps conversations of one resolved type.
func FilterByType(conversations []models.Conversation, convType models.ConversationType) []models.Conversation {
	out := make([]models.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if c.Type == convType {
			out = append(out, c)
		}
	}
	return out
}

// SearchConversations matches a free-text query against display name, raw
// phone and normalized phone. The query itself is normalized, so any phone
// spelling finds the conversation.
func SearchConversations(conversations []models.Conversation, query string) []models.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return conversations
	}
	qDigits := phone.Normalize(query)

	out := make([]models.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if strings.Contains(strings.ToLower(c.DisplayName), q) ||
			strings.Contains(c.Phone, q) ||
			(qDigits != "" && strings.Contains(c.ID, qDigits)) {
			out = append(out, c)
		}
	}
	return out
}

// ConversationService builds the per-contact view from either data source.
type ConversationService struct {
	store    ConversationStore
	provider RecentMessageSource
	logger   *logrus.Logger
}

func NewConversationService(store ConversationStore, provider RecentMessageSource, logger *logrus.Logger) *ConversationService {
	return &ConversationService{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// ListFromStore builds conversations from persisted rows joined with the
// current identity snapshot.
func (s *ConversationService) ListFromStore(ctx context.Context, clinicID string) ([]models.Conversation, error) {
	messages, err := s.store.GetMessagesByClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	clients, leads, err := s.identitySnapshot(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return BuildConversations(messages, clients, leads), nil
}

// ListFromProvider builds conversations directly from the provider's recent
// traffic, avoiding a full store scan. Resolution is local and exact here.
func (s *ConversationService) ListFromProvider(ctx context.Context, clinicID string, minutes int) ([]models.Conversation, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("provider source not configured")
	}

	incoming, err := s.provider.LastIncomingMessages(ctx, minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent incoming messages: %w", err)
	}
	outgoing, err := s.provider.LastOutgoingMessages(ctx, minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent outgoing messages: %w", err)
	}

	clients, leads, err := s.identitySnapshot(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(clients, leads)

	messages := make([]models.Message, 0, len(incoming)+len(outgoing))
	for _, rm := range append(incoming, outgoing...) {
		msg := recentToMessage(clinicID, rm)
		if msg.Direction == models.DirectionOutbound {
			// The provider has no notion of our identities; link locally so
			// outbound rows stay attributable.
			res := resolver.Resolve(phone.Normalize(rm.ChatID))
			if res.Client != nil {
				id := res.Client.ID
				msg.LinkedClientID = &id
			} else if res.Lead != nil {
				id := res.Lead.ID
				msg.LinkedLeadID = &id
			} else {
				// Keep the chat phone so the message still groups.
				msg.SenderPhone = rm.ChatID
			}
		}
		messages = append(messages, msg)
	}

	conversations := BuildConversations(messages, clients, leads)
	return conversations, nil
}

func (s *ConversationService) identitySnapshot(ctx context.Context, clinicID string) ([]models.Client, []models.Lead, error) {
	clients, err := s.store.GetActiveClients(ctx, clinicID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load clients: %w", err)
	}
	leads, err := s.store.GetOpenLeads(ctx, clinicID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load leads: %w", err)
	}
	return clients, leads, nil
}

func recentToMessage(clinicID string, rm greenapi.RecentMessage) models.Message {
	msg := models.Message{
		ID:                rm.IDMessage,
		ClinicID:          clinicID,
		Direction:         models.ParseDirection(rm.Type),
		Content:           rm.TextMessage,
		ProviderMessageID: rm.IDMessage,
		SentAt:            notificationTime(rm.Timestamp),
	}
	if msg.Direction == models.DirectionInbound {
		msg.SenderPhone = rm.ChatID
	}
	return msg
}
